// Package belief holds the per-session weights the engine reasons over.
package belief

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/abhisek/geoquiz/internal/catalog"
)

// DefaultTheoremFloor is the initial weight of every active theorem.
const DefaultTheoremFloor = 0.01

// MaxTheoremWeight caps theorem weights.
const MaxTheoremWeight = 1.0

// PendingQuestion is the most recently issued question still awaiting an answer.
type PendingQuestion struct {
	ID         int    `json:"question_id"`
	Text       string `json:"question_text"`
	Difficulty int    `json:"difficulty_level"`
}

// State is the mutable belief of a single session. It is owned by that
// session and is not safe for concurrent mutation.
type State struct {
	// CategoryWeights are relative, non-negative scores per category id.
	CategoryWeights map[int]float64 `json:"category_weights"`

	// TheoremWeights are per active theorem id, clamped to [0, 1].
	TheoremWeights map[int]float64 `json:"theorem_weights"`

	// AskedQuestionIDs lists issued questions in order.
	AskedQuestionIDs []int `json:"asked_questions"`

	// BiasedQuestionIDs lists questions whose answer multipliers have
	// already been applied.
	BiasedQuestionIDs []int `json:"biased_questions,omitempty"`

	// QuestionsCount is the number of questions issued.
	QuestionsCount int `json:"questions_count"`

	// Pending is the question awaiting an answer (nil between questions).
	Pending *PendingQuestion `json:"pending_question,omitempty"`

	// ResumeRequested re-arms Pending instead of selecting a new question.
	ResumeRequested bool `json:"resume_requested"`

	floor float64
}

// New creates a State initialized per Reset.
func New(categories []catalog.Category, theorems []catalog.Theorem, floor float64) *State {
	s := &State{}
	s.Reset(categories, theorems, floor)
	return s
}

// Reset restores the uniform initial belief: every category gets 1/N, every
// active theorem gets floor, and history, pending question and resume flag
// are cleared. Reset is idempotent.
func (s *State) Reset(categories []catalog.Category, theorems []catalog.Theorem, floor float64) {
	if floor <= 0 || floor > MaxTheoremWeight {
		floor = DefaultTheoremFloor
	}
	s.floor = floor

	s.CategoryWeights = make(map[int]float64, len(categories))
	if n := len(categories); n > 0 {
		w := 1.0 / float64(n)
		for _, c := range categories {
			s.CategoryWeights[c.ID] = w
		}
	}

	s.TheoremWeights = make(map[int]float64, len(theorems))
	for _, t := range theorems {
		if t.Active {
			s.TheoremWeights[t.ID] = floor
		}
	}

	s.AskedQuestionIDs = nil
	s.BiasedQuestionIDs = nil
	s.QuestionsCount = 0
	s.Pending = nil
	s.ResumeRequested = false
}

// Floor returns the theorem floor weight this state was reset with.
func (s *State) Floor() float64 {
	if s.floor == 0 {
		return DefaultTheoremFloor
	}
	return s.floor
}

// TheoremWeight returns the weight of a theorem, or the floor if unknown.
func (s *State) TheoremWeight(id int) float64 {
	if w, ok := s.TheoremWeights[id]; ok {
		return w
	}
	return s.Floor()
}

// Asked reports whether a question has already been issued.
func (s *State) Asked(questionID int) bool {
	return slices.Contains(s.AskedQuestionIDs, questionID)
}

// Biased reports whether the multipliers of a question have been applied.
func (s *State) Biased(questionID int) bool {
	return slices.Contains(s.BiasedQuestionIDs, questionID)
}

// MarkBiased records that the multipliers of a question have been applied.
func (s *State) MarkBiased(questionID int) {
	if !s.Biased(questionID) {
		s.BiasedQuestionIDs = append(s.BiasedQuestionIDs, questionID)
	}
}

// RecordIssued marks q as issued: it becomes the pending question, is
// appended to history and the question count is incremented.
func (s *State) RecordIssued(q catalog.Question) {
	s.Pending = &PendingQuestion{ID: q.ID, Text: q.Text, Difficulty: q.Difficulty}
	s.AskedQuestionIDs = append(s.AskedQuestionIDs, q.ID)
	s.QuestionsCount++
}

// LeadingCategory returns the highest-weighted category; ties go to the
// lowest id. ok is false when there are no categories.
func (s *State) LeadingCategory() (id int, ok bool) {
	best := math.Inf(-1)
	for _, cid := range slices.Sorted(maps.Keys(s.CategoryWeights)) {
		if w := s.CategoryWeights[cid]; w > best {
			best = w
			id = cid
			ok = true
		}
	}
	return id, ok
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := &State{
		CategoryWeights:   maps.Clone(s.CategoryWeights),
		TheoremWeights:    maps.Clone(s.TheoremWeights),
		AskedQuestionIDs:  slices.Clone(s.AskedQuestionIDs),
		BiasedQuestionIDs: slices.Clone(s.BiasedQuestionIDs),
		QuestionsCount:    s.QuestionsCount,
		ResumeRequested:   s.ResumeRequested,
		floor:             s.floor,
	}
	if s.Pending != nil {
		p := *s.Pending
		c.Pending = &p
	}
	return c
}

// Validate checks the weight invariants.
func (s *State) Validate() error {
	for id, w := range s.CategoryWeights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("category %d has invalid weight %v", id, w)
		}
	}
	for id, w := range s.TheoremWeights {
		if w < 0 || w > MaxTheoremWeight || math.IsNaN(w) {
			return fmt.Errorf("theorem %d has weight %v outside [0, 1]", id, w)
		}
	}
	return nil
}
