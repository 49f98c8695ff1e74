package engine

import (
	"context"

	"github.com/abhisek/geoquiz/internal/belief"
	"github.com/abhisek/geoquiz/internal/catalog"
)

// ScoreBreakdown explains how a candidate question was scored. Only
// produced for privileged callers.
type ScoreBreakdown struct {
	QuestionID  int     `json:"question_id"`
	Difficulty  int     `json:"difficulty_level"`
	TheoremIDs  []int   `json:"theorem_ids"`
	TheoremMass float64 `json:"theorem_mass"`
	Score       float64 `json:"score"`
	OpeningDraw bool    `json:"opening_draw,omitempty"`
	Selected    bool    `json:"selected,omitempty"`
}

// Selection is the result of choosing the next question.
type Selection struct {
	// Question is nil when Done is set.
	Question *catalog.Question

	// Done means every active question has been asked.
	Done bool

	// Opening is set when the question was drawn at random as the first
	// question of the session.
	Opening bool

	Debug []ScoreBreakdown
}

// Selector picks the next unasked question for a session.
type Selector struct {
	reader catalog.Reader
	cfg    Config
}

// NewSelector creates a selector reading from r.
func NewSelector(r catalog.Reader, cfg Config) *Selector {
	return &Selector{reader: r, cfg: cfg.withDefaults()}
}

// Select chooses the next question and records it on st as issued.
//
// The first question of a session is drawn uniformly from the unasked
// difficulty-1 questions. After that each candidate scores
// difficulty + ScaleFactor * (sum of its linked theorem weights) and the
// highest score wins, lowest id on ties. The debug breakdown never
// changes the outcome.
func (s *Selector) Select(ctx context.Context, st *belief.State, privileged bool) (*Selection, error) {
	questions, err := s.reader.ListActiveQuestions(ctx)
	if err != nil {
		return nil, catalogErr("list active questions", err)
	}

	var candidates []catalog.Question
	for _, q := range questions {
		if !st.Asked(q.ID) {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		return &Selection{Done: true}, nil
	}

	sel := &Selection{}
	if len(st.AskedQuestionIDs) == 0 {
		var easy []catalog.Question
		for _, q := range candidates {
			if q.Difficulty == catalog.DifficultyEasy {
				easy = append(easy, q)
			}
		}
		if len(easy) > 0 {
			q := easy[s.cfg.IntN(len(easy))]
			sel.Question = &q
			sel.Opening = true
			if privileged {
				for _, c := range easy {
					b := ScoreBreakdown{QuestionID: c.ID, Difficulty: c.Difficulty, OpeningDraw: true, Selected: c.ID == q.ID}
					sel.Debug = append(sel.Debug, b)
				}
			}
			st.RecordIssued(q)
			return sel, nil
		}
	}

	var (
		best      catalog.Question
		bestScore float64
		found     bool
	)
	for _, q := range candidates {
		b, err := s.score(ctx, st, q)
		if err != nil {
			return nil, err
		}
		if !found || b.Score > bestScore || (b.Score == bestScore && q.ID < best.ID) {
			best, bestScore, found = q, b.Score, true
		}
		if privileged {
			sel.Debug = append(sel.Debug, b)
		}
	}
	for i := range sel.Debug {
		sel.Debug[i].Selected = sel.Debug[i].QuestionID == best.ID
	}

	sel.Question = &best
	st.RecordIssued(best)
	return sel, nil
}

func (s *Selector) score(ctx context.Context, st *belief.State, q catalog.Question) (ScoreBreakdown, error) {
	theorems, err := s.reader.ListTheoremsForQuestion(ctx, q.ID)
	if err != nil {
		return ScoreBreakdown{}, catalogErr("list theorems for question", err)
	}
	b := ScoreBreakdown{QuestionID: q.ID, Difficulty: q.Difficulty}
	for _, t := range theorems {
		b.TheoremIDs = append(b.TheoremIDs, t.ID)
		b.TheoremMass += st.TheoremWeight(t.ID)
	}
	b.Score = float64(q.Difficulty) + s.cfg.ScaleFactor*b.TheoremMass
	return b, nil
}
