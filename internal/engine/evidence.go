package engine

import (
	"context"
	"fmt"
	"maps"

	"github.com/abhisek/geoquiz/internal/belief"
	"github.com/abhisek/geoquiz/internal/catalog"
)

// Evidence is one answer to one question, with its option resolved.
type Evidence struct {
	QuestionID int
	Answer     Answer

	// Option is the selected answer option; nil for free text.
	Option *catalog.AnswerOption
}

// text returns the wording to match keywords against.
func (e *Evidence) text() string {
	if e.Option != nil {
		return e.Option.Text
	}
	return e.Answer.Text
}

// Effect describes what a policy did to the state.
type Effect struct {
	Changed bool
	Note    string
}

// EvidencePolicy rewards the categories or theorems an answer points to.
// Policies mutate st in place; the caller hands them a scratch copy.
type EvidencePolicy interface {
	Name() string
	Apply(ctx context.Context, r catalog.Reader, ev *Evidence, st *belief.State) (Effect, error)
}

// DefaultPolicies returns the evidence policies in application order.
func DefaultPolicies(cfg Config) []EvidencePolicy {
	return []EvidencePolicy{
		&MultiplierPolicy{},
		&KeywordPolicy{Boost: cfg.BoostFactor},
	}
}

// MultiplierPolicy scales category weights by the answer multipliers of a
// structured answer, then renormalizes them to sum to 1. Only the first
// structured answer to a question is applied; later ones leave the
// categories alone.
type MultiplierPolicy struct{}

func (p *MultiplierPolicy) Name() string { return "multiplier" }

func (p *MultiplierPolicy) Apply(ctx context.Context, r catalog.Reader, ev *Evidence, st *belief.State) (Effect, error) {
	if ev.Option == nil {
		return Effect{}, nil
	}
	if st.Biased(ev.QuestionID) {
		return Effect{Note: "question already answered"}, nil
	}
	ms, err := r.ListAnswerMultipliers(ctx, ev.QuestionID)
	if err != nil {
		return Effect{}, catalogErr("list answer multipliers", err)
	}
	st.MarkBiased(ev.QuestionID)

	next := maps.Clone(st.CategoryWeights)
	applied := 0
	for _, m := range ms {
		if m.AnswerType != ev.Option.Type {
			continue
		}
		w, ok := next[m.CategoryID]
		if !ok {
			continue
		}
		if m.Multiplier < 0 {
			return Effect{}, fmt.Errorf("negative multiplier %v for category %d", m.Multiplier, m.CategoryID)
		}
		next[m.CategoryID] = w * m.Multiplier
		applied++
	}
	if applied == 0 {
		return Effect{Note: fmt.Sprintf("no %s multipliers", ev.Option.Type)}, nil
	}

	sum := 0.0
	for _, w := range next {
		sum += w
	}
	if sum <= 0 {
		return Effect{Note: "multipliers zeroed every category; left unchanged"}, nil
	}
	for id, w := range next {
		st.CategoryWeights[id] = w / sum
	}
	return Effect{Changed: true, Note: fmt.Sprintf("%d multipliers applied", applied)}, nil
}

// KeywordPolicy boosts theorems linked to the question whose keywords
// appear in the answer. Weights are clamped to MaxTheoremWeight and never
// decrease.
type KeywordPolicy struct {
	Boost float64
}

func (p *KeywordPolicy) Name() string { return "keyword" }

func (p *KeywordPolicy) Apply(ctx context.Context, r catalog.Reader, ev *Evidence, st *belief.State) (Effect, error) {
	text := ev.text()
	if text == "" {
		return Effect{}, nil
	}
	theorems, err := r.ListTheoremsForQuestion(ctx, ev.QuestionID)
	if err != nil {
		return Effect{}, catalogErr("list theorems for question", err)
	}

	var boosted []int
	for _, t := range theorems {
		if !MatchesAny(Keywords(t.Text), text) {
			continue
		}
		st.TheoremWeights[t.ID] = BoostWeight(st.TheoremWeight(t.ID), p.Boost)
		boosted = append(boosted, t.ID)
	}
	if len(boosted) == 0 {
		return Effect{}, nil
	}
	return Effect{Changed: true, Note: fmt.Sprintf("boosted theorems %v", boosted)}, nil
}

// BoostWeight multiplies w by factor, clamped to [w, MaxTheoremWeight].
func BoostWeight(w, factor float64) float64 {
	n := w * factor
	if n > belief.MaxTheoremWeight {
		n = belief.MaxTheoremWeight
	}
	if n < w {
		n = w
	}
	return n
}
