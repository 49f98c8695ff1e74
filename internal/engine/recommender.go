package engine

import (
	"context"
	"sort"

	"github.com/abhisek/geoquiz/internal/belief"
	"github.com/abhisek/geoquiz/internal/catalog"
)

// TheoremView is a ranked theorem.
type TheoremView struct {
	ID         int     `json:"theorem_id"`
	Text       string  `json:"theorem_text"`
	CategoryID *int    `json:"category_id,omitempty"`
	Weight     float64 `json:"weight"`
}

// Recommender ranks theorems by their current weight.
type Recommender struct {
	reader catalog.Reader
}

// NewRecommender creates a recommender reading from r.
func NewRecommender(r catalog.Reader) *Recommender {
	return &Recommender{reader: r}
}

// Recommend returns the active theorems weighing at least threshold,
// heaviest first and lowest id on ties. When none qualify the single
// heaviest theorem is returned, so the result is empty only if there are
// no active theorems.
func (r *Recommender) Recommend(ctx context.Context, st *belief.State, threshold float64) ([]TheoremView, error) {
	theorems, err := r.reader.ListActiveTheorems(ctx)
	if err != nil {
		return nil, catalogErr("list active theorems", err)
	}
	return rank(st, theorems, threshold), nil
}

// RecommendFor ranks only the theorems linked to the category implied by
// answering questionID with answer. If no theorem is linked to that
// category the global ranking is returned.
func (r *Recommender) RecommendFor(ctx context.Context, st *belief.State, questionID int, answer Answer, threshold float64) ([]TheoremView, error) {
	cat, ok, err := r.ImpliedCategory(ctx, st, questionID, answer)
	if err != nil {
		return nil, err
	}
	theorems, err := r.reader.ListActiveTheorems(ctx)
	if err != nil {
		return nil, catalogErr("list active theorems", err)
	}
	if !ok {
		return rank(st, theorems, threshold), nil
	}

	var scoped []catalog.Theorem
	for _, t := range theorems {
		linked, err := r.linkedTo(ctx, t, cat)
		if err != nil {
			return nil, err
		}
		if linked {
			scoped = append(scoped, t)
		}
	}
	if len(scoped) == 0 {
		return rank(st, theorems, threshold), nil
	}
	return rank(st, scoped, threshold), nil
}

// ImpliedCategory returns the category an answer points to. A structured
// answer implies the category with the largest multiplier for its answer
// type. Free text implies the category with the largest summed connection
// strength over the question's keyword-matched theorems. Otherwise the
// state's leading category is used; ok is false only when there are no
// categories at all.
func (r *Recommender) ImpliedCategory(ctx context.Context, st *belief.State, questionID int, answer Answer) (int, bool, error) {
	if answer.Structured() {
		opts, err := r.reader.ListAnswerOptions(ctx)
		if err != nil {
			return 0, false, catalogErr("list answer options", err)
		}
		var typ catalog.AnswerType
		for _, o := range opts {
			if o.ID == answer.OptionID {
				typ = o.Type
			}
		}
		ms, err := r.reader.ListAnswerMultipliers(ctx, questionID)
		if err != nil {
			return 0, false, catalogErr("list answer multipliers", err)
		}
		scores := make(map[int]float64)
		for _, m := range ms {
			if m.AnswerType == typ {
				scores[m.CategoryID] = m.Multiplier
			}
		}
		if id, ok := argmax(scores); ok {
			return id, true, nil
		}
	} else if answer.Text != "" {
		theorems, err := r.reader.ListTheoremsForQuestion(ctx, questionID)
		if err != nil {
			return 0, false, catalogErr("list theorems for question", err)
		}
		scores := make(map[int]float64)
		for _, t := range theorems {
			if !MatchesAny(Keywords(t.Text), answer.Text) {
				continue
			}
			links, err := r.reader.ListCategoriesForTheorem(ctx, t.ID)
			if err != nil {
				return 0, false, catalogErr("list categories for theorem", err)
			}
			for _, l := range links {
				scores[l.CategoryID] += l.Strength
			}
		}
		if id, ok := argmax(scores); ok {
			return id, true, nil
		}
	}

	id, ok := st.LeadingCategory()
	return id, ok, nil
}

func (r *Recommender) linkedTo(ctx context.Context, t catalog.Theorem, categoryID int) (bool, error) {
	if t.CategoryID != nil && *t.CategoryID == categoryID {
		return true, nil
	}
	links, err := r.reader.ListCategoriesForTheorem(ctx, t.ID)
	if err != nil {
		return false, catalogErr("list categories for theorem", err)
	}
	for _, l := range links {
		if l.CategoryID == categoryID && l.Strength > 0 {
			return true, nil
		}
	}
	return false, nil
}

func rank(st *belief.State, theorems []catalog.Theorem, threshold float64) []TheoremView {
	all := make([]TheoremView, 0, len(theorems))
	for _, t := range theorems {
		v := TheoremView{ID: t.ID, Text: t.Text, Weight: st.TheoremWeight(t.ID)}
		if t.CategoryID != nil {
			id := *t.CategoryID
			v.CategoryID = &id
		}
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Weight != all[j].Weight {
			return all[i].Weight > all[j].Weight
		}
		return all[i].ID < all[j].ID
	})

	var out []TheoremView
	for _, v := range all {
		if v.Weight >= threshold {
			out = append(out, v)
		}
	}
	if len(out) == 0 && len(all) > 0 {
		out = all[:1]
	}
	return out
}

// argmax returns the key with the largest positive value, lowest key on ties.
func argmax(scores map[int]float64) (int, bool) {
	best, found := 0, false
	for id, s := range scores {
		if s <= 0 {
			continue
		}
		if !found || s > scores[best] || (s == scores[best] && id < best) {
			best, found = id, true
		}
	}
	return best, found
}
