package catalog

import (
	"context"
	"fmt"
	"slices"
	"sort"
)

// Catalog is an immutable in-memory snapshot of the content catalog with
// precomputed indices. It implements Reader and is safe for concurrent use.
type Catalog struct {
	version       string
	categories    []Category
	theorems      []Theorem // active only
	questions     []Question
	options       []AnswerOption
	theoremByID   map[int]*Theorem
	questionByID  map[int]*Question
	optionByID    map[int]*AnswerOption
	byQuestion    map[int][]int // question id -> active theorem ids
	theoremCats   map[int][]CategoryLink
	multipliersOf map[int][]AnswerMultiplier
}

var _ Reader = (*Catalog)(nil)

// New validates data and builds a Catalog from it. Inactive theorems and
// questions are dropped from every index.
func New(data Data) (*Catalog, error) {
	if err := validateData(data); err != nil {
		return nil, err
	}

	c := &Catalog{
		version:       data.Version,
		theoremByID:   make(map[int]*Theorem),
		questionByID:  make(map[int]*Question),
		optionByID:    make(map[int]*AnswerOption),
		byQuestion:    make(map[int][]int),
		theoremCats:   make(map[int][]CategoryLink),
		multipliersOf: make(map[int][]AnswerMultiplier),
	}

	c.categories = slices.Clone(data.Categories)
	sort.Slice(c.categories, func(i, j int) bool { return c.categories[i].ID < c.categories[j].ID })

	for _, t := range data.Theorems {
		if t.Active {
			c.theorems = append(c.theorems, t)
		}
	}
	sort.Slice(c.theorems, func(i, j int) bool { return c.theorems[i].ID < c.theorems[j].ID })
	for i := range c.theorems {
		c.theoremByID[c.theorems[i].ID] = &c.theorems[i]
	}

	for _, q := range data.Questions {
		if q.Active {
			c.questions = append(c.questions, q)
		}
	}
	sort.Slice(c.questions, func(i, j int) bool { return c.questions[i].ID < c.questions[j].ID })
	for i := range c.questions {
		c.questionByID[c.questions[i].ID] = &c.questions[i]
	}

	c.options = slices.Clone(data.AnswerOptions)
	sort.Slice(c.options, func(i, j int) bool { return c.options[i].ID < c.options[j].ID })
	for i := range c.options {
		c.optionByID[c.options[i].ID] = &c.options[i]
	}

	for _, l := range data.QuestionLinks {
		if _, ok := c.theoremByID[l.TheoremID]; !ok {
			continue
		}
		c.byQuestion[l.QuestionID] = append(c.byQuestion[l.QuestionID], l.TheoremID)
	}
	for qid := range c.byQuestion {
		sort.Ints(c.byQuestion[qid])
	}

	for _, l := range data.CategoryLinks {
		c.theoremCats[l.TheoremID] = append(c.theoremCats[l.TheoremID], l)
	}
	for tid := range c.theoremCats {
		links := c.theoremCats[tid]
		sort.Slice(links, func(i, j int) bool { return links[i].CategoryID < links[j].CategoryID })
	}

	for _, m := range data.Multipliers {
		c.multipliersOf[m.QuestionID] = append(c.multipliersOf[m.QuestionID], m)
	}
	for qid := range c.multipliersOf {
		ms := c.multipliersOf[qid]
		sort.Slice(ms, func(i, j int) bool {
			if ms[i].CategoryID != ms[j].CategoryID {
				return ms[i].CategoryID < ms[j].CategoryID
			}
			return ms[i].AnswerType < ms[j].AnswerType
		})
	}

	return c, nil
}

// Version returns the semantic version the catalog was built from.
func (c *Catalog) Version() string {
	return c.version
}

func (c *Catalog) CatalogVersion(_ context.Context) (string, error) {
	return c.version, nil
}

// Theorem returns an active theorem by id.
func (c *Catalog) Theorem(id int) (Theorem, bool) {
	t, ok := c.theoremByID[id]
	if !ok {
		return Theorem{}, false
	}
	return *t, true
}

// Question returns an active question by id.
func (c *Catalog) Question(id int) (Question, bool) {
	q, ok := c.questionByID[id]
	if !ok {
		return Question{}, false
	}
	return *q, true
}

// AnswerOption returns an answer option by id.
func (c *Catalog) AnswerOption(id int) (AnswerOption, bool) {
	o, ok := c.optionByID[id]
	if !ok {
		return AnswerOption{}, false
	}
	return *o, true
}

func (c *Catalog) ListCategories(_ context.Context) ([]Category, error) {
	return slices.Clone(c.categories), nil
}

func (c *Catalog) ListActiveTheorems(_ context.Context) ([]Theorem, error) {
	return slices.Clone(c.theorems), nil
}

func (c *Catalog) ListActiveQuestions(_ context.Context) ([]Question, error) {
	return slices.Clone(c.questions), nil
}

func (c *Catalog) ListTheoremsForQuestion(_ context.Context, questionID int) ([]Theorem, error) {
	ids := c.byQuestion[questionID]
	result := make([]Theorem, 0, len(ids))
	for _, id := range ids {
		result = append(result, *c.theoremByID[id])
	}
	return result, nil
}

func (c *Catalog) ListCategoriesForTheorem(_ context.Context, theoremID int) ([]CategoryLink, error) {
	if _, ok := c.theoremByID[theoremID]; !ok {
		return nil, nil
	}
	return slices.Clone(c.theoremCats[theoremID]), nil
}

func (c *Catalog) ListAnswerMultipliers(_ context.Context, questionID int) ([]AnswerMultiplier, error) {
	return slices.Clone(c.multipliersOf[questionID]), nil
}

func (c *Catalog) ListAnswerOptions(_ context.Context) ([]AnswerOption, error) {
	return slices.Clone(c.options), nil
}

// String returns a short description for logs.
func (c *Catalog) String() string {
	return fmt.Sprintf("catalog %s: %d categories, %d theorems, %d questions",
		c.version, len(c.categories), len(c.theorems), len(c.questions))
}
