package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/catalog"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

// testData is a small catalog:
//
//	q1 (easy)   -> t1
//	q2 (easy)   -> t2
//	q3 (medium) -> t1, t3
//	q4 (hard)   -> t4
//	q5 (medium, inactive)
func testData() catalog.Data {
	return catalog.Data{
		Version: "v0.1.0",
		Categories: []catalog.Category{
			{ID: 0, Name: "general"},
			{ID: 1, Name: "equilateral"},
			{ID: 2, Name: "isosceles"},
			{ID: 3, Name: "right-angled"},
		},
		Theorems: []catalog.Theorem{
			{ID: 1, Text: "Pythagorean theorem, hypotenuse squared equals the legs squared.", CategoryID: intp(3), Active: true},
			{ID: 2, Text: "Isosceles base angles are equal.", CategoryID: intp(2), Active: true},
			{ID: 3, Text: "Equilateral angles measure 60 degrees.", CategoryID: intp(1), Active: true},
			{ID: 4, Text: "Interior angles sum to 180 degrees.", Active: true},
		},
		Questions: []catalog.Question{
			{ID: 1, Text: "Does it have a right angle?", Difficulty: 1, Active: true},
			{ID: 2, Text: "Are two sides equal?", Difficulty: 1, Active: true},
			{ID: 3, Text: "Is the longest side opposite the largest angle?", Difficulty: 2, Active: true},
			{ID: 4, Text: "Do the angles sum to 180?", Difficulty: 3, Active: true},
			{ID: 5, Text: "Retired question", Difficulty: 2, Active: false},
		},
		CategoryLinks: []catalog.CategoryLink{
			{TheoremID: 1, CategoryID: 3, Strength: 1.0},
			{TheoremID: 2, CategoryID: 2, Strength: 1.0},
			{TheoremID: 2, CategoryID: 1, Strength: 0.5},
			{TheoremID: 3, CategoryID: 1, Strength: 1.0},
			{TheoremID: 4, CategoryID: 0, Strength: 1.0},
		},
		QuestionLinks: []catalog.QuestionLink{
			{TheoremID: 1, QuestionID: 1},
			{TheoremID: 2, QuestionID: 2},
			{TheoremID: 1, QuestionID: 3},
			{TheoremID: 3, QuestionID: 3},
			{TheoremID: 4, QuestionID: 4},
		},
		Multipliers: []catalog.AnswerMultiplier{
			{QuestionID: 1, CategoryID: 3, AnswerType: catalog.AnswerYes, Multiplier: 2.0},
			{QuestionID: 1, CategoryID: 1, AnswerType: catalog.AnswerYes, Multiplier: 0.5},
			{QuestionID: 1, CategoryID: 3, AnswerType: catalog.AnswerNo, Multiplier: 0.1},
			{QuestionID: 2, CategoryID: 0, AnswerType: catalog.AnswerNo, Multiplier: 0},
			{QuestionID: 2, CategoryID: 1, AnswerType: catalog.AnswerNo, Multiplier: 0},
			{QuestionID: 2, CategoryID: 2, AnswerType: catalog.AnswerNo, Multiplier: 0},
			{QuestionID: 2, CategoryID: 3, AnswerType: catalog.AnswerNo, Multiplier: 0},
		},
		AnswerOptions: []catalog.AnswerOption{
			{ID: 1, Text: "Yes", Type: catalog.AnswerYes},
			{ID: 2, Text: "No", Type: catalog.AnswerNo},
			{ID: 3, Text: "Not sure", Type: catalog.AnswerUnsure},
		},
	}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(testData())
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	return c
}

// firstPick makes the opening draw deterministic.
func firstPick(int) int { return 0 }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.IntN = firstPick
	return cfg
}

func testEngine(t *testing.T, r catalog.Reader) *Engine {
	t.Helper()
	e, err := New(r, testConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

var errDown = errors.New("database is locked")

// flakyReader fails selected methods of an embedded catalog.
type flakyReader struct {
	*catalog.Catalog
	failQuestions  bool
	failTheoremsQ  bool
	failCategories bool

	// failQuestionsAt fails only the n-th ListActiveQuestions call.
	failQuestionsAt int
	questionCalls   int
}

func (f *flakyReader) ListActiveQuestions(ctx context.Context) ([]catalog.Question, error) {
	f.questionCalls++
	if f.failQuestions || f.questionCalls == f.failQuestionsAt {
		return nil, errDown
	}
	return f.Catalog.ListActiveQuestions(ctx)
}

func (f *flakyReader) ListTheoremsForQuestion(ctx context.Context, id int) ([]catalog.Theorem, error) {
	if f.failTheoremsQ {
		return nil, errDown
	}
	return f.Catalog.ListTheoremsForQuestion(ctx, id)
}

func (f *flakyReader) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	if f.failCategories {
		return nil, errDown
	}
	return f.Catalog.ListCategories(ctx)
}
