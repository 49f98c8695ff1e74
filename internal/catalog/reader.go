package catalog

import "context"

// Reader is the read-only content source consumed by the engine.
// Implementations return active rows only, ordered by id.
type Reader interface {
	ListCategories(ctx context.Context) ([]Category, error)
	ListActiveTheorems(ctx context.Context) ([]Theorem, error)
	ListActiveQuestions(ctx context.Context) ([]Question, error)
	ListTheoremsForQuestion(ctx context.Context, questionID int) ([]Theorem, error)
	ListCategoriesForTheorem(ctx context.Context, theoremID int) ([]CategoryLink, error)
	ListAnswerMultipliers(ctx context.Context, questionID int) ([]AnswerMultiplier, error)
	ListAnswerOptions(ctx context.Context) ([]AnswerOption, error)
}
