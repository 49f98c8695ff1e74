package catalog

// AnswerType classifies a structured answer option. Multipliers are keyed by
// answer type rather than option id so several options can share a bias.
type AnswerType string

const (
	AnswerYes    AnswerType = "yes"
	AnswerNo     AnswerType = "no"
	AnswerUnsure AnswerType = "unsure"
)

// AllAnswerTypes returns all answer types in display order.
func AllAnswerTypes() []AnswerType {
	return []AnswerType{AnswerYes, AnswerNo, AnswerUnsure}
}

// Valid reports whether t is a known answer type.
func (t AnswerType) Valid() bool {
	switch t {
	case AnswerYes, AnswerNo, AnswerUnsure:
		return true
	default:
		return false
	}
}

// Difficulty levels for questions.
const (
	DifficultyEasy   = 1
	DifficultyMedium = 2
	DifficultyHard   = 3
)

// Category is a triangle type the engine tries to infer.
type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Theorem is a geometric fact that can be recommended to the learner.
type Theorem struct {
	ID         int
	Text       string
	CategoryID *int // nil for general theorems
	Active     bool
}

// Question is a prompt shown to the learner.
type Question struct {
	ID         int
	Text       string
	Difficulty int // 1..3
	Active     bool
}

// CategoryLink records how strongly a theorem evidences a category.
type CategoryLink struct {
	TheoremID  int
	CategoryID int
	Strength   float64 // 0.0–1.0
}

// QuestionLink records that a question can surface a theorem.
type QuestionLink struct {
	TheoremID  int
	QuestionID int
}

// AnswerMultiplier biases a category weight when a question is answered
// with an option of the given type.
type AnswerMultiplier struct {
	QuestionID int
	CategoryID int
	AnswerType AnswerType
	Multiplier float64
}

// AnswerOption is a selectable structured answer.
type AnswerOption struct {
	ID   int        `json:"answer_id"`
	Text string     `json:"answer_text"`
	Type AnswerType `json:"answer_type"`
}

// Data is the full row set of a catalog, including inactive rows.
type Data struct {
	Version       string
	Categories    []Category
	Theorems      []Theorem
	Questions     []Question
	CategoryLinks []CategoryLink
	QuestionLinks []QuestionLink
	Multipliers   []AnswerMultiplier
	AnswerOptions []AnswerOption
}
