package store

import (
	"context"
	"errors"
	"time"

	"github.com/abhisek/geoquiz/internal/session"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// AnswerEventData captures one submitted answer.
type AnswerEventData struct {
	SessionID   string
	QuestionID  int
	AnswerID    int    // 0 for free text
	AnswerText  string // empty for structured answers
	Applied     []string
	UpdateError string
}

// AnswerEventRecord is a stored answer event.
type AnswerEventRecord struct {
	ID        int       `json:"id"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`

	SessionID   string   `json:"session_id"`
	QuestionID  int      `json:"question_id"`
	AnswerID    int      `json:"answer_id,omitempty"`
	AnswerText  string   `json:"answer_text,omitempty"`
	Applied     []string `json:"applied,omitempty"`
	UpdateError string   `json:"update_error,omitempty"`
}

// AnswerRepo is the append-only answer log.
type AnswerRepo interface {
	// AppendAnswer records a submitted answer.
	AppendAnswer(ctx context.Context, data AnswerEventData) error

	// QueryAnswers returns answer events in sequence order. An empty
	// sessionID matches every session.
	QueryAnswers(ctx context.Context, sessionID string, opts QueryOpts) ([]AnswerEventRecord, error)
}

// SessionRecord is an archived session.
type SessionRecord struct {
	Sequence int64 `json:"sequence"`
	session.Summary
}

// SessionCounts aggregates the session archive.
type SessionCounts struct {
	Total        int     `json:"total"`
	Completed    int     `json:"completed"`
	Partial      int     `json:"partial"`
	AvgQuestions float64 `json:"avg_questions"`

	// ByLeadingCategory counts sessions by their final leading category.
	ByLeadingCategory map[int]int `json:"by_leading_category"`
}

// SessionRepo archives terminated sessions.
type SessionRepo interface {
	// Save archives a session summary. Saving the same session twice
	// replaces the earlier record.
	Save(ctx context.Context, sum *session.Summary) error

	// Get returns one archived session or ErrNotFound.
	Get(ctx context.Context, id string) (*SessionRecord, error)

	// List returns archived sessions, most recent first.
	List(ctx context.Context, opts QueryOpts) ([]SessionRecord, error)

	// Counts aggregates the archive.
	Counts(ctx context.Context) (*SessionCounts, error)

	// Reset deletes archived sessions and the answer log.
	Reset(ctx context.Context) error
}
