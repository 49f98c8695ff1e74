package session

import (
	"maps"
	"slices"
	"time"
)

// DefaultResumeCode is the feedback code meaning "return to the exercise".
const DefaultResumeCode = 7

// FeedbackQuestion is one of the end-of-session prompts.
type FeedbackQuestion struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// FeedbackQuestions returns the end-of-session prompts in display order.
// The last one is the resume prompt.
func FeedbackQuestions() []FeedbackQuestion {
	return []FeedbackQuestion{
		{ID: 1, Text: "Did the exercises help you understand triangles better?"},
		{ID: 2, Text: "Which triangle type is the hardest for you?"},
		{ID: 3, Text: "Were the suggested theorems clear?"},
		{ID: 4, Text: "What do you think is missing?"},
		{ID: 5, Text: "Would you like to keep learning?"},
		{ID: 6, Text: "How satisfied are you with the experience? (1-5)"},
		{ID: DefaultResumeCode, Text: "Would you like to return to the exercise?"},
	}
}

// Summary is the record handed to persistence when a session terminates.
type Summary struct {
	SessionID        string          `json:"session_id"`
	Status           Status          `json:"status"`
	Feedback         *Feedback       `json:"feedback,omitempty"`
	QuestionsCount   int             `json:"questions_count"`
	AskedQuestionIDs []int           `json:"asked_questions"`
	CategoryWeights  map[int]float64 `json:"category_weights"`
	LeadingCategory  *int            `json:"leading_category,omitempty"`
	TopTheoremID     *int            `json:"top_theorem_id,omitempty"`
	StartedAt        time.Time       `json:"started_at"`
	EndedAt          time.Time       `json:"ended_at"`
	Duration         time.Duration   `json:"duration"`
}

// BuildSummary creates a Summary from a finished session. topTheoremID is the
// accepted recommendation; it is dropped for partial sessions, which never
// guess a theorem.
func BuildSummary(s *Session, topTheoremID *int) *Summary {
	status := s.Status
	if status == StatusTerminated {
		status = s.FinalStatus
	}

	ended := s.EndedAt
	if ended.IsZero() {
		ended = s.LastActivity
	}

	sum := &Summary{
		SessionID:        s.ID,
		Status:           status,
		Feedback:         s.Feedback,
		QuestionsCount:   s.Belief.QuestionsCount,
		AskedQuestionIDs: slices.Clone(s.Belief.AskedQuestionIDs),
		CategoryWeights:  maps.Clone(s.Belief.CategoryWeights),
		StartedAt:        s.StartedAt,
		EndedAt:          ended,
		Duration:         ended.Sub(s.StartedAt),
	}

	if id, ok := s.Belief.LeadingCategory(); ok {
		sum.LeadingCategory = &id
	}
	if status != StatusPartial && topTheoremID != nil {
		id := *topTheoremID
		sum.TopTheoremID = &id
	}
	return sum
}
