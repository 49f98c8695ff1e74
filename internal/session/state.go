package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/geoquiz/internal/belief"
)

// ErrInvalidTransition is returned when a lifecycle event is not allowed
// from the session's current status.
var ErrInvalidTransition = errors.New("invalid session transition")

// Status is the lifecycle status of a session.
type Status int

const (
	StatusUninitialized Status = iota // No belief state yet
	StatusActive                      // Serving questions
	StatusPartial                     // Abandoned; history kept, no theorem guessed
	StatusCompleted                   // Finished with terminal feedback
	StatusResumed                     // Finish cancelled; pending question re-issued next
	StatusTerminated                  // Handed to persistence, removed from memory
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusActive:
		return "active"
	case StatusPartial:
		return "partial"
	case StatusCompleted:
		return "completed"
	case StatusResumed:
		return "resumed"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	st, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseStatus parses a status name.
func ParseStatus(name string) (Status, error) {
	for st := StatusUninitialized; st <= StatusTerminated; st++ {
		if st.String() == name {
			return st, nil
		}
	}
	return StatusUninitialized, fmt.Errorf("unknown session status %q", name)
}

// Feedback is what the learner reports when finishing a session.
type Feedback struct {
	// Code is the selected feedback question id; ResumeCode requests a resume.
	Code int `json:"feedback_id"`

	// TriangleTypes are the category ids the learner says they worked on.
	TriangleTypes []int `json:"triangle_types,omitempty"`

	// HelpfulTheorems are theorem ids the learner found useful.
	HelpfulTheorems []int `json:"helpful_theorems,omitempty"`
}

// Session is the lifecycle wrapper around a belief state. Callers own it and
// must serialize access to it.
type Session struct {
	// ID is supplied by the caller.
	ID string

	// Belief is the session's mutable belief state.
	Belief *belief.State

	// Status is the current lifecycle status.
	Status Status

	// FinalStatus is Partial or Completed once the session is terminated.
	FinalStatus Status

	// StartedAt is when the session began.
	StartedAt time.Time

	// LastActivity is updated on every question, answer and lifecycle event.
	LastActivity time.Time

	// EndedAt is set when the session leaves the active states.
	EndedAt time.Time

	// Feedback is set on completion.
	Feedback *Feedback
}

// New creates an active session around b.
func New(id string, b *belief.State, now time.Time) *Session {
	return &Session{
		ID:           id,
		Belief:       b,
		Status:       StatusActive,
		StartedAt:    now,
		LastActivity: now,
	}
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// Open reports whether the engine may still select questions and apply answers.
func (s *Session) Open() bool {
	return s.Status == StatusActive || s.Status == StatusResumed
}

// Abandon moves an open session to Partial.
func (s *Session) Abandon(now time.Time) error {
	if !s.Open() {
		return s.transitionError("abandon")
	}
	s.Status = StatusPartial
	s.EndedAt = now
	s.LastActivity = now
	return nil
}

// Complete moves an open session to Completed with the given feedback.
func (s *Session) Complete(fb Feedback, now time.Time) error {
	if !s.Open() {
		return s.transitionError("complete")
	}
	s.Status = StatusCompleted
	s.Feedback = &fb
	s.EndedAt = now
	s.LastActivity = now
	return nil
}

// RequestResume cancels a pending finish: the session keeps its belief
// state and the next question request re-issues the pending question.
func (s *Session) RequestResume(now time.Time) error {
	if !s.Open() {
		return s.transitionError("resume")
	}
	s.Status = StatusResumed
	s.Belief.ResumeRequested = true
	s.LastActivity = now
	return nil
}

// ConsumeResume returns the question to re-issue after a resume and moves
// the session back to Active. ok is false when no resume was requested or
// there is no pending question to re-issue.
func (s *Session) ConsumeResume() (q *belief.PendingQuestion, ok bool) {
	if s.Status != StatusResumed && !s.Belief.ResumeRequested {
		return nil, false
	}
	s.Status = StatusActive
	s.Belief.ResumeRequested = false
	if s.Belief.Pending == nil {
		return nil, false
	}
	p := *s.Belief.Pending
	return &p, true
}

// Terminate marks a finished session as handed off to persistence.
func (s *Session) Terminate() error {
	if s.Status != StatusPartial && s.Status != StatusCompleted {
		return s.transitionError("terminate")
	}
	s.FinalStatus = s.Status
	s.Status = StatusTerminated
	return nil
}

// Expired reports whether more than timeout has elapsed since the last
// activity. A non-positive timeout never expires.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return now.Sub(s.LastActivity) > timeout
}

func (s *Session) transitionError(event string) error {
	return fmt.Errorf("%w: cannot %s a %s session", ErrInvalidTransition, event, s.Status)
}
