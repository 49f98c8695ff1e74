// Package engine infers which triangle type a learner is thinking about.
// It picks questions, updates the session's belief from each answer and
// ranks theorems to recommend. Sessions are owned by the caller, which
// must serialize calls on the same session.
package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/belief"
	"github.com/abhisek/geoquiz/internal/catalog"
	"github.com/abhisek/geoquiz/internal/session"
)

// topTheoremsInStats is how many theorems Statistics reports.
const topTheoremsInStats = 10

// QuestionView is a question as presented to the learner.
type QuestionView struct {
	ID         int                    `json:"question_id"`
	Text       string                 `json:"question_text"`
	Difficulty int                    `json:"difficulty_level"`
	Number     int                    `json:"question_number"`
	Answers    []catalog.AnswerOption `json:"answers,omitempty"`
	Resumed    bool                   `json:"resumed,omitempty"`
	Debug      []ScoreBreakdown       `json:"debug,omitempty"`
}

// Step is the result of asking for the next question.
type Step struct {
	// Question is nil when Done is set.
	Question *QuestionView `json:"question,omitempty"`

	// Done means no unasked questions remain.
	Done bool `json:"done"`

	// Update is set by SubmitAnswer.
	Update *Report `json:"update,omitempty"`
}

// ResumeSignal tells the caller the session continues with Question.
type ResumeSignal struct {
	Question *QuestionView `json:"question,omitempty"`
}

// Outcome is the result of ending a session: exactly one field is set.
type Outcome struct {
	Summary *session.Summary `json:"summary,omitempty"`
	Resume  *ResumeSignal    `json:"resume,omitempty"`
}

// TheoremWeight is a theorem id and its current weight.
type TheoremWeight struct {
	ID     int     `json:"theorem_id"`
	Weight float64 `json:"weight"`
}

// Statistics summarizes a session in progress.
type Statistics struct {
	QuestionsCount   int             `json:"questions_count"`
	AskedQuestionIDs []int           `json:"asked_questions"`
	CategoryWeights  map[int]float64 `json:"category_weights"`
	LeadingCategory  *int            `json:"leading_category,omitempty"`
	TopTheorems      []TheoremWeight `json:"top_theorems"`
}

// Engine ties the selector, updater and recommender to one catalog.
type Engine struct {
	reader      catalog.Reader
	cfg         Config
	selector    *Selector
	updater     *Updater
	recommender *Recommender
	logger      *zap.Logger
}

// New creates an engine over r.
func New(r catalog.Reader, cfg Config, logger *zap.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		reader:      r,
		cfg:         cfg,
		selector:    NewSelector(r, cfg),
		updater:     NewUpdater(r, cfg, logger),
		recommender: NewRecommender(r),
		logger:      logger,
	}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// StartSession creates an active session with a uniform belief state.
func (e *Engine) StartSession(ctx context.Context, id string, now time.Time) (*session.Session, error) {
	b, err := e.freshBelief(ctx)
	if err != nil {
		return nil, err
	}
	e.logger.Info("session started", zap.String("session_id", id))
	return session.New(id, b, now), nil
}

// ResetSession restores the initial belief of an open session.
func (e *Engine) ResetSession(ctx context.Context, s *session.Session, now time.Time) error {
	if !s.Open() {
		return closedErr(s)
	}
	cats, err := e.reader.ListCategories(ctx)
	if err != nil {
		return catalogErr("list categories", err)
	}
	ths, err := e.reader.ListActiveTheorems(ctx)
	if err != nil {
		return catalogErr("list active theorems", err)
	}
	s.Belief.Reset(cats, ths, e.cfg.TheoremFloor)
	s.Status = session.StatusActive
	s.Touch(now)
	return nil
}

func (e *Engine) freshBelief(ctx context.Context) (*belief.State, error) {
	cats, err := e.reader.ListCategories(ctx)
	if err != nil {
		return nil, catalogErr("list categories", err)
	}
	ths, err := e.reader.ListActiveTheorems(ctx)
	if err != nil {
		return nil, catalogErr("list active theorems", err)
	}
	return belief.New(cats, ths, e.cfg.TheoremFloor), nil
}

// NextQuestion issues the next question. After a resume the pending
// question is re-issued without counting it again.
func (e *Engine) NextQuestion(ctx context.Context, s *session.Session, privileged bool, now time.Time) (*Step, error) {
	if !s.Open() {
		return nil, closedErr(s)
	}

	if s.Status == session.StatusResumed {
		if p, ok := s.ConsumeResume(); ok {
			view, err := e.pendingView(ctx, s, p)
			if err != nil {
				return nil, err
			}
			view.Resumed = true
			s.Touch(now)
			e.logger.Info("resuming with pending question",
				zap.String("session_id", s.ID),
				zap.Int("question_id", p.ID))
			return &Step{Question: view}, nil
		}
	}

	// Select on a copy so a catalog failure leaves the session untouched.
	next := s.Belief.Clone()
	step, err := e.issue(ctx, s.ID, next, privileged)
	if err != nil {
		return nil, err
	}
	*s.Belief = *next
	s.Touch(now)
	return step, nil
}

// issue selects the next question on st and records it there.
func (e *Engine) issue(ctx context.Context, sessionID string, st *belief.State, privileged bool) (*Step, error) {
	sel, err := e.selector.Select(ctx, st, privileged)
	if err != nil {
		return nil, err
	}
	if sel.Done {
		e.logger.Info("no more questions", zap.String("session_id", sessionID))
		return &Step{Done: true}, nil
	}

	answers, err := e.reader.ListAnswerOptions(ctx)
	if err != nil {
		return nil, catalogErr("list answer options", err)
	}

	e.logger.Debug("question selected",
		zap.String("session_id", sessionID),
		zap.Int("question_id", sel.Question.ID),
		zap.Bool("opening", sel.Opening))

	return &Step{Question: &QuestionView{
		ID:         sel.Question.ID,
		Text:       sel.Question.Text,
		Difficulty: sel.Question.Difficulty,
		Number:     st.QuestionsCount,
		Answers:    answers,
		Debug:      sel.Debug,
	}}, nil
}

// CurrentQuestion returns the pending question, if any.
func (e *Engine) CurrentQuestion(ctx context.Context, s *session.Session) (*QuestionView, error) {
	if s.Belief.Pending == nil {
		return nil, nil
	}
	return e.pendingView(ctx, s, s.Belief.Pending)
}

func (e *Engine) pendingView(ctx context.Context, s *session.Session, p *belief.PendingQuestion) (*QuestionView, error) {
	answers, err := e.reader.ListAnswerOptions(ctx)
	if err != nil {
		return nil, catalogErr("list answer options", err)
	}
	return &QuestionView{
		ID:         p.ID,
		Text:       p.Text,
		Difficulty: p.Difficulty,
		Number:     s.Belief.QuestionsCount,
		Answers:    answers,
	}, nil
}

// SubmitAnswer applies an answer to questionID and issues the next
// question. Malformed answers are rejected with ErrInvalidAnswer before
// anything changes. A failed weight update does not fail the call; it is
// reported in Step.Update.
func (e *Engine) SubmitAnswer(ctx context.Context, s *session.Session, questionID int, answer Answer, privileged bool, now time.Time) (*Step, error) {
	if !s.Open() {
		return nil, closedErr(s)
	}
	if err := e.ValidateAnswer(ctx, questionID, answer); err != nil {
		return nil, err
	}

	// The update and the next selection share one copy, committed only
	// when both succeed.
	next := s.Belief.Clone()
	rep := e.updater.Apply(ctx, next, questionID, answer)
	step, err := e.issue(ctx, s.ID, next, privileged)
	if err != nil {
		return nil, err
	}

	*s.Belief = *next
	// Answering cancels any resume that has not been consumed yet.
	if s.Status == session.StatusResumed {
		s.ConsumeResume()
	}
	s.Touch(now)
	e.logger.Info("answer processed",
		zap.String("session_id", s.ID),
		zap.Int("question_id", questionID),
		zap.Strings("applied", rep.Applied),
		zap.Any("category_weights", s.Belief.CategoryWeights))

	step.Update = &rep
	return step, nil
}

// ValidateAnswer checks an answer payload against the catalog without
// touching any session.
func (e *Engine) ValidateAnswer(ctx context.Context, questionID int, answer Answer) error {
	if err := answer.Validate(); err != nil {
		return err
	}
	questions, err := e.reader.ListActiveQuestions(ctx)
	if err != nil {
		return catalogErr("list active questions", err)
	}
	if !slices.ContainsFunc(questions, func(q catalog.Question) bool { return q.ID == questionID }) {
		return fmt.Errorf("%w: unknown question %d", ErrInvalidAnswer, questionID)
	}
	if !answer.Structured() {
		return nil
	}
	opts, err := e.reader.ListAnswerOptions(ctx)
	if err != nil {
		return catalogErr("list answer options", err)
	}
	if !slices.ContainsFunc(opts, func(o catalog.AnswerOption) bool { return o.ID == answer.OptionID }) {
		return fmt.Errorf("%w: unknown answer id %d", ErrInvalidAnswer, answer.OptionID)
	}
	return nil
}

// Recommendations ranks theorems for the session. A negative threshold
// uses the configured default.
func (e *Engine) Recommendations(ctx context.Context, s *session.Session, threshold float64) ([]TheoremView, error) {
	return e.recommender.Recommend(ctx, s.Belief, e.threshold(threshold))
}

// RecommendationsFor ranks theorems linked to the category implied by
// answering questionID with answer.
func (e *Engine) RecommendationsFor(ctx context.Context, s *session.Session, questionID int, answer Answer, threshold float64) ([]TheoremView, error) {
	if err := answer.Validate(); err != nil {
		return nil, err
	}
	return e.recommender.RecommendFor(ctx, s.Belief, questionID, answer, e.threshold(threshold))
}

func (e *Engine) threshold(t float64) float64 {
	if t < 0 {
		return e.cfg.Threshold
	}
	return t
}

// EndSession finishes a session with the learner's feedback. The resume
// code keeps the session open and returns the pending question; any other
// code completes and terminates the session and returns its summary.
func (e *Engine) EndSession(ctx context.Context, s *session.Session, fb session.Feedback, now time.Time) (*Outcome, error) {
	if !s.Open() {
		return nil, closedErr(s)
	}

	if fb.Code == e.cfg.ResumeCode {
		if err := s.RequestResume(now); err != nil {
			return nil, err
		}
		sig := &ResumeSignal{}
		if s.Belief.Pending != nil {
			view, err := e.pendingView(ctx, s, s.Belief.Pending)
			if err != nil {
				return nil, err
			}
			view.Resumed = true
			sig.Question = view
		}
		e.logger.Info("session resume requested", zap.String("session_id", s.ID))
		return &Outcome{Resume: sig}, nil
	}

	recs, err := e.Recommendations(ctx, s, -1)
	if err != nil {
		return nil, err
	}
	var top *int
	if len(recs) > 0 {
		top = &recs[0].ID
	}

	if err := s.Complete(fb, now); err != nil {
		return nil, err
	}
	if err := s.Terminate(); err != nil {
		return nil, err
	}
	sum := session.BuildSummary(s, top)
	e.logger.Info("session completed",
		zap.String("session_id", s.ID),
		zap.Int("feedback", fb.Code),
		zap.Int("questions", sum.QuestionsCount),
		zap.Duration("duration", sum.Duration))
	return &Outcome{Summary: sum}, nil
}

// AbandonSession ends a session without guessing a theorem.
func (e *Engine) AbandonSession(_ context.Context, s *session.Session, now time.Time) (*session.Summary, error) {
	if err := s.Abandon(now); err != nil {
		return nil, err
	}
	if err := s.Terminate(); err != nil {
		return nil, err
	}
	sum := session.BuildSummary(s, nil)
	e.logger.Info("session abandoned",
		zap.String("session_id", s.ID),
		zap.Int("questions", sum.QuestionsCount))
	return sum, nil
}

// Statistics reports the session's progress and its heaviest theorems.
func (e *Engine) Statistics(s *session.Session) Statistics {
	b := s.Belief
	st := Statistics{
		QuestionsCount:   b.QuestionsCount,
		AskedQuestionIDs: slices.Clone(b.AskedQuestionIDs),
		CategoryWeights:  maps.Clone(b.CategoryWeights),
	}
	if id, ok := b.LeadingCategory(); ok {
		st.LeadingCategory = &id
	}
	for id, w := range b.TheoremWeights {
		st.TopTheorems = append(st.TopTheorems, TheoremWeight{ID: id, Weight: w})
	}
	sort.Slice(st.TopTheorems, func(i, j int) bool {
		if st.TopTheorems[i].Weight != st.TopTheorems[j].Weight {
			return st.TopTheorems[i].Weight > st.TopTheorems[j].Weight
		}
		return st.TopTheorems[i].ID < st.TopTheorems[j].ID
	})
	if len(st.TopTheorems) > topTheoremsInStats {
		st.TopTheorems = st.TopTheorems[:topTheoremsInStats]
	}
	return st
}

func closedErr(s *session.Session) error {
	return fmt.Errorf("%w: session %s is %s", ErrSessionClosed, s.ID, s.Status)
}
