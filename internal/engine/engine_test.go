package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/session"
)

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BoostFactor = 0.5
	if _, err := New(testCatalog(t), cfg, zap.NewNop()); err == nil {
		t.Error("expected error for boost factor below 1")
	}
}

func TestStartSession_UniformBelief(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	s, err := e.StartSession(context.Background(), "s1", t0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	want := map[int]float64{0: 0.25, 1: 0.25, 2: 0.25, 3: 0.25}
	if diff := cmp.Diff(want, s.Belief.CategoryWeights); diff != "" {
		t.Errorf("category weights (-want +got):\n%s", diff)
	}
	for id, w := range s.Belief.TheoremWeights {
		if w != 0.01 {
			t.Errorf("theorem %d = %v, want 0.01", id, w)
		}
	}
	if s.Status != session.StatusActive {
		t.Errorf("Status = %v, want active", s.Status)
	}
}

func TestStartSession_CatalogUnavailable(t *testing.T) {
	r := &flakyReader{Catalog: testCatalog(t), failCategories: true}
	e := testEngine(t, r)

	_, err := e.StartSession(context.Background(), "s1", t0)
	var cerr *CatalogError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want *CatalogError", err)
	}
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestNextQuestion_FirstIsEasyWithAnswers(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	s, _ := e.StartSession(context.Background(), "s1", t0)

	step, err := e.NextQuestion(context.Background(), s, false, t0.Add(time.Second))
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if step.Done || step.Question == nil {
		t.Fatalf("step = %+v, want a question", step)
	}
	if step.Question.Difficulty != 1 {
		t.Errorf("difficulty = %d, want 1", step.Question.Difficulty)
	}
	if step.Question.Number != 1 {
		t.Errorf("number = %d, want 1", step.Question.Number)
	}
	if len(step.Question.Answers) != 3 {
		t.Errorf("answers = %d, want 3", len(step.Question.Answers))
	}
	if !s.LastActivity.Equal(t0.Add(time.Second)) {
		t.Errorf("LastActivity = %v", s.LastActivity)
	}
}

func TestNextQuestion_CatalogFailureLeavesSession(t *testing.T) {
	c := testCatalog(t)
	r := &flakyReader{Catalog: c}
	e := testEngine(t, r)
	s, _ := e.StartSession(context.Background(), "s1", t0)

	r.failQuestions = true
	if _, err := e.NextQuestion(context.Background(), s, false, t0); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("error = %v, want ErrCatalogUnavailable", err)
	}
	if s.Belief.QuestionsCount != 0 || s.Belief.Pending != nil {
		t.Errorf("session changed: count=%d pending=%+v", s.Belief.QuestionsCount, s.Belief.Pending)
	}
}

func TestSubmitAnswer_SelectionFailureKeepsAnswerUnapplied(t *testing.T) {
	c := testCatalog(t)
	r := &flakyReader{Catalog: c}
	e := testEngine(t, r)
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)
	if _, err := e.NextQuestion(ctx, s, false, t0); err != nil {
		t.Fatalf("first question: %v", err)
	}

	// Validation reads the questions first; the selection after the update
	// is the read that fails.
	r.failQuestionsAt = r.questionCalls + 2
	answer := Answer{Text: "pythagorean"}
	_, err := e.SubmitAnswer(ctx, s, 1, answer, false, t0.Add(time.Minute))
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("error = %v, want ErrCatalogUnavailable", err)
	}
	if w := s.Belief.TheoremWeights[1]; w != 0.01 {
		t.Errorf("theorem 1 weight = %v, want 0.01 (unchanged)", w)
	}
	if s.Belief.Pending == nil || s.Belief.Pending.ID != 1 {
		t.Errorf("pending = %+v, want question 1", s.Belief.Pending)
	}
	if s.Belief.QuestionsCount != 1 || !s.LastActivity.Equal(t0) {
		t.Errorf("count=%d last=%v, want 1 and %v", s.Belief.QuestionsCount, s.LastActivity, t0)
	}

	if _, err := e.SubmitAnswer(ctx, s, 1, answer, false, t0.Add(time.Minute)); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if w := s.Belief.TheoremWeights[1]; math.Abs(w-0.015) > 1e-12 {
		t.Errorf("theorem 1 weight after retry = %v, want 0.015 (boosted once)", w)
	}
}

func TestSubmitAnswer_ThreeAnswersFromFreshSession(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)

	qid := 1
	for i := 0; i < 3; i++ {
		step, err := e.SubmitAnswer(ctx, s, qid, Answer{OptionID: 1}, false, t0)
		if err != nil {
			t.Fatalf("answer %d: %v", i+1, err)
		}
		if step.Update == nil || step.Update.Err != nil {
			t.Fatalf("answer %d: update = %+v", i+1, step.Update)
		}
		qid = step.Question.ID
	}
	if n := len(s.Belief.AskedQuestionIDs); n != 3 {
		t.Errorf("asked = %v, want 3 ids", s.Belief.AskedQuestionIDs)
	}
	seen := map[int]bool{}
	for _, id := range s.Belief.AskedQuestionIDs {
		if seen[id] {
			t.Errorf("question %d asked twice", id)
		}
		seen[id] = true
	}
}

func TestSubmitAnswer_InvalidPayloadMutatesNothing(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)
	step, _ := e.NextQuestion(ctx, s, false, t0)
	qid := step.Question.ID
	before := s.Belief.Clone()

	tests := []struct {
		name     string
		question int
		answer   Answer
	}{
		{"empty", qid, Answer{}},
		{"both", qid, Answer{OptionID: 1, Text: "yes"}},
		{"unknown option", qid, Answer{OptionID: 99}},
		{"unknown question", 42, Answer{OptionID: 1}},
		{"inactive question", 5, Answer{OptionID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.SubmitAnswer(ctx, s, tt.question, tt.answer, false, t0)
			if !errors.Is(err, ErrInvalidAnswer) {
				t.Fatalf("error = %v, want ErrInvalidAnswer", err)
			}
		})
	}

	if diff := cmp.Diff(before.CategoryWeights, s.Belief.CategoryWeights); diff != "" {
		t.Errorf("category weights changed:\n%s", diff)
	}
	if diff := cmp.Diff(before.AskedQuestionIDs, s.Belief.AskedQuestionIDs); diff != "" {
		t.Errorf("history changed:\n%s", diff)
	}
	if s.Belief.Pending == nil || s.Belief.Pending.ID != qid {
		t.Errorf("pending = %+v, want %d", s.Belief.Pending, qid)
	}
}

func TestSubmitAnswer_BestEffortUpdateFailure(t *testing.T) {
	c := testCatalog(t)
	r := &flakyReader{Catalog: c}
	e := testEngine(t, r)
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)
	step, _ := e.NextQuestion(ctx, s, false, t0)

	r.failTheoremsQ = true
	before := s.Belief.Clone()
	_, err := e.SubmitAnswer(ctx, s, step.Question.ID, Answer{Text: "pythagorean"}, false, t0)

	// The update is discarded and selection then fails on the same read.
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("error = %v, want ErrCatalogUnavailable from selection", err)
	}
	if diff := cmp.Diff(before.TheoremWeights, s.Belief.TheoremWeights); diff != "" {
		t.Errorf("theorem weights changed:\n%s", diff)
	}
}

func TestSubmitAnswer_ReportsDiscardedUpdate(t *testing.T) {
	c := testCatalog(t)
	r := &flakyReader{Catalog: c}
	e := testEngine(t, r)
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)

	// Ask every question so selection needs no theorem reads, then fail
	// the keyword lookup.
	for i := 0; i < 4; i++ {
		if _, err := e.NextQuestion(ctx, s, false, t0); err != nil {
			t.Fatalf("next: %v", err)
		}
	}
	r.failTheoremsQ = true
	step, err := e.SubmitAnswer(ctx, s, 4, Answer{Text: "interior"}, false, t0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !step.Done {
		t.Errorf("step = %+v, want done", step)
	}
	var uerr *UpdateError
	if !errors.As(step.Update.Err, &uerr) {
		t.Errorf("Update.Err = %v, want *UpdateError", step.Update.Err)
	}
}

func TestEndSession_ResumeReissuesPending(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)

	first, _ := e.NextQuestion(ctx, s, false, t0)
	step, err := e.SubmitAnswer(ctx, s, first.Question.ID, Answer{OptionID: 1}, false, t0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	pending := step.Question.ID
	count := s.Belief.QuestionsCount

	out, err := e.EndSession(ctx, s, session.Feedback{Code: session.DefaultResumeCode}, t0)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if out.Summary != nil || out.Resume == nil {
		t.Fatalf("outcome = %+v, want resume signal", out)
	}
	if out.Resume.Question == nil || out.Resume.Question.ID != pending {
		t.Errorf("resume question = %+v, want %d", out.Resume.Question, pending)
	}
	if s.Status != session.StatusResumed {
		t.Errorf("Status = %v, want resumed", s.Status)
	}

	again, err := e.NextQuestion(ctx, s, false, t0)
	if err != nil {
		t.Fatalf("next after resume: %v", err)
	}
	if again.Question.ID != pending || !again.Question.Resumed {
		t.Errorf("re-issued %+v, want pending question %d", again.Question, pending)
	}
	if s.Belief.QuestionsCount != count {
		t.Errorf("QuestionsCount = %d, want %d", s.Belief.QuestionsCount, count)
	}

	next, _ := e.NextQuestion(ctx, s, false, t0)
	if next.Question.ID == pending {
		t.Error("resume re-issued the pending question twice")
	}
	if s.Belief.QuestionsCount != count+1 {
		t.Errorf("QuestionsCount = %d, want %d", s.Belief.QuestionsCount, count+1)
	}
}

func TestEndSession_CompletesAndTerminates(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)
	first, _ := e.NextQuestion(ctx, s, false, t0)
	if _, err := e.SubmitAnswer(ctx, s, first.Question.ID, Answer{Text: "pythagorean"}, false, t0); err != nil {
		t.Fatalf("submit: %v", err)
	}

	out, err := e.EndSession(ctx, s, session.Feedback{Code: 1}, t0.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if out.Summary == nil {
		t.Fatalf("outcome = %+v, want summary", out)
	}
	sum := out.Summary
	if sum.Status != session.StatusCompleted {
		t.Errorf("summary status = %v, want completed", sum.Status)
	}
	if sum.TopTheoremID == nil || *sum.TopTheoremID != 1 {
		t.Errorf("TopTheoremID = %v, want 1", sum.TopTheoremID)
	}
	if sum.Duration != 5*time.Minute {
		t.Errorf("Duration = %v, want 5m", sum.Duration)
	}
	if s.Status != session.StatusTerminated {
		t.Errorf("Status = %v, want terminated", s.Status)
	}

	if _, err := e.NextQuestion(ctx, s, false, t0); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("next after end: %v, want ErrSessionClosed", err)
	}
	if _, err := e.EndSession(ctx, s, session.Feedback{Code: 1}, t0); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second end: %v, want ErrSessionClosed", err)
	}
}

func TestAbandonSession_Partial(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)
	_, _ = e.NextQuestion(ctx, s, false, t0)

	sum, err := e.AbandonSession(ctx, s, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if sum.Status != session.StatusPartial || sum.TopTheoremID != nil {
		t.Errorf("summary = %+v, want partial without theorem", sum)
	}
	if sum.QuestionsCount != 1 {
		t.Errorf("QuestionsCount = %d, want 1", sum.QuestionsCount)
	}
	if _, err := e.AbandonSession(ctx, s, t0); !errors.Is(err, session.ErrInvalidTransition) {
		t.Errorf("second abandon: %v, want ErrInvalidTransition", err)
	}
}

func TestRecommendations_DefaultThreshold(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)

	got, err := e.Recommendations(ctx, s, -1)
	if err != nil {
		t.Fatalf("recommendations: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("got %d theorems at the floor, want 4", len(got))
	}

	if _, err := e.RecommendationsFor(ctx, s, 1, Answer{}, -1); !errors.Is(err, ErrInvalidAnswer) {
		t.Errorf("RecommendationsFor with empty answer: %v, want ErrInvalidAnswer", err)
	}
}

func TestResetSession(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)
	first, _ := e.NextQuestion(ctx, s, false, t0)
	_, _ = e.SubmitAnswer(ctx, s, first.Question.ID, Answer{OptionID: 1}, false, t0)

	if err := e.ResetSession(ctx, s, t0); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s.Belief.QuestionsCount != 0 || s.Belief.Pending != nil {
		t.Errorf("history not cleared: %+v", s.Belief)
	}
	for id, w := range s.Belief.CategoryWeights {
		if math.Abs(w-0.25) > eps {
			t.Errorf("category %d = %v, want 0.25", id, w)
		}
	}
}

func TestStatistics(t *testing.T) {
	e := testEngine(t, testCatalog(t))
	ctx := context.Background()
	s, _ := e.StartSession(ctx, "s1", t0)
	s.Belief.TheoremWeights[3] = 0.5
	s.Belief.CategoryWeights[1] = 0.4

	st := e.Statistics(s)
	if st.LeadingCategory == nil || *st.LeadingCategory != 1 {
		t.Errorf("LeadingCategory = %v, want 1", st.LeadingCategory)
	}
	if len(st.TopTheorems) != 4 || st.TopTheorems[0].ID != 3 {
		t.Errorf("TopTheorems = %+v, want theorem 3 first", st.TopTheorems)
	}
}
