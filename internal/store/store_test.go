package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/geoquiz/internal/catalog"
	"github.com/abhisek/geoquiz/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := openTestStore(t)
	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)
	applied, err := s.CatalogRepo().Seed(context.Background(), seed, false)
	require.NoError(t, err)
	require.True(t, applied)
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.Driver() == nil {
		t.Fatal("expected non-nil driver")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	// journal_mode reports "memory" for in-memory databases.
	var got string
	if err := db.QueryRow("PRAGMA synchronous").Scan(&got); err != nil {
		t.Fatalf("PRAGMA synchronous: %v", err)
	}
	if got != "1" {
		t.Errorf("PRAGMA synchronous = %q, want %q", got, "1")
	}
}

func TestCatalogRepo_UnseededIsEmpty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v, err := s.CatalogRepo().CatalogVersion(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)

	qs, err := s.CatalogRepo().ListActiveQuestions(ctx)
	require.NoError(t, err)
	assert.Empty(t, qs)
}

func TestCatalogRepo_SeedRoundTrip(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)
	want, err := seed.Catalog()
	require.NoError(t, err)

	got, err := catalog.Load(ctx, s.CatalogRepo())
	require.NoError(t, err)
	assert.Equal(t, "v1.2.0", got.Version())

	wantCats, _ := want.ListCategories(ctx)
	gotCats, _ := got.ListCategories(ctx)
	if diff := cmp.Diff(wantCats, gotCats); diff != "" {
		t.Errorf("categories (-want +got):\n%s", diff)
	}

	wantQs, _ := want.ListActiveQuestions(ctx)
	gotQs, _ := got.ListActiveQuestions(ctx)
	if diff := cmp.Diff(wantQs, gotQs); diff != "" {
		t.Errorf("questions (-want +got):\n%s", diff)
	}

	wantThs, _ := want.ListActiveTheorems(ctx)
	gotThs, _ := got.ListActiveTheorems(ctx)
	if diff := cmp.Diff(wantThs, gotThs); diff != "" {
		t.Errorf("theorems (-want +got):\n%s", diff)
	}

	for _, q := range wantQs {
		w, _ := want.ListTheoremsForQuestion(ctx, q.ID)
		g, _ := got.ListTheoremsForQuestion(ctx, q.ID)
		if diff := cmp.Diff(w, g); diff != "" {
			t.Errorf("theorems for question %d (-want +got):\n%s", q.ID, diff)
		}
		wm, _ := want.ListAnswerMultipliers(ctx, q.ID)
		gm, _ := got.ListAnswerMultipliers(ctx, q.ID)
		if diff := cmp.Diff(wm, gm); diff != "" {
			t.Errorf("multipliers for question %d (-want +got):\n%s", q.ID, diff)
		}
	}
	for _, th := range wantThs {
		w, _ := want.ListCategoriesForTheorem(ctx, th.ID)
		g, _ := got.ListCategoriesForTheorem(ctx, th.ID)
		if diff := cmp.Diff(w, g); diff != "" {
			t.Errorf("categories for theorem %d (-want +got):\n%s", th.ID, diff)
		}
	}
}

func TestCatalogRepo_ReadsSkipInactiveRows(t *testing.T) {
	s := seededStore(t)
	repo := s.CatalogRepo()
	ctx := context.Background()

	ths, err := repo.ListTheoremsForQuestion(ctx, 3)
	require.NoError(t, err)
	for _, th := range ths {
		assert.NotEqual(t, 12, th.ID, "inactive theorem 12 surfaced")
	}

	links, err := repo.ListCategoriesForTheorem(ctx, 12)
	require.NoError(t, err)
	assert.Empty(t, links)

	qs, err := repo.ListActiveQuestions(ctx)
	require.NoError(t, err)
	for _, q := range qs {
		assert.NotEqual(t, 13, q.ID, "inactive question 13 surfaced")
	}
}

func TestCatalogRepo_SeedVersionGate(t *testing.T) {
	s := seededStore(t)
	repo := s.CatalogRepo()
	ctx := context.Background()

	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)

	applied, err := repo.Seed(ctx, seed, false)
	require.NoError(t, err)
	assert.False(t, applied, "same version should not reseed")

	applied, err = repo.Seed(ctx, seed, true)
	require.NoError(t, err)
	assert.True(t, applied, "force should reseed")

	seed.Version = "v1.3.0"
	seed.Questions = seed.Questions[:4]
	seed.Theorems = nil
	applied, err = repo.Seed(ctx, seed, false)
	require.NoError(t, err)
	assert.True(t, applied)

	v, _ := repo.CatalogVersion(ctx)
	assert.Equal(t, "v1.3.0", v)
	qs, _ := repo.ListActiveQuestions(ctx)
	assert.Len(t, qs, 4)
}

func TestCatalogRepo_InvalidSeedWritesNothing(t *testing.T) {
	s := seededStore(t)
	repo := s.CatalogRepo()
	ctx := context.Background()

	missing := 9
	bad := &catalog.Seed{
		Version:    "v2.0.0",
		Categories: []catalog.SeedCategory{{ID: 0, Name: "general"}},
		Theorems:   []catalog.SeedTheorem{{ID: 1, Text: "dangling", Category: &missing}},
	}
	_, err := repo.Seed(ctx, bad, false)
	require.Error(t, err)

	v, _ := repo.CatalogVersion(ctx)
	assert.Equal(t, "v1.2.0", v)
}

func TestAnswerRepo_AppendAndQuery(t *testing.T) {
	s := openTestStore(t)
	repo := s.AnswerRepo()
	ctx := context.Background()

	events := []AnswerEventData{
		{SessionID: "a", QuestionID: 1, AnswerID: 1, Applied: []string{"multiplier"}},
		{SessionID: "b", QuestionID: 2, AnswerText: "base angles", Applied: []string{"keyword"}},
		{SessionID: "a", QuestionID: 6, AnswerID: 2, UpdateError: "catalog unavailable"},
	}
	for _, e := range events {
		require.NoError(t, repo.AppendAnswer(ctx, e))
	}

	all, err := repo.QueryAnswers(ctx, "", QueryOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].Sequence, all[i-1].Sequence)
	}
	assert.Equal(t, "base angles", all[1].AnswerText)
	assert.Equal(t, 0, all[1].AnswerID)
	assert.Equal(t, []string{"keyword"}, all[1].Applied)
	assert.Nil(t, all[2].Applied)
	assert.Equal(t, "catalog unavailable", all[2].UpdateError)
	assert.False(t, all[0].Timestamp.IsZero())

	onlyA, err := repo.QueryAnswers(ctx, "a", QueryOpts{})
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, 6, onlyA[1].QuestionID)

	after, err := repo.QueryAnswers(ctx, "", QueryOpts{After: all[0].Sequence, Limit: 1})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "b", after[0].SessionID)
}

func testSummary(id string, status session.Status, questions int) *session.Summary {
	leading, top := 3, 8
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sum := &session.Summary{
		SessionID:        id,
		Status:           status,
		QuestionsCount:   questions,
		AskedQuestionIDs: []int{1, 6, 11}[:questions],
		CategoryWeights:  map[int]float64{0: 0.1, 1: 0.1, 2: 0.2, 3: 0.6},
		LeadingCategory:  &leading,
		StartedAt:        start,
		EndedAt:          start.Add(4 * time.Minute),
		Duration:         4 * time.Minute,
	}
	if status == session.StatusCompleted {
		sum.Feedback = &session.Feedback{Code: 1}
		sum.TopTheoremID = &top
	}
	return sum
}

func TestSessionRepo_SaveAndGet(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()

	want := testSummary("s1", session.StatusCompleted, 3)
	require.NoError(t, repo.Save(ctx, want))

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	if diff := cmp.Diff(*want, got.Summary); diff != "" {
		t.Errorf("summary (-want +got):\n%s", diff)
	}

	_, err = repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestSessionRepo_SaveReplaces(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSummary("s1", session.StatusPartial, 1)))
	require.NoError(t, repo.Save(ctx, testSummary("s1", session.StatusCompleted, 3)))

	list, err := repo.List(ctx, QueryOpts{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, session.StatusCompleted, list[0].Status)
}

func TestSessionRepo_ListCountsReset(t *testing.T) {
	s := openTestStore(t)
	repo := s.SessionRepo()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testSummary("s1", session.StatusCompleted, 3)))
	require.NoError(t, repo.Save(ctx, testSummary("s2", session.StatusPartial, 1)))
	require.NoError(t, repo.Save(ctx, testSummary("s3", session.StatusCompleted, 2)))
	require.NoError(t, s.AnswerRepo().AppendAnswer(ctx, AnswerEventData{SessionID: "s1", QuestionID: 1, AnswerID: 1}))

	list, err := repo.List(ctx, QueryOpts{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s3", list[0].SessionID, "most recent first")

	counts, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Total)
	assert.Equal(t, 2, counts.Completed)
	assert.Equal(t, 1, counts.Partial)
	assert.InDelta(t, 2.0, counts.AvgQuestions, 1e-9)
	assert.Equal(t, map[int]int{3: 3}, counts.ByLeadingCategory)

	require.NoError(t, repo.Reset(ctx))
	counts, err = repo.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Total)
	answers, err := s.AnswerRepo().QueryAnswers(ctx, "", QueryOpts{})
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestSequenceSharedAcrossTables(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AnswerRepo().AppendAnswer(ctx, AnswerEventData{SessionID: "s1", QuestionID: 1, AnswerID: 1}))
	require.NoError(t, s.SessionRepo().Save(ctx, testSummary("s1", session.StatusPartial, 1)))
	require.NoError(t, s.AnswerRepo().AppendAnswer(ctx, AnswerEventData{SessionID: "s2", QuestionID: 2, AnswerID: 2}))

	answers, _ := s.AnswerRepo().QueryAnswers(ctx, "", QueryOpts{})
	rec, err := s.SessionRepo().Get(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, answers, 2)
	assert.Less(t, answers[0].Sequence, rec.Sequence)
	assert.Less(t, rec.Sequence, answers[1].Sequence)
}
