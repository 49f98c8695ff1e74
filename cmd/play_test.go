package cmd

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/geoquiz/internal/catalog"
	"github.com/abhisek/geoquiz/internal/engine"
	"github.com/abhisek/geoquiz/internal/session"
	"github.com/abhisek/geoquiz/internal/store"
)

func newTestQuiz(t *testing.T, input string) (*quiz, *bytes.Buffer) {
	t.Helper()

	seed, err := catalog.DefaultSeed()
	require.NoError(t, err)
	cat, err := seed.Catalog()
	require.NoError(t, err)

	ec := engine.DefaultConfig()
	ec.IntN = func(int) int { return 0 }
	eng, err := engine.New(cat, ec, nil)
	require.NoError(t, err)

	st, err := store.Open("file:play_" + t.Name() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	var out bytes.Buffer
	return &quiz{
		eng:           eng,
		in:            bufio.NewScanner(strings.NewReader(input)),
		out:           &out,
		now:           time.Now,
		categoryNames: map[int]string{},
		answers:       st.AnswerRepo(),
		sessions:      st.SessionRepo(),
	}, &out
}

func archived(t *testing.T, q *quiz) []store.SessionRecord {
	t.Helper()
	recs, err := q.sessions.List(context.Background(), store.QueryOpts{})
	require.NoError(t, err)
	return recs
}

func TestQuiz_QuitAbandons(t *testing.T) {
	q, out := newTestQuiz(t, "1\nquit\n")
	require.NoError(t, q.run(context.Background()))

	assert.Contains(t, out.String(), "Stopped after 2 questions.")
	recs := archived(t, q)
	require.Len(t, recs, 1)
	assert.Equal(t, session.StatusPartial, recs[0].Status)

	answers, err := q.answers.QueryAnswers(context.Background(), recs[0].SessionID, store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, 1, answers[0].AnswerID)
}

func TestQuiz_EndOfInputAbandons(t *testing.T) {
	q, _ := newTestQuiz(t, "")
	require.NoError(t, q.run(context.Background()))

	recs := archived(t, q)
	require.Len(t, recs, 1)
	assert.Equal(t, session.StatusPartial, recs[0].Status)
}

func TestQuiz_ResumeThenComplete(t *testing.T) {
	input := strings.Join([]string{
		"2",   // answer the opening question
		"end", // ask to finish
		"99",  // not a feedback option
		"7",   // resume
		"end",
		"1",
	}, "\n") + "\n"
	q, out := newTestQuiz(t, input)
	require.NoError(t, q.run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Pick one of the numbers above.")
	assert.Contains(t, text, "Back to it.")
	assert.Contains(t, text, "(again)")
	assert.Contains(t, text, "Session complete")

	recs := archived(t, q)
	require.Len(t, recs, 1)
	assert.Equal(t, session.StatusCompleted, recs[0].Status)
	require.NotNil(t, recs[0].Feedback)
	assert.Equal(t, 1, recs[0].Feedback.Code)
}

func TestQuiz_InvalidAnswerIsRetried(t *testing.T) {
	q, out := newTestQuiz(t, "42\nquit\n")
	require.NoError(t, q.run(context.Background()))

	assert.Contains(t, out.String(), "I didn't get that")
	assert.Contains(t, out.String(), "Stopped after 1 questions.")
}

func TestParseAnswer(t *testing.T) {
	assert.Equal(t, engine.Answer{OptionID: 3}, parseAnswer("3"))
	assert.Equal(t, engine.Answer{Text: "all sides equal"}, parseAnswer("all sides equal"))
}
