package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/geoquiz/internal/config"
	"github.com/abhisek/geoquiz/internal/engine"
	"github.com/abhisek/geoquiz/internal/session"
	"github.com/abhisek/geoquiz/internal/store"
	"github.com/abhisek/geoquiz/internal/ui/components"
	"github.com/abhisek/geoquiz/internal/ui/theme"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a quiz in the terminal",
	Long: `Play a quiz in the terminal.

Answer with an option number or in your own words. Type "end" to finish
with feedback or "quit" to stop without a guess.`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().String(config.Flags[config.FlagSeed].Name, "", config.Flags[config.FlagSeed].Description)
	playCmd.Flags().Bool("no-archive", false, "Do not record the session in the database")
}

func runPlay(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	seed, err := loadSeed(cfg.Storage.SeedPath)
	if err != nil {
		return err
	}
	cat, err := seed.Catalog()
	if err != nil {
		return err
	}

	// Engine logs would interleave with the quiz unless asked for.
	log := zap.NewNop()
	if cfg.Log.Debug {
		log = appLog
	}
	eng, err := engine.New(cat, engineConfig(cfg), log)
	if err != nil {
		return err
	}

	q := &quiz{
		eng: eng,
		in:  bufio.NewScanner(cmd.InOrStdin()),
		out: cmd.OutOrStdout(),
		now: time.Now,
	}
	cats, err := cat.ListCategories(ctx)
	if err != nil {
		return err
	}
	q.categoryNames = make(map[int]string, len(cats))
	for _, c := range cats {
		q.categoryNames[c.ID] = c.Name
	}

	if noArchive, _ := cmd.Flags().GetBool("no-archive"); !noArchive {
		st, err := openStore()
		if err != nil {
			appLog.Warn("session will not be recorded", zap.Error(err))
		} else {
			defer st.Close()
			q.answers = st.AnswerRepo()
			q.sessions = st.SessionRepo()
		}
	}

	return q.run(ctx)
}

// quiz runs one session over a line-oriented terminal.
type quiz struct {
	eng           *engine.Engine
	in            *bufio.Scanner
	out           io.Writer
	now           func() time.Time
	categoryNames map[int]string

	answers  store.AnswerRepo
	sessions store.SessionRepo
}

func (q *quiz) run(ctx context.Context) error {
	sess, err := q.eng.StartSession(ctx, uuid.NewString(), q.now())
	if err != nil {
		return err
	}
	fmt.Fprintln(q.out, theme.Title.Render("Think of a triangle. I'll try to work out which kind."))
	fmt.Fprintln(q.out, theme.Hint.Render(`Answer with a number or in words. "end" to finish, "quit" to stop.`))

	step, err := q.eng.NextQuestion(ctx, sess, false, q.now())
	if err != nil {
		return err
	}

	for {
		line := "end"
		if step.Done {
			fmt.Fprintln(q.out, theme.Hint.Render("That was the last question."))
		} else {
			q.printQuestion(step.Question)
			if line, err = q.prompt("> "); err != nil {
				return q.abandon(ctx, sess)
			}
		}

		switch strings.ToLower(line) {
		case "quit", "q":
			return q.abandon(ctx, sess)
		case "end":
			resumed, err := q.finish(ctx, sess)
			if err != nil || !resumed {
				return err
			}
			if step, err = q.eng.NextQuestion(ctx, sess, false, q.now()); err != nil {
				return err
			}
			continue
		}

		answer := parseAnswer(line)
		next, err := q.eng.SubmitAnswer(ctx, sess, step.Question.ID, answer, false, q.now())
		if errors.Is(err, engine.ErrInvalidAnswer) {
			fmt.Fprintln(q.out, theme.Bad.Render("I didn't get that: "+err.Error()))
			continue
		}
		if err != nil {
			return err
		}
		q.logAnswer(ctx, sess.ID, step.Question.ID, answer, next.Update)
		q.printWeights(sess)
		step = next
	}
}

// finish collects feedback and ends the session. resumed is true when the
// learner chose to go back to the questions.
func (q *quiz) finish(ctx context.Context, sess *session.Session) (resumed bool, err error) {
	fmt.Fprintln(q.out)
	fmt.Fprintln(q.out, theme.Title.Render("Before you go:"))
	questions := session.FeedbackQuestions()
	for _, fq := range questions {
		fmt.Fprintf(q.out, "  %s %s\n", theme.Option.Render(strconv.Itoa(fq.ID)+")"), theme.Body.Render(fq.Text))
	}

	code := 0
	for code == 0 {
		line, err := q.prompt("feedback> ")
		if err != nil {
			return false, q.abandon(ctx, sess)
		}
		n, err := strconv.Atoi(line)
		if err != nil || !slices.ContainsFunc(questions, func(fq session.FeedbackQuestion) bool { return fq.ID == n }) {
			fmt.Fprintln(q.out, theme.Bad.Render("Pick one of the numbers above."))
			continue
		}
		code = n
	}

	out, err := q.eng.EndSession(ctx, sess, session.Feedback{Code: code}, q.now())
	if err != nil {
		return false, err
	}
	if out.Resume != nil {
		fmt.Fprintln(q.out, theme.Good.Render("Back to it."))
		return true, nil
	}

	recs, err := q.eng.Recommendations(ctx, sess, -1)
	if err != nil {
		return false, err
	}
	q.printSummary(out.Summary, recs)
	q.archive(ctx, out.Summary)
	return false, nil
}

func (q *quiz) abandon(ctx context.Context, sess *session.Session) error {
	sum, err := q.eng.AbandonSession(ctx, sess, q.now())
	if err != nil {
		return err
	}
	fmt.Fprintln(q.out, theme.Hint.Render(fmt.Sprintf("Stopped after %d questions.", sum.QuestionsCount)))
	q.archive(ctx, sum)
	return nil
}

// prompt reads one trimmed line. It returns io.EOF when input ends.
func (q *quiz) prompt(p string) (string, error) {
	fmt.Fprint(q.out, theme.Label.Render(p))
	if !q.in.Scan() {
		if err := q.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(q.in.Text()), nil
}

// parseAnswer treats a bare number as an option id and anything else as
// free text.
func parseAnswer(line string) engine.Answer {
	if id, err := strconv.Atoi(line); err == nil {
		return engine.Answer{OptionID: id}
	}
	return engine.Answer{Text: line}
}

func (q *quiz) printQuestion(v *engine.QuestionView) {
	fmt.Fprintln(q.out)
	header := fmt.Sprintf("Question %d", v.Number)
	if v.Resumed {
		header += " (again)"
	}
	fmt.Fprintln(q.out, theme.Label.Render(header))
	fmt.Fprintln(q.out, theme.Question.Render(v.Text))
	for _, a := range v.Answers {
		fmt.Fprintf(q.out, "  %s %s\n", theme.Option.Render(strconv.Itoa(a.ID)+")"), theme.Body.Render(a.Text))
	}
}

func (q *quiz) printWeights(sess *session.Session) {
	stats := q.eng.Statistics(sess)
	labelWidth := 0
	for _, name := range q.categoryNames {
		labelWidth = max(labelWidth, len(name))
	}
	for _, id := range slices.Sorted(maps.Keys(stats.CategoryWeights)) {
		name := q.categoryNames[id]
		if name == "" {
			name = strconv.Itoa(id)
		}
		fmt.Fprintln(q.out, components.NewWeightBar(name, labelWidth, stats.CategoryWeights[id], 48).View())
	}
}

func (q *quiz) printSummary(sum *session.Summary, recs []engine.TheoremView) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", theme.Title.Render("Session complete"))
	if sum.LeadingCategory != nil {
		fmt.Fprintf(&b, "%s %s\n", theme.Label.Render("Best guess:"), theme.Good.Render(q.categoryNames[*sum.LeadingCategory]))
	}
	fmt.Fprintf(&b, "%s %d in %s\n", theme.Label.Render("Questions:"), sum.QuestionsCount, sum.Duration.Round(time.Second))
	if len(recs) > 0 {
		fmt.Fprintf(&b, "%s\n", theme.Label.Render("Theorems to review:"))
		for i, r := range recs {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "  %s\n", theme.Theorem.Render(r.Text))
		}
	}
	fmt.Fprintln(q.out, theme.Card.Render(strings.TrimRight(b.String(), "\n")))
}

func (q *quiz) logAnswer(ctx context.Context, sessionID string, questionID int, a engine.Answer, rep *engine.Report) {
	if q.answers == nil {
		return
	}
	data := store.AnswerEventData{
		SessionID:  sessionID,
		QuestionID: questionID,
		AnswerID:   a.OptionID,
		AnswerText: a.Text,
	}
	if rep != nil {
		data.Applied = rep.Applied
		if rep.Err != nil {
			data.UpdateError = rep.Err.Error()
		}
	}
	if err := q.answers.AppendAnswer(ctx, data); err != nil {
		appLog.Warn("failed to log answer", zap.Error(err))
	}
}

func (q *quiz) archive(ctx context.Context, sum *session.Summary) {
	if q.sessions == nil {
		return
	}
	if err := q.sessions.Save(ctx, sum); err != nil {
		appLog.Warn("failed to archive session", zap.Error(err))
	}
}
