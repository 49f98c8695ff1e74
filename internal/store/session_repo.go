package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/geoquiz/internal/session"
)

type sessionRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

var sessionColumns = []string{
	"id", "sequence", "status", "feedback_code", "questions_count", "asked_questions",
	"category_weights", "leading_category", "top_theorem_id", "started_at", "ended_at", "duration_ms",
}

func (r *sessionRepo) Save(ctx context.Context, sum *session.Summary) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	asked, err := json.Marshal(sum.AskedQuestionIDs)
	if err != nil {
		return fmt.Errorf("encode asked questions: %w", err)
	}
	weights, err := json.Marshal(sum.CategoryWeights)
	if err != nil {
		return fmt.Errorf("encode category weights: %w", err)
	}

	var feedback, leading, top any
	if sum.Feedback != nil {
		feedback = sum.Feedback.Code
	}
	if sum.LeadingCategory != nil {
		leading = *sum.LeadingCategory
	}
	if sum.TopTheoremID != nil {
		top = *sum.TopTheoremID
	}

	query, args := builder.Insert(tableSessions).
		Columns(sessionColumns...).
		Values(sum.SessionID, seqNum, sum.Status.String(), feedback, sum.QuestionsCount, string(asked),
			string(weights), leading, top, sum.StartedAt.UTC(), sum.EndedAt.UTC(), sum.Duration.Milliseconds()).
		OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func scanSession(rows *entsql.Rows) (SessionRecord, error) {
	var (
		rec            SessionRecord
		status         string
		feedback       sql.NullInt64
		asked, weights string
		leading, top   sql.NullInt64
		durationMs     int64
		started, ended time.Time
	)
	if err := rows.Scan(&rec.SessionID, &rec.Sequence, &status, &feedback, &rec.QuestionsCount, &asked,
		&weights, &leading, &top, &started, &ended, &durationMs); err != nil {
		return rec, err
	}

	st, err := session.ParseStatus(status)
	if err != nil {
		return rec, err
	}
	rec.Status = st
	if feedback.Valid {
		rec.Feedback = &session.Feedback{Code: int(feedback.Int64)}
	}
	if err := json.Unmarshal([]byte(asked), &rec.AskedQuestionIDs); err != nil {
		return rec, fmt.Errorf("decode asked questions: %w", err)
	}
	if err := json.Unmarshal([]byte(weights), &rec.CategoryWeights); err != nil {
		return rec, fmt.Errorf("decode category weights: %w", err)
	}
	if leading.Valid {
		id := int(leading.Int64)
		rec.LeadingCategory = &id
	}
	if top.Valid {
		id := int(top.Int64)
		rec.TopTheoremID = &id
	}
	rec.StartedAt = started
	rec.EndedAt = ended
	rec.Duration = time.Duration(durationMs) * time.Millisecond
	return rec, nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*SessionRecord, error) {
	sel := builder.Select(sessionColumns...).
		From(entsql.Table(tableSessions)).
		Where(entsql.EQ("id", id))
	var found *SessionRecord
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		rec, err := scanSession(rows)
		if err != nil {
			return err
		}
		found = &rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", id, err)
	}
	if found == nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return found, nil
}

func (r *sessionRepo) List(ctx context.Context, opts QueryOpts) ([]SessionRecord, error) {
	sel := builder.Select(sessionColumns...).From(entsql.Table(tableSessions))
	if preds := opts.predicates("ended_at"); len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	var out []SessionRecord
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		rec, err := scanSession(rows)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	return out, nil
}

func (r *sessionRepo) Counts(ctx context.Context) (*SessionCounts, error) {
	sel := builder.Select("status", "questions_count", "leading_category").From(entsql.Table(tableSessions))
	counts := &SessionCounts{ByLeadingCategory: make(map[int]int)}
	questions := 0
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var (
			status  string
			n       int
			leading sql.NullInt64
		)
		if err := rows.Scan(&status, &n, &leading); err != nil {
			return err
		}
		counts.Total++
		questions += n
		switch status {
		case session.StatusCompleted.String():
			counts.Completed++
		case session.StatusPartial.String():
			counts.Partial++
		}
		if leading.Valid {
			counts.ByLeadingCategory[int(leading.Int64)]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	if counts.Total > 0 {
		counts.AvgQuestions = float64(questions) / float64(counts.Total)
	}
	return counts, nil
}

func (r *sessionRepo) Reset(ctx context.Context) error {
	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	for _, table := range []string{tableAnswerEvents, tableSessions} {
		query, args := builder.Delete(table).Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			tx.Rollback()
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}
