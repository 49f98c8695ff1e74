package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var answerColumns = []string{
	"sequence", "timestamp", "session_id", "question_id", "answer_id", "answer_text", "applied", "update_error",
}

type answerRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

func (r *answerRepo) AppendAnswer(ctx context.Context, data AnswerEventData) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	var answerID, answerText, updateErr any
	if data.AnswerID != 0 {
		answerID = data.AnswerID
	}
	if data.AnswerText != "" {
		answerText = data.AnswerText
	}
	if data.UpdateError != "" {
		updateErr = data.UpdateError
	}

	query, args := builder.Insert(tableAnswerEvents).
		Columns(answerColumns...).
		Values(seqNum, time.Now().UTC(), data.SessionID, data.QuestionID, answerID, answerText, strings.Join(data.Applied, ","), updateErr).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save answer event: %w", err)
	}
	return nil
}

func (r *answerRepo) QueryAnswers(ctx context.Context, sessionID string, opts QueryOpts) ([]AnswerEventRecord, error) {
	sel := builder.Select("id", "sequence", "timestamp", "session_id", "question_id", "answer_id", "answer_text", "applied", "update_error").
		From(entsql.Table(tableAnswerEvents))

	var preds []*entsql.Predicate
	if sessionID != "" {
		preds = append(preds, entsql.EQ("session_id", sessionID))
	}
	preds = append(preds, opts.predicates("timestamp")...)
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy("sequence")
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	var out []AnswerEventRecord
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var (
			rec        AnswerEventRecord
			answerID   sql.NullInt64
			answerText sql.NullString
			applied    sql.NullString
			updateErr  sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Sequence, &rec.Timestamp, &rec.SessionID, &rec.QuestionID,
			&answerID, &answerText, &applied, &updateErr); err != nil {
			return err
		}
		rec.AnswerID = int(answerID.Int64)
		rec.AnswerText = answerText.String
		if applied.String != "" {
			rec.Applied = strings.Split(applied.String, ",")
		}
		rec.UpdateError = updateErr.String
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query answer events: %w", err)
	}
	return out, nil
}

// predicates turns the sequence and time bounds into SQL predicates. Time
// bounds apply to timeCol.
func (o QueryOpts) predicates(timeCol string) []*entsql.Predicate {
	var preds []*entsql.Predicate
	if o.After > 0 {
		preds = append(preds, entsql.GT("sequence", o.After))
	}
	if o.Before > 0 {
		preds = append(preds, entsql.LT("sequence", o.Before))
	}
	if !o.From.IsZero() {
		preds = append(preds, entsql.GTE(timeCol, o.From.UTC()))
	}
	if !o.To.IsZero() {
		preds = append(preds, entsql.LTE(timeCol, o.To.UTC()))
	}
	return preds
}
