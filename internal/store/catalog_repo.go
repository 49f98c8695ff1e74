package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/geoquiz/internal/catalog"
)

// CatalogRepo reads and seeds the catalog tables. Reads return active
// rows only and are ordered by id.
type CatalogRepo struct {
	drv *entsql.Driver
}

var (
	_ catalog.Reader    = (*CatalogRepo)(nil)
	_ catalog.Versioned = (*CatalogRepo)(nil)
)

// scanAll runs sel and calls scan once per row.
func scanAll(ctx context.Context, q dialect.ExecQuerier, sel *entsql.Selector, scan func(*entsql.Rows) error) error {
	query, args := sel.Query()
	var rows entsql.Rows
	if err := q.Query(ctx, query, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (r *CatalogRepo) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	sel := builder.Select("id", "name").From(entsql.Table(tableCategories)).OrderBy("id")
	var out []catalog.Category
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	return out, nil
}

func scanTheorem(rows *entsql.Rows) (catalog.Theorem, error) {
	var (
		t   catalog.Theorem
		cat sql.NullInt64
	)
	if err := rows.Scan(&t.ID, &t.Text, &cat, &t.Active); err != nil {
		return t, err
	}
	if cat.Valid {
		id := int(cat.Int64)
		t.CategoryID = &id
	}
	return t, nil
}

func (r *CatalogRepo) ListActiveTheorems(ctx context.Context) ([]catalog.Theorem, error) {
	sel := builder.Select("id", "text", "category_id", "active").
		From(entsql.Table(tableTheorems)).
		Where(entsql.EQ("active", true)).
		OrderBy("id")
	var out []catalog.Theorem
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		t, err := scanTheorem(rows)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query theorems: %w", err)
	}
	return out, nil
}

func (r *CatalogRepo) ListActiveQuestions(ctx context.Context) ([]catalog.Question, error) {
	sel := builder.Select("id", "text", "difficulty_level", "active").
		From(entsql.Table(tableQuestions)).
		Where(entsql.EQ("active", true)).
		OrderBy("id")
	var out []catalog.Question
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var q catalog.Question
		if err := rows.Scan(&q.ID, &q.Text, &q.Difficulty, &q.Active); err != nil {
			return err
		}
		out = append(out, q)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	return out, nil
}

func (r *CatalogRepo) ListTheoremsForQuestion(ctx context.Context, questionID int) ([]catalog.Theorem, error) {
	t := entsql.Table(tableTheorems).As("t")
	l := entsql.Table(tableTheoremQs).As("l")
	sel := builder.Select(t.C("id"), t.C("text"), t.C("category_id"), t.C("active")).
		From(t).
		Join(l).On(t.C("id"), l.C("theorem_id")).
		Where(entsql.And(
			entsql.EQ(l.C("question_id"), questionID),
			entsql.EQ(t.C("active"), true),
		)).
		OrderBy(t.C("id"))
	var out []catalog.Theorem
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		th, err := scanTheorem(rows)
		if err != nil {
			return err
		}
		out = append(out, th)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query theorems for question %d: %w", questionID, err)
	}
	return out, nil
}

func (r *CatalogRepo) ListCategoriesForTheorem(ctx context.Context, theoremID int) ([]catalog.CategoryLink, error) {
	t := entsql.Table(tableTheorems).As("t")
	l := entsql.Table(tableTheoremCats).As("l")
	sel := builder.Select(l.C("theorem_id"), l.C("category_id"), l.C("connection_strength")).
		From(l).
		Join(t).On(l.C("theorem_id"), t.C("id")).
		Where(entsql.And(
			entsql.EQ(l.C("theorem_id"), theoremID),
			entsql.EQ(t.C("active"), true),
		)).
		OrderBy(l.C("category_id"))
	var out []catalog.CategoryLink
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var cl catalog.CategoryLink
		if err := rows.Scan(&cl.TheoremID, &cl.CategoryID, &cl.Strength); err != nil {
			return err
		}
		out = append(out, cl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query categories for theorem %d: %w", theoremID, err)
	}
	return out, nil
}

func (r *CatalogRepo) ListAnswerMultipliers(ctx context.Context, questionID int) ([]catalog.AnswerMultiplier, error) {
	sel := builder.Select("question_id", "category_id", "answer_type", "multiplier").
		From(entsql.Table(tableMultipliers)).
		Where(entsql.EQ("question_id", questionID)).
		OrderBy("category_id", "answer_type")
	var out []catalog.AnswerMultiplier
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var (
			m   catalog.AnswerMultiplier
			typ string
		)
		if err := rows.Scan(&m.QuestionID, &m.CategoryID, &typ, &m.Multiplier); err != nil {
			return err
		}
		m.AnswerType = catalog.AnswerType(typ)
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query multipliers for question %d: %w", questionID, err)
	}
	return out, nil
}

func (r *CatalogRepo) ListAnswerOptions(ctx context.Context) ([]catalog.AnswerOption, error) {
	sel := builder.Select("id", "text", "answer_type").From(entsql.Table(tableOptions)).OrderBy("id")
	var out []catalog.AnswerOption
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		var (
			o   catalog.AnswerOption
			typ string
		)
		if err := rows.Scan(&o.ID, &o.Text, &typ); err != nil {
			return err
		}
		o.Type = catalog.AnswerType(typ)
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query answer options: %w", err)
	}
	return out, nil
}

// CatalogVersion returns the version of the seeded catalog, or "" if the
// catalog has never been seeded.
func (r *CatalogRepo) CatalogVersion(ctx context.Context) (string, error) {
	sel := builder.Select("version").From(entsql.Table(tableCatalogMeta)).Where(entsql.EQ("id", 1))
	var version string
	err := scanAll(ctx, r.drv, sel, func(rows *entsql.Rows) error {
		return rows.Scan(&version)
	})
	if err != nil {
		return "", fmt.Errorf("query catalog version: %w", err)
	}
	return version, nil
}

// Seed replaces every catalog table with the rows of seed in a single
// transaction. Unless force is set, nothing is written when the stored
// catalog is at the same or a newer version. It reports whether the
// catalog was written.
func (r *CatalogRepo) Seed(ctx context.Context, seed *catalog.Seed, force bool) (bool, error) {
	data := seed.Data()
	if _, err := catalog.New(data); err != nil {
		return false, err
	}

	stored, err := r.CatalogVersion(ctx)
	if err != nil {
		return false, err
	}
	if !force && !seed.NewerThan(stored) {
		return false, nil
	}

	tx, err := r.drv.Tx(ctx)
	if err != nil {
		return false, fmt.Errorf("begin seed: %w", err)
	}
	if err := writeCatalog(ctx, tx, data, time.Now().UTC()); err != nil {
		tx.Rollback()
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	return true, nil
}

func writeCatalog(ctx context.Context, tx dialect.ExecQuerier, data catalog.Data, now time.Time) error {
	// Children first so foreign keys hold.
	for _, table := range []string{
		tableTheoremQs, tableTheoremCats, tableMultipliers,
		tableTheorems, tableQuestions, tableOptions, tableCategories, tableCatalogMeta,
	} {
		query, args := builder.Delete(table).Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	inserts := []struct {
		table string
		cols  []string
		rows  [][]any
	}{
		{tableCategories, []string{"id", "name"}, mapRows(data.Categories, func(c catalog.Category) []any {
			return []any{c.ID, c.Name}
		})},
		{tableTheorems, []string{"id", "text", "category_id", "active"}, mapRows(data.Theorems, func(t catalog.Theorem) []any {
			var cat any
			if t.CategoryID != nil {
				cat = *t.CategoryID
			}
			return []any{t.ID, t.Text, cat, t.Active}
		})},
		{tableQuestions, []string{"id", "text", "difficulty_level", "active"}, mapRows(data.Questions, func(q catalog.Question) []any {
			return []any{q.ID, q.Text, q.Difficulty, q.Active}
		})},
		{tableTheoremCats, []string{"theorem_id", "category_id", "connection_strength"}, mapRows(data.CategoryLinks, func(l catalog.CategoryLink) []any {
			return []any{l.TheoremID, l.CategoryID, l.Strength}
		})},
		{tableTheoremQs, []string{"theorem_id", "question_id"}, mapRows(data.QuestionLinks, func(l catalog.QuestionLink) []any {
			return []any{l.TheoremID, l.QuestionID}
		})},
		{tableMultipliers, []string{"question_id", "category_id", "answer_type", "multiplier"}, mapRows(data.Multipliers, func(m catalog.AnswerMultiplier) []any {
			return []any{m.QuestionID, m.CategoryID, string(m.AnswerType), m.Multiplier}
		})},
		{tableOptions, []string{"id", "text", "answer_type"}, mapRows(data.AnswerOptions, func(o catalog.AnswerOption) []any {
			return []any{o.ID, o.Text, string(o.Type)}
		})},
		{tableCatalogMeta, []string{"id", "version", "seeded_at"}, [][]any{{1, data.Version, now}}},
	}
	for _, ins := range inserts {
		if len(ins.rows) == 0 {
			continue
		}
		b := builder.Insert(ins.table).Columns(ins.cols...)
		for _, row := range ins.rows {
			b.Values(row...)
		}
		query, args := b.Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			return fmt.Errorf("insert %s: %w", ins.table, err)
		}
	}
	return nil
}

func mapRows[T any](items []T, fn func(T) []any) [][]any {
	out := make([][]any, 0, len(items))
	for _, it := range items {
		out = append(out, fn(it))
	}
	return out
}
