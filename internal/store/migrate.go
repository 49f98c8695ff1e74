package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Table names.
const (
	tableCategories   = "categories"
	tableTheorems     = "theorems"
	tableQuestions    = "questions"
	tableTheoremCats  = "theorem_categories"
	tableTheoremQs    = "theorem_questions"
	tableMultipliers  = "answer_multipliers"
	tableOptions      = "answer_options"
	tableCatalogMeta  = "catalog_meta"
	tableAnswerEvents = "answer_events"
	tableSessions     = "sessions"
)

// schema creates every table. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS theorems (
		id INTEGER PRIMARY KEY,
		text TEXT NOT NULL,
		category_id INTEGER REFERENCES categories(id),
		active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY,
		text TEXT NOT NULL,
		difficulty_level INTEGER NOT NULL CHECK (difficulty_level BETWEEN 1 AND 3),
		active BOOLEAN NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS theorem_categories (
		theorem_id INTEGER NOT NULL REFERENCES theorems(id),
		category_id INTEGER NOT NULL REFERENCES categories(id),
		connection_strength REAL NOT NULL CHECK (connection_strength BETWEEN 0 AND 1),
		PRIMARY KEY (theorem_id, category_id)
	)`,
	`CREATE TABLE IF NOT EXISTS theorem_questions (
		theorem_id INTEGER NOT NULL REFERENCES theorems(id),
		question_id INTEGER NOT NULL REFERENCES questions(id),
		PRIMARY KEY (theorem_id, question_id)
	)`,
	`CREATE TABLE IF NOT EXISTS answer_multipliers (
		question_id INTEGER NOT NULL REFERENCES questions(id),
		category_id INTEGER NOT NULL REFERENCES categories(id),
		answer_type TEXT NOT NULL,
		multiplier REAL NOT NULL CHECK (multiplier >= 0),
		PRIMARY KEY (question_id, category_id, answer_type)
	)`,
	`CREATE TABLE IF NOT EXISTS answer_options (
		id INTEGER PRIMARY KEY,
		text TEXT NOT NULL,
		answer_type TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version TEXT NOT NULL,
		seeded_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS answer_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence INTEGER NOT NULL UNIQUE,
		timestamp TIMESTAMP NOT NULL,
		session_id TEXT NOT NULL,
		question_id INTEGER NOT NULL,
		answer_id INTEGER,
		answer_text TEXT,
		applied TEXT,
		update_error TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS answer_events_session ON answer_events (session_id, sequence)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL UNIQUE,
		status TEXT NOT NULL,
		feedback_code INTEGER,
		questions_count INTEGER NOT NULL,
		asked_questions TEXT NOT NULL,
		category_weights TEXT NOT NULL,
		leading_category INTEGER,
		top_theorem_id INTEGER,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
