package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaStatements is the identity & membership schema, applied in order.
// TEXT primary keys carry externally-minted identifiers unchanged.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		role       TEXT NOT NULL CHECK (role IN ('teacher', 'student', 'admin')),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS cohorts (
		id         TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL REFERENCES accounts(id),
		name       TEXT NOT NULL,
		code       TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS lectures (
		id            TEXT PRIMARY KEY,
		teacher_id    TEXT NOT NULL REFERENCES accounts(id),
		title         TEXT NOT NULL,
		scheduled_at  DATETIME NOT NULL,
		duration_mins INTEGER NOT NULL DEFAULT 60,
		cohort_id     TEXT REFERENCES cohorts(id),
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS materials (
		id         TEXT PRIMARY KEY,
		lecture_id TEXT NOT NULL REFERENCES lectures(id),
		title      TEXT NOT NULL,
		file_type  TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		lecture_id TEXT NOT NULL REFERENCES lectures(id),
		account_id TEXT NOT NULL REFERENCES accounts(id),
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (lecture_id, account_id)
	)`,
	`CREATE TABLE IF NOT EXISTS cohort_members (
		cohort_id  TEXT NOT NULL REFERENCES cohorts(id),
		account_id TEXT NOT NULL REFERENCES accounts(id),
		joined_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (cohort_id, account_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lectures_teacher ON lectures(teacher_id)`,
	`CREATE INDEX IF NOT EXISTS idx_lectures_cohort ON lectures(cohort_id)`,
	`CREATE INDEX IF NOT EXISTS idx_materials_lecture ON materials(lecture_id)`,
}

// EnsureSchema applies the schema statements. Safe to run on every startup.
func EnsureSchema(db *sqlx.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("applying schema statement: %w", err)
		}
	}
	return nil
}
