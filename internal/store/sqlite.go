package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"lectern/pkg/database"
	"lectern/pkg/interfaces"
	"lectern/pkg/types"
)

// Store is the SQLite-backed identity & membership store. It owns durable
// records; the in-memory registries never write through it.
type Store struct {
	db *sqlx.DB
}

var _ interfaces.Store = (*Store)(nil)

// Open connects to the database, configures the pool, and ensures the
// schema exists.
func Open(cfg *database.Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	db, err := sqlx.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := database.EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Account operations

func (s *Store) GetAccountByID(ctx context.Context, accountID string) (*types.Account, error) {
	var account types.Account
	err := s.db.GetContext(ctx, &account, `SELECT id, name, role, created_at FROM accounts WHERE id = ?`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account %s: %w", accountID, err)
	}
	return &account, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *types.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, role) VALUES (?, ?, ?)`,
		account.ID, account.Name, account.Role)
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", account.ID, err)
	}
	return nil
}

// Lecture operations

func (s *Store) CreateLecture(ctx context.Context, lecture *types.Lecture) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lectures (id, teacher_id, title, scheduled_at, duration_mins, cohort_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		lecture.ID, lecture.TeacherID, lecture.Title, lecture.ScheduledAt, lecture.DurationMins, lecture.CohortID)
	if err != nil {
		return fmt.Errorf("inserting lecture %s: %w", lecture.ID, err)
	}
	return nil
}

func (s *Store) GetLectureByID(ctx context.Context, lectureID string) (*types.Lecture, error) {
	var lecture types.Lecture
	err := s.db.GetContext(ctx, &lecture,
		`SELECT id, teacher_id, title, scheduled_at, duration_mins, cohort_id, created_at
		 FROM lectures WHERE id = ?`, lectureID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying lecture %s: %w", lectureID, err)
	}
	return &lecture, nil
}

func (s *Store) ListLectures(ctx context.Context) ([]*types.Lecture, error) {
	var lectures []*types.Lecture
	err := s.db.SelectContext(ctx, &lectures,
		`SELECT id, teacher_id, title, scheduled_at, duration_mins, cohort_id, created_at
		 FROM lectures ORDER BY scheduled_at`)
	if err != nil {
		return nil, fmt.Errorf("listing lectures: %w", err)
	}
	return lectures, nil
}

// Material operations

func (s *Store) CreateMaterial(ctx context.Context, material *types.Material) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO materials (id, lecture_id, title, file_type) VALUES (?, ?, ?, ?)`,
		material.ID, material.LectureID, material.Title, material.FileType)
	if err != nil {
		return fmt.Errorf("inserting material %s: %w", material.ID, err)
	}
	return nil
}

func (s *Store) ListLectureMaterials(ctx context.Context, lectureID string) ([]*types.Material, error) {
	var materials []*types.Material
	err := s.db.SelectContext(ctx, &materials,
		`SELECT id, lecture_id, title, file_type, created_at
		 FROM materials WHERE lecture_id = ? ORDER BY created_at`, lectureID)
	if err != nil {
		return nil, fmt.Errorf("listing materials for lecture %s: %w", lectureID, err)
	}
	return materials, nil
}

// Enrollment operations

func (s *Store) EnrollStudent(ctx context.Context, lectureID, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrollments (lecture_id, account_id) VALUES (?, ?)`,
		lectureID, accountID)
	if isUniqueViolation(err) {
		// Duplicate enrollment is benign.
		return nil
	}
	if err != nil {
		return fmt.Errorf("enrolling %s in lecture %s: %w", accountID, lectureID, err)
	}
	return nil
}

func (s *Store) IsEnrolled(ctx context.Context, lectureID, accountID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM enrollments WHERE lecture_id = ? AND account_id = ?`,
		lectureID, accountID)
	if err != nil {
		return false, fmt.Errorf("checking enrollment: %w", err)
	}
	return count > 0, nil
}

// Cohort operations

func (s *Store) CreateCohort(ctx context.Context, cohort *types.Cohort) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cohorts (id, teacher_id, name, code) VALUES (?, ?, ?, ?)`,
		cohort.ID, cohort.TeacherID, cohort.Name, cohort.Code)
	if err != nil {
		return fmt.Errorf("inserting cohort %s: %w", cohort.ID, err)
	}
	return nil
}

func (s *Store) GetCohortByCode(ctx context.Context, code string) (*types.Cohort, error) {
	var cohort types.Cohort
	err := s.db.GetContext(ctx, &cohort,
		`SELECT id, teacher_id, name, code, created_at FROM cohorts WHERE code = ?`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying cohort by code: %w", err)
	}
	return &cohort, nil
}

func (s *Store) AddCohortMember(ctx context.Context, cohortID, accountID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cohort_members (cohort_id, account_id) VALUES (?, ?)`,
		cohortID, accountID)
	if isUniqueViolation(err) {
		// Re-joining a cohort is benign.
		return nil
	}
	if err != nil {
		return fmt.Errorf("adding %s to cohort %s: %w", accountID, cohortID, err)
	}
	return nil
}

func (s *Store) IsCohortMember(ctx context.Context, cohortID, accountID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(1) FROM cohort_members WHERE cohort_id = ? AND account_id = ?`,
		cohortID, accountID)
	if err != nil {
		return false, fmt.Errorf("checking cohort membership: %w", err)
	}
	return count > 0, nil
}

// Health and lifecycle

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
