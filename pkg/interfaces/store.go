package interfaces

import (
	"context"

	"lectern/pkg/types"
)

// Store is the identity & membership store consumed by the real-time core
// and the route layer. The core reads through it synchronously before
// mutating in-memory state; it never holds transactions open across the
// in-memory registries.
type Store interface {
	// Account operations
	GetAccountByID(ctx context.Context, accountID string) (*types.Account, error)
	CreateAccount(ctx context.Context, account *types.Account) error

	// Lecture operations
	CreateLecture(ctx context.Context, lecture *types.Lecture) error
	GetLectureByID(ctx context.Context, lectureID string) (*types.Lecture, error)
	ListLectures(ctx context.Context) ([]*types.Lecture, error)

	// Material operations
	CreateMaterial(ctx context.Context, material *types.Material) error
	ListLectureMaterials(ctx context.Context, lectureID string) ([]*types.Material, error)

	// Enrollment operations. EnrollStudent treats a duplicate enrollment
	// as benign success rather than a conflict.
	EnrollStudent(ctx context.Context, lectureID, accountID string) error
	IsEnrolled(ctx context.Context, lectureID, accountID string) (bool, error)

	// Cohort operations. AddCohortMember treats a duplicate membership as
	// benign success rather than a conflict.
	CreateCohort(ctx context.Context, cohort *types.Cohort) error
	GetCohortByCode(ctx context.Context, code string) (*types.Cohort, error)
	AddCohortMember(ctx context.Context, cohortID, accountID string) error
	IsCohortMember(ctx context.Context, cohortID, accountID string) (bool, error)

	// Health and lifecycle
	HealthCheck(ctx context.Context) error
	Close() error
}
