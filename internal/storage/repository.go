package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/terra-clan/judge-engine/internal/models"
)

// Common errors
var (
	ErrNotFound        = fmt.Errorf("record %w", models.ErrNotFound)
	ErrAlreadyExists   = errors.New("record already exists")
	ErrVersionConflict = errors.New("record version conflict")
)

// AssignmentRepository persists judge assignments as whole aggregates.
//
// SaveAssignment is a compare-and-swap on Version: the stored version must equal
// a.Version, and on success a.Version is bumped to the new stored version.
type AssignmentRepository interface {
	CreateAssignment(ctx context.Context, a *models.JudgeAssignment) error
	GetAssignment(ctx context.Context, id models.AssignmentID) (*models.JudgeAssignment, error)
	FindByEmail(ctx context.Context, hackathonID models.HackathonID, email string) (*models.JudgeAssignment, error)
	FindActiveByHackathon(ctx context.Context, hackathonID models.HackathonID) ([]*models.JudgeAssignment, error)
	ListByHackathon(ctx context.Context, hackathonID models.HackathonID) ([]*models.JudgeAssignment, error)
	SaveAssignment(ctx context.Context, a *models.JudgeAssignment) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}

// SubmissionRepository reads submissions owned by the host application
type SubmissionRepository interface {
	FindByHackathon(ctx context.Context, hackathonID models.HackathonID) ([]models.Submission, error)
	FindByIDs(ctx context.Context, ids []models.SubmissionID) ([]models.Submission, error)
}
