package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/terra-clan/judge-engine/internal/models"
)

// Common errors
var (
	ErrNotFound                  = models.ErrNotFound
	ErrNotEligible               = errors.New("judge is not eligible for scope")
	ErrCapacityExceeded          = errors.New("round capacity exceeded")
	ErrConflictRequiresOverwrite = errors.New("submissions already bound in scope, overwrite required")
	ErrConcurrentModification    = errors.New("assignment was modified concurrently")
	ErrInvalidInput              = errors.New("invalid input")
	ErrAlreadyInvited            = errors.New("judge already invited")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrPartialDistribution       = errors.New("distribution was only partially persisted")
)

// CapacityError reports a binding that would exceed a round cap
type CapacityError struct {
	AssignmentID models.AssignmentID
	JudgeEmail   string
	RoundIndex   int
	Requested    int
	Max          int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: judge %s round %d would hold %d submissions, max %d",
		ErrCapacityExceeded, e.JudgeEmail, e.RoundIndex, e.Requested, e.Max)
}

// Is matches ErrCapacityExceeded
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// ConflictError lists submissions already bound in the scope
type ConflictError struct {
	Scope         models.Scope
	SubmissionIDs []models.SubmissionID
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.SubmissionIDs))
	for i, id := range e.SubmissionIDs {
		ids[i] = string(id)
	}
	return fmt.Sprintf("%s: %s [%s]", ErrConflictRequiresOverwrite, e.Scope, strings.Join(ids, ", "))
}

// Is matches ErrConflictRequiresOverwrite
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflictRequiresOverwrite
}

// PartialDistributionError is returned when persisting stopped midway.
// Persisted assignments keep their new state; Pending ones were not written.
type PartialDistributionError struct {
	Persisted []models.AssignmentID
	Pending   []models.AssignmentID
	Err       error
}

func (e *PartialDistributionError) Error() string {
	return fmt.Sprintf("%s: %d persisted, %d pending: %v",
		ErrPartialDistribution, len(e.Persisted), len(e.Pending), e.Err)
}

// Is matches ErrPartialDistribution
func (e *PartialDistributionError) Is(target error) bool {
	return target == ErrPartialDistribution
}

func (e *PartialDistributionError) Unwrap() error {
	return e.Err
}

// resultLabel maps an operation error to a metrics label
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrConflictRequiresOverwrite):
		return "conflict"
	case errors.Is(err, ErrPartialDistribution):
		return "partial"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrAlreadyInvited):
		return "rejected"
	default:
		return "error"
	}
}
