// Package engine assigns judges to hackathon scopes and distributes
// submissions among them.
//
// Every mutation is a whole-aggregate read-modify-write of one or more
// JudgeAssignments, serialised per (hackathon, email) in process and guarded
// by the store's version check across processes. Views are always derived
// from a fresh snapshot of the store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/judge-engine/internal/eligibility"
	"github.com/terra-clan/judge-engine/internal/metrics"
	"github.com/terra-clan/judge-engine/internal/models"
	"github.com/terra-clan/judge-engine/internal/storage"
)

// HackathonRepository supplies the problem statements and rounds of a hackathon
type HackathonRepository interface {
	GetProblemStatements(ctx context.Context, hackathonID models.HackathonID) ([]models.ProblemStatement, error)
	GetRounds(ctx context.Context, hackathonID models.HackathonID) ([]models.Round, error)
}

// Notifier delivers a message to a judge. Calls are fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, recipient, message string) error
}

// Config holds engine tunables
type Config struct {
	DefaultMaxSubmissions int
	MaxRetries            int
	NotifyTimeout         time.Duration
}

// Engine implements the judge assignment operations
type Engine struct {
	store       storage.AssignmentRepository
	submissions storage.SubmissionRepository
	hackathons  HackathonRepository
	notifier    Notifier
	metrics     metrics.Recorder
	locks       *keyedLocker
	pending     sync.WaitGroup
	cfg         Config
	now         func() time.Time
	newID       func() models.AssignmentID
}

// Option configures an Engine
type Option func(*Engine)

// WithNotifier sets the notification sender
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides assignment id generation
func WithIDGenerator(gen func() models.AssignmentID) Option {
	return func(e *Engine) {
		e.newID = gen
	}
}

// New creates an Engine
func New(
	store storage.AssignmentRepository,
	submissions storage.SubmissionRepository,
	hackathons HackathonRepository,
	cfg Config,
	opts ...Option,
) *Engine {
	if cfg.DefaultMaxSubmissions <= 0 {
		cfg.DefaultMaxSubmissions = 50
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}

	e := &Engine{
		store:       store,
		submissions: submissions,
		hackathons:  hackathons,
		metrics:     metrics.NewNop(),
		locks:       newKeyedLocker(),
		cfg:         cfg,
		now:         time.Now,
		newID: func() models.AssignmentID {
			return models.AssignmentID(uuid.New().String())
		},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// InviteRequest holds the parameters of InviteJudge
type InviteRequest struct {
	HackathonID            models.HackathonID
	Email                  string
	DisplayName            string
	JudgeType              models.JudgeType
	SponsorCompany         string
	CanJudgeSponsoredPS    bool
	MaxSubmissionsPerJudge int
}

func (r InviteRequest) validate() error {
	if r.HackathonID == "" {
		return fmt.Errorf("%w: hackathon id is required", ErrInvalidInput)
	}
	email := models.NormalizeEmail(r.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("%w: invalid judge email %q", ErrInvalidInput, r.Email)
	}
	if !r.JudgeType.Valid() {
		return fmt.Errorf("%w: unknown judge type %q", ErrInvalidInput, r.JudgeType)
	}
	if r.JudgeType == models.JudgeSponsor && strings.TrimSpace(r.SponsorCompany) == "" {
		return fmt.Errorf("%w: sponsor judges need a sponsor company", ErrInvalidInput)
	}
	if r.MaxSubmissionsPerJudge < 0 {
		return fmt.Errorf("%w: max submissions must not be negative", ErrInvalidInput)
	}
	return nil
}

// InviteJudge creates a pending assignment for a judge, or revives a removed one
func (e *Engine) InviteJudge(ctx context.Context, req InviteRequest) (_ *models.JudgeAssignment, err error) {
	defer e.observe("invite", time.Now(), &err)

	if err := req.validate(); err != nil {
		return nil, err
	}
	if _, err := e.hackathons.GetRounds(ctx, req.HackathonID); err != nil {
		return nil, fmt.Errorf("failed to load hackathon: %w", err)
	}

	maxSubmissions := req.MaxSubmissionsPerJudge
	if maxSubmissions == 0 {
		maxSubmissions = e.cfg.DefaultMaxSubmissions
	}

	identity := models.JudgeIdentity{
		Email:               models.NormalizeEmail(req.Email),
		DisplayName:         strings.TrimSpace(req.DisplayName),
		JudgeType:           req.JudgeType,
		CanJudgeSponsoredPS: req.CanJudgeSponsoredPS,
	}
	if req.JudgeType == models.JudgeSponsor {
		identity.SponsorCompany = strings.TrimSpace(req.SponsorCompany)
	}

	unlock := e.locks.lock(models.AssignmentKey(req.HackathonID, identity.Email))
	defer unlock()

	existing, err := e.store.FindByEmail(ctx, req.HackathonID, identity.Email)
	switch {
	case err == nil:
		return e.reinvite(ctx, existing.ID, identity, maxSubmissions)
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to look up judge: %w", err)
	}

	now := e.now()
	a := &models.JudgeAssignment{
		ID:          e.newID(),
		HackathonID: req.HackathonID,
		Judge:       identity,
		Permissions: eligibility.Permissions(identity, maxSubmissions),
		Status:      models.AssignmentPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		InvitedAt:   now,
	}

	if err := e.store.CreateAssignment(ctx, a); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, ErrAlreadyInvited
		}
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	slog.Info("judge invited",
		"hackathon_id", a.HackathonID,
		"assignment_id", a.ID,
		"email", identity.Email,
		"judge_type", identity.JudgeType,
	)

	e.notifyAsync(identity.Email, fmt.Sprintf("You have been invited to judge hackathon %s", a.HackathonID))

	return a, nil
}

// reinvite resets a removed assignment to pending; the caller holds its lock
func (e *Engine) reinvite(ctx context.Context, id models.AssignmentID, identity models.JudgeIdentity, maxSubmissions int) (*models.JudgeAssignment, error) {
	a, err := e.mutateLocked(ctx, "invite", id, func(a *models.JudgeAssignment) (bool, error) {
		if a.Status != models.AssignmentRemoved {
			return false, fmt.Errorf("%w: %s is %s", ErrAlreadyInvited, identity.Email, a.Status)
		}

		a.Judge = identity
		a.Permissions = eligibility.Permissions(identity, maxSubmissions)
		a.Status = models.AssignmentPending
		a.ClearBindings()
		a.InvitedAt = e.now()
		a.ActivatedAt = nil
		a.RemovedAt = nil
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("judge re-invited", "hackathon_id", a.HackathonID, "assignment_id", a.ID, "email", identity.Email)

	e.notifyAsync(identity.Email, fmt.Sprintf("You have been invited to judge hackathon %s", a.HackathonID))

	return a, nil
}

// ActivateJudge moves a judge's assignment from pending to active
func (e *Engine) ActivateJudge(ctx context.Context, hackathonID models.HackathonID, email string) (_ *models.JudgeAssignment, err error) {
	defer e.observe("activate", time.Now(), &err)

	a, err := e.store.FindByEmail(ctx, hackathonID, email)
	if err != nil {
		return nil, e.storeError(err, "failed to look up judge")
	}

	return e.mutate(ctx, "activate", a.ID, func(a *models.JudgeAssignment) (bool, error) {
		switch a.Status {
		case models.AssignmentActive:
			return false, nil
		case models.AssignmentPending:
			now := e.now()
			a.Status = models.AssignmentActive
			a.ActivatedAt = &now
			return true, nil
		default:
			return false, fmt.Errorf("%w: cannot activate a %s assignment", ErrInvalidTransition, a.Status)
		}
	})
}

// RemoveAssignment soft-deletes an assignment; metrics and history are kept
func (e *Engine) RemoveAssignment(ctx context.Context, id models.AssignmentID) (_ *models.JudgeAssignment, err error) {
	defer e.observe("remove", time.Now(), &err)

	removed := false
	a, err := e.mutate(ctx, "remove", id, func(a *models.JudgeAssignment) (bool, error) {
		if a.Status == models.AssignmentRemoved {
			return false, nil
		}
		now := e.now()
		a.Status = models.AssignmentRemoved
		a.RemovedAt = &now
		removed = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if removed {
		slog.Info("judge assignment removed", "hackathon_id", a.HackathonID, "assignment_id", a.ID)
		e.notifyAsync(a.Judge.Email, fmt.Sprintf("Your judging assignment for hackathon %s was revoked", a.HackathonID))
	}

	return a, nil
}

// CompleteAssignment marks an active assignment as finished
func (e *Engine) CompleteAssignment(ctx context.Context, id models.AssignmentID) (_ *models.JudgeAssignment, err error) {
	defer e.observe("complete", time.Now(), &err)

	return e.mutate(ctx, "complete", id, func(a *models.JudgeAssignment) (bool, error) {
		switch a.Status {
		case models.AssignmentCompleted:
			return false, nil
		case models.AssignmentActive:
			a.Status = models.AssignmentCompleted
			return true, nil
		default:
			return false, fmt.Errorf("%w: cannot complete a %s assignment", ErrInvalidTransition, a.Status)
		}
	})
}

// GetAssignment returns an assignment by id
func (e *Engine) GetAssignment(ctx context.Context, id models.AssignmentID) (*models.JudgeAssignment, error) {
	a, err := e.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, e.storeError(err, "failed to get assignment")
	}
	return a, nil
}

// ListAssignments returns every assignment of a hackathon regardless of status
func (e *Engine) ListAssignments(ctx context.Context, hackathonID models.HackathonID) ([]*models.JudgeAssignment, error) {
	list, err := e.store.ListByHackathon(ctx, hackathonID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return list, nil
}

// mutate runs a read-modify-write of one assignment under its key lock.
// fn reports whether it changed the aggregate; unchanged aggregates are not saved.
// Version conflicts are retried up to MaxRetries times.
func (e *Engine) mutate(ctx context.Context, op string, id models.AssignmentID, fn func(a *models.JudgeAssignment) (bool, error)) (*models.JudgeAssignment, error) {
	current, err := e.store.GetAssignment(ctx, id)
	if err != nil {
		return nil, e.storeError(err, "failed to get assignment")
	}

	unlock := e.locks.lock(current.Key())
	defer unlock()

	return e.mutateLocked(ctx, op, id, fn)
}

// mutateLocked is mutate for callers already holding the assignment's key lock
func (e *Engine) mutateLocked(ctx context.Context, op string, id models.AssignmentID, fn func(a *models.JudgeAssignment) (bool, error)) (*models.JudgeAssignment, error) {
	for attempt := 0; ; attempt++ {
		a, err := e.store.GetAssignment(ctx, id)
		if err != nil {
			return nil, e.storeError(err, "failed to get assignment")
		}

		changed, err := fn(a)
		if err != nil {
			return nil, err
		}
		if !changed {
			return a, nil
		}

		e.touch(a)
		err = e.store.SaveAssignment(ctx, a)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			return nil, e.storeError(err, "failed to save assignment")
		}
		if attempt >= e.cfg.MaxRetries {
			return nil, fmt.Errorf("%w: %s", ErrConcurrentModification, id)
		}

		e.metrics.RecordRetry(op)
		slog.Debug("assignment version conflict, retrying", "op", op, "assignment_id", id, "attempt", attempt+1)
	}
}

// touch refreshes derived fields before a save
func (e *Engine) touch(a *models.JudgeAssignment) {
	a.Permissions = eligibility.Permissions(a.Judge, a.Permissions.MaxSubmissionsPerJudge)
	a.UpdatedAt = e.now()
}

// storeError translates repository errors into engine errors
func (e *Engine) storeError(err error, msg string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("assignment %w", ErrNotFound)
	case errors.Is(err, storage.ErrVersionConflict):
		return ErrConcurrentModification
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

func (e *Engine) observe(op string, start time.Time, errp *error) {
	e.metrics.RecordOperation(op, resultLabel(*errp), time.Since(start))
}

// notifyAsync sends a notification in the background
func (e *Engine) notifyAsync(recipient, message string) {
	if e.notifier == nil {
		return
	}

	e.pending.Add(1)
	go func() {
		defer e.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.NotifyTimeout)
		defer cancel()

		if err := e.notifier.Notify(ctx, recipient, message); err != nil {
			e.metrics.RecordNotification("failed")
			slog.Warn("failed to notify judge", "recipient", recipient, "error", err)
			return
		}
		e.metrics.RecordNotification("sent")
	}()
}

// Wait blocks until every in-flight notification has finished.
// Call it after the HTTP server has stopped and before closing the notifier.
func (e *Engine) Wait() {
	e.pending.Wait()
}
