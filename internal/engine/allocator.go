package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/terra-clan/judge-engine/internal/eligibility"
	"github.com/terra-clan/judge-engine/internal/models"
	"github.com/terra-clan/judge-engine/internal/storage"
)

// BindScope makes a judge cover a scope without binding submissions.
// maxSubmissions sets the round cap; zero keeps the current or default cap.
func (e *Engine) BindScope(ctx context.Context, id models.AssignmentID, scope models.Scope, maxSubmissions int) (_ *models.JudgeAssignment, err error) {
	defer e.observe("bind_scope", time.Now(), &err)

	if maxSubmissions < 0 {
		return nil, fmt.Errorf("%w: max submissions must not be negative", ErrInvalidInput)
	}

	current, err := e.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	target, err := e.resolveTarget(ctx, current.HackathonID, scope)
	if err != nil {
		return nil, err
	}

	return e.mutate(ctx, "bind_scope", id, func(a *models.JudgeAssignment) (bool, error) {
		if err := checkEligible(a, target, scope); err != nil {
			return false, err
		}
		changed := e.ensureScope(a, target, maxSubmissions)
		if scope.Type == models.ScopeRound && maxSubmissions > 0 {
			rb := a.Round(scope.RoundIndex)
			if rb.MaxSubmissions != maxSubmissions {
				if len(rb.AssignedSubmissionIDs) > maxSubmissions {
					return false, &CapacityError{
						AssignmentID: a.ID,
						JudgeEmail:   a.Judge.Email,
						RoundIndex:   rb.RoundIndex,
						Requested:    len(rb.AssignedSubmissionIDs),
						Max:          maxSubmissions,
					}
				}
				rb.MaxSubmissions = maxSubmissions
				changed = true
			}
		}
		return changed, nil
	})
}

// UnbindScope drops a scope entry and its submissions from a judge
func (e *Engine) UnbindScope(ctx context.Context, id models.AssignmentID, scope models.Scope) (_ *models.JudgeAssignment, err error) {
	defer e.observe("unbind_scope", time.Now(), &err)

	if err := validateScope(scope); err != nil {
		return nil, err
	}

	return e.mutate(ctx, "unbind_scope", id, func(a *models.JudgeAssignment) (bool, error) {
		return a.RemoveScope(scope), nil
	})
}

// Assign adds submissions to a judge's scope entry, creating the entry if needed.
// The resulting set is the deduplicated union of existing and new ids.
func (e *Engine) Assign(ctx context.Context, id models.AssignmentID, scope models.Scope, submissionIDs []models.SubmissionID) (_ *models.JudgeAssignment, err error) {
	defer e.observe("assign", time.Now(), &err)

	ids := dedupe(submissionIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no submission ids", ErrInvalidInput)
	}

	current, err := e.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	target, err := e.resolveTarget(ctx, current.HackathonID, scope)
	if err != nil {
		return nil, err
	}
	if err := e.checkSubmissions(ctx, current.HackathonID, ids); err != nil {
		return nil, err
	}

	return e.mutate(ctx, "assign", id, func(a *models.JudgeAssignment) (bool, error) {
		if err := checkEligible(a, target, scope); err != nil {
			return false, err
		}
		created := e.ensureScope(a, target, 0)
		existing := a.SubmissionsIn(scope)
		merged := models.UnionSubmissions(existing, ids)
		if err := checkCapacity(a, scope, len(merged)); err != nil {
			return false, err
		}
		if !created && len(merged) == len(existing) {
			return false, nil
		}
		a.SetSubmissions(scope, merged)
		return true, nil
	})
}

// UnassignAll clears a scope's submissions. The scope stays covered.
func (e *Engine) UnassignAll(ctx context.Context, id models.AssignmentID, scope models.Scope) (_ *models.JudgeAssignment, err error) {
	defer e.observe("unassign_all", time.Now(), &err)

	if err := validateScope(scope); err != nil {
		return nil, err
	}

	return e.mutate(ctx, "unassign_all", id, func(a *models.JudgeAssignment) (bool, error) {
		if !a.HasScope(scope) {
			return false, fmt.Errorf("scope %s %w", scope, ErrNotFound)
		}
		if len(a.SubmissionsIn(scope)) == 0 {
			return false, nil
		}
		a.SetSubmissions(scope, []models.SubmissionID{})
		return true, nil
	})
}

// UnassignOne removes a single submission from a scope; absent ids are a no-op
func (e *Engine) UnassignOne(ctx context.Context, id models.AssignmentID, scope models.Scope, submissionID models.SubmissionID) (_ *models.JudgeAssignment, err error) {
	defer e.observe("unassign_one", time.Now(), &err)

	if err := validateScope(scope); err != nil {
		return nil, err
	}
	if submissionID == "" {
		return nil, fmt.Errorf("%w: submission id is required", ErrInvalidInput)
	}

	return e.mutate(ctx, "unassign_one", id, func(a *models.JudgeAssignment) (bool, error) {
		if !a.HasScope(scope) {
			return false, fmt.Errorf("scope %s %w", scope, ErrNotFound)
		}
		existing := a.SubmissionsIn(scope)
		remaining := models.WithoutSubmissions(existing, map[models.SubmissionID]struct{}{submissionID: {}})
		if len(remaining) == len(existing) {
			return false, nil
		}
		a.SetSubmissions(scope, remaining)
		return true, nil
	})
}

// DistributeRequest holds the parameters of AutoDistribute
type DistributeRequest struct {
	HackathonID    models.HackathonID
	Scope          models.Scope
	AssignmentIDs  []models.AssignmentID
	SubmissionIDs  []models.SubmissionID
	ForceOverwrite bool
}

// Share is the chunk of submissions given to one judge
type Share struct {
	AssignmentID  models.AssignmentID   `json:"assignment_id"`
	JudgeEmail    string                `json:"judge_email"`
	SubmissionIDs []models.SubmissionID `json:"submission_ids"`
}

// DistributionResult describes a completed auto-distribution
type DistributionResult struct {
	Scope       models.Scope          `json:"scope"`
	Shares      []Share               `json:"shares"`
	Overwritten []models.SubmissionID `json:"overwritten"`
	Persisted   []models.AssignmentID `json:"persisted"`
}

// AutoDistribute partitions submissions across judges within a scope.
//
// Submissions already bound in the scope fail the call with a ConflictError unless
// ForceOverwrite is set, in which case they are moved. The target state of every
// affected assignment is computed before anything is saved; a cap breach fails the
// whole call. Saves are sequential, and a failure after the first save returns a
// PartialDistributionError.
func (e *Engine) AutoDistribute(ctx context.Context, req DistributeRequest) (_ *DistributionResult, err error) {
	defer e.observe("auto_distribute", time.Now(), &err)

	submissionIDs := dedupe(req.SubmissionIDs)
	if len(req.AssignmentIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one assignment is required", ErrInvalidInput)
	}
	seen := make(map[models.AssignmentID]struct{}, len(req.AssignmentIDs))
	for _, id := range req.AssignmentIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: assignment %s listed twice", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}

	target, err := e.resolveTarget(ctx, req.HackathonID, req.Scope)
	if err != nil {
		return nil, err
	}

	result := &DistributionResult{Scope: req.Scope}
	if len(submissionIDs) == 0 {
		return result, nil
	}
	if err := e.checkSubmissions(ctx, req.HackathonID, submissionIDs); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		result, err = e.distributeOnce(ctx, req, target, submissionIDs)
		var partial *PartialDistributionError
		if errors.As(err, &partial) || !errors.Is(err, storage.ErrVersionConflict) {
			break
		}
		if attempt >= e.cfg.MaxRetries {
			return nil, fmt.Errorf("%w: distribution in %s", ErrConcurrentModification, req.Scope)
		}
		e.metrics.RecordRetry("auto_distribute")
		slog.Debug("distribution version conflict, retrying", "hackathon_id", req.HackathonID, "attempt", attempt+1)
	}
	if err != nil {
		return nil, err
	}

	placed := 0
	for _, s := range result.Shares {
		placed += len(s.SubmissionIDs)
	}
	e.metrics.RecordDistributed(placed)

	slog.Info("submissions distributed",
		"hackathon_id", req.HackathonID,
		"scope", req.Scope.String(),
		"judges", len(result.Shares),
		"submissions", placed,
		"overwritten", len(result.Overwritten),
		"persisted", len(result.Persisted),
	)

	return result, nil
}

// distributeOnce performs one locked attempt. A storage.ErrVersionConflict
// return means nothing was persisted and the attempt may be retried.
func (e *Engine) distributeOnce(ctx context.Context, req DistributeRequest, target eligibility.Target, submissionIDs []models.SubmissionID) (*DistributionResult, error) {
	active, err := e.store.FindActiveByHackathon(ctx, req.HackathonID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active assignments: %w", err)
	}

	keys := make([]string, 0, len(active))
	for _, a := range active {
		keys = append(keys, a.Key())
	}
	unlock := e.locks.lock(keys...)
	defer unlock()

	// reload under the locks
	active, err = e.store.FindActiveByHackathon(ctx, req.HackathonID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active assignments: %w", err)
	}

	byID := make(map[models.AssignmentID]*models.JudgeAssignment, len(active))
	for _, a := range active {
		byID[a.ID] = a
	}

	judges := make([]*models.JudgeAssignment, 0, len(req.AssignmentIDs))
	for _, id := range req.AssignmentIDs {
		a, ok := byID[id]
		if !ok {
			return nil, e.inactiveTargetError(ctx, req.HackathonID, id)
		}
		if err := checkEligible(a, target, req.Scope); err != nil {
			return nil, err
		}
		judges = append(judges, a)
	}

	input := make(map[models.SubmissionID]struct{}, len(submissionIDs))
	for _, id := range submissionIDs {
		input[id] = struct{}{}
	}

	bound := bindingsInScope(active, req.Scope)
	var conflicts []models.SubmissionID
	for _, id := range submissionIDs {
		if len(bound[id]) > 0 {
			conflicts = append(conflicts, id)
		}
	}
	if len(conflicts) > 0 && !req.ForceOverwrite {
		return nil, &ConflictError{Scope: req.Scope, SubmissionIDs: conflicts}
	}

	chunks := partition(submissionIDs, len(judges))
	owner := make(map[models.SubmissionID]models.AssignmentID, len(submissionIDs))
	for i, chunk := range chunks {
		for _, id := range chunk {
			owner[id] = judges[i].ID
		}
	}

	// compute the target state of every active assignment before saving any
	working := make([]*models.JudgeAssignment, len(active))
	changed := make([]bool, len(active))
	for i, a := range active {
		w := a.Clone()
		if w.HasScope(req.Scope) {
			existing := w.SubmissionsIn(req.Scope)
			kept := existing[:0:0]
			for _, id := range existing {
				if _, in := input[id]; in && owner[id] != w.ID {
					continue
				}
				kept = append(kept, id)
			}
			if len(kept) != len(existing) {
				w.SetSubmissions(req.Scope, kept)
				changed[i] = true
			}
		}
		working[i] = w
	}

	index := make(map[models.AssignmentID]int, len(active))
	for i, a := range active {
		index[a.ID] = i
	}

	result := &DistributionResult{Scope: req.Scope}
	for _, id := range conflicts {
		for _, ref := range bound[id] {
			if ref.AssignmentID != owner[id] {
				result.Overwritten = append(result.Overwritten, id)
				break
			}
		}
	}

	for i, chunk := range chunks {
		pos := index[judges[i].ID]
		w := working[pos]
		if len(chunk) > 0 && e.ensureScope(w, target, 0) {
			changed[pos] = true
		}
		existing := w.SubmissionsIn(req.Scope)
		merged := models.UnionSubmissions(existing, chunk)
		if err := checkCapacity(w, req.Scope, len(merged)); err != nil {
			return nil, err
		}
		if len(merged) != len(existing) {
			w.SetSubmissions(req.Scope, merged)
			changed[pos] = true
		}
		result.Shares = append(result.Shares, Share{
			AssignmentID:  w.ID,
			JudgeEmail:    w.Judge.Email,
			SubmissionIDs: chunk,
		})
	}

	var pending []*models.JudgeAssignment
	for i, w := range working {
		if changed[i] {
			pending = append(pending, w)
		}
	}

	for i, w := range pending {
		e.touch(w)
		err := e.store.SaveAssignment(ctx, w)
		if err == nil {
			result.Persisted = append(result.Persisted, w.ID)
			continue
		}
		if i == 0 && errors.Is(err, storage.ErrVersionConflict) {
			return nil, err
		}

		slog.Error("distribution stopped while persisting",
			"hackathon_id", req.HackathonID,
			"scope", req.Scope.String(),
			"assignment_id", w.ID,
			"persisted", len(result.Persisted),
			"error", err,
		)

		if i == 0 {
			return nil, e.storeError(err, "failed to save assignment")
		}
		rest := make([]models.AssignmentID, 0, len(pending)-i)
		for _, p := range pending[i:] {
			rest = append(rest, p.ID)
		}
		return nil, &PartialDistributionError{Persisted: result.Persisted, Pending: rest, Err: err}
	}

	return result, nil
}

// inactiveTargetError explains why an assignment is not a distribution target
func (e *Engine) inactiveTargetError(ctx context.Context, hackathonID models.HackathonID, id models.AssignmentID) error {
	a, err := e.store.GetAssignment(ctx, id)
	if err != nil {
		return e.storeError(err, "failed to get assignment")
	}
	if a.HackathonID != hackathonID {
		return fmt.Errorf("assignment %s in hackathon %s %w", id, hackathonID, ErrNotFound)
	}
	return fmt.Errorf("%w: assignment %s is %s", ErrNotEligible, id, a.Status)
}

// resolveTarget looks up the round or problem statement named by scope
func (e *Engine) resolveTarget(ctx context.Context, hackathonID models.HackathonID, scope models.Scope) (eligibility.Target, error) {
	if err := validateScope(scope); err != nil {
		return eligibility.Target{}, err
	}

	if scope.Type == models.ScopeRound {
		rounds, err := e.hackathons.GetRounds(ctx, hackathonID)
		if err != nil {
			return eligibility.Target{}, fmt.Errorf("failed to load rounds: %w", err)
		}
		for _, r := range rounds {
			if r.Index == scope.RoundIndex {
				return eligibility.ForRound(r), nil
			}
		}
		return eligibility.Target{}, fmt.Errorf("round %d %w", scope.RoundIndex, ErrNotFound)
	}

	statements, err := e.hackathons.GetProblemStatements(ctx, hackathonID)
	if err != nil {
		return eligibility.Target{}, fmt.Errorf("failed to load problem statements: %w", err)
	}
	for _, ps := range statements {
		if ps.ID == scope.ProblemStatementID {
			return eligibility.ForProblemStatement(ps), nil
		}
	}
	return eligibility.Target{}, fmt.Errorf("problem statement %s %w", scope.ProblemStatementID, ErrNotFound)
}

// checkSubmissions requires every id to be a submitted submission of the hackathon
func (e *Engine) checkSubmissions(ctx context.Context, hackathonID models.HackathonID, ids []models.SubmissionID) error {
	found, err := e.submissions.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load submissions: %w", err)
	}

	byID := make(map[models.SubmissionID]models.Submission, len(found))
	for _, s := range found {
		byID[s.ID] = s
	}

	for _, id := range ids {
		s, ok := byID[id]
		if !ok || s.HackathonID != hackathonID {
			return fmt.Errorf("submission %s %w", id, ErrNotFound)
		}
		if !s.IsSubmitted() {
			return fmt.Errorf("submitted submission %s %w (status %s)", id, ErrNotFound, s.Status)
		}
	}
	return nil
}

// ensureScope adds the scope entry for target if missing and reports whether it did.
// New round entries get maxSubmissions, falling back to the judge's default cap.
func (e *Engine) ensureScope(a *models.JudgeAssignment, target eligibility.Target, maxSubmissions int) bool {
	if target.Round != nil {
		if a.Round(target.Round.Index) != nil {
			return false
		}
		if maxSubmissions <= 0 {
			maxSubmissions = a.Permissions.MaxSubmissionsPerJudge
		}
		if maxSubmissions <= 0 {
			maxSubmissions = e.cfg.DefaultMaxSubmissions
		}
		a.AssignedRounds = append(a.AssignedRounds, models.RoundBinding{
			RoundIndex:            target.Round.Index,
			RoundName:             target.Round.Name,
			RoundType:             target.Round.Type,
			AssignedSubmissionIDs: []models.SubmissionID{},
			MaxSubmissions:        maxSubmissions,
		})
		return true
	}

	ps := target.ProblemStatement
	if a.ProblemStatement(ps.ID) != nil {
		return false
	}
	a.AssignedProblemStatements = append(a.AssignedProblemStatements, models.ProblemStatementBinding{
		ProblemStatementID:    ps.ID,
		Kind:                  ps.Kind,
		SponsorCompany:        ps.SponsorCompany,
		AssignedSubmissionIDs: []models.SubmissionID{},
	})
	return true
}

// checkEligible requires an active assignment the resolver accepts for target
func checkEligible(a *models.JudgeAssignment, target eligibility.Target, scope models.Scope) error {
	if !a.IsActive() {
		return fmt.Errorf("%w: assignment %s is %s", ErrNotEligible, a.ID, a.Status)
	}
	if !eligibility.CanBind(a, target) {
		return fmt.Errorf("%w: %s judge %s cannot judge %s", ErrNotEligible, a.Judge.JudgeType, a.Judge.Email, scope)
	}
	return nil
}

// checkCapacity enforces the round cap; problem statement scopes are uncapped
func checkCapacity(a *models.JudgeAssignment, scope models.Scope, size int) error {
	if scope.Type != models.ScopeRound {
		return nil
	}
	rb := a.Round(scope.RoundIndex)
	if rb == nil || size <= rb.MaxSubmissions {
		return nil
	}
	return &CapacityError{
		AssignmentID: a.ID,
		JudgeEmail:   a.Judge.Email,
		RoundIndex:   rb.RoundIndex,
		Requested:    size,
		Max:          rb.MaxSubmissions,
	}
}

func validateScope(scope models.Scope) error {
	if err := scope.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// partition splits ids into k contiguous chunks in input order.
// Sizes differ by at most one and earlier chunks are the larger ones.
func partition(ids []models.SubmissionID, k int) [][]models.SubmissionID {
	chunks := make([][]models.SubmissionID, k)
	base, extra := len(ids)/k, len(ids)%k
	start := 0
	for i := 0; i < k; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks[i] = ids[start : start+size : start+size]
		start += size
	}
	return chunks
}

// dedupe drops repeated and empty ids, keeping first occurrences in order
func dedupe(ids []models.SubmissionID) []models.SubmissionID {
	seen := make(map[models.SubmissionID]struct{}, len(ids))
	out := make([]models.SubmissionID, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
