package engine

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/terra-clan/judge-engine/internal/models"
)

// BindingRef attributes a submission to a judge within one scope
type BindingRef struct {
	AssignmentID models.AssignmentID `json:"assignment_id"`
	JudgeEmail   string              `json:"judge_email"`
	JudgeName    string              `json:"judge_name,omitempty"`
	Scope        models.Scope        `json:"scope"`
	RoundIndex   *int                `json:"round_index,omitempty"`
	RoundName    string              `json:"round_name,omitempty"`
}

// AssignedSubmission is a submission with the judges responsible for it
type AssignedSubmission struct {
	models.Submission
	Bindings []BindingRef `json:"bindings"`
}

// Overview is the hackathon-wide view of who judges what
type Overview struct {
	HackathonID      models.HackathonID   `json:"hackathon_id"`
	TotalSubmissions int                  `json:"total_submissions"`
	Unassigned       []models.Submission  `json:"unassigned"`
	Assigned         []AssignedSubmission `json:"assigned"`
}

// JudgeView is what one judge should see
type JudgeView struct {
	HackathonID            models.HackathonID  `json:"hackathon_id"`
	AssignmentID           models.AssignmentID `json:"assignment_id"`
	JudgeEmail             string              `json:"judge_email"`
	HasSpecificAssignments bool                `json:"has_specific_assignments"`
	Submissions            []models.Submission `json:"submissions"`
}

// snapshot is one consistent read of everything the views derive from
type snapshot struct {
	hackathonID models.HackathonID
	submissions []models.Submission        // submitted only, repository order
	assignments []*models.JudgeAssignment // active only
}

// Overview derives the submission-to-judge mapping of a hackathon from the store
func (e *Engine) Overview(ctx context.Context, hackathonID models.HackathonID) (*Overview, error) {
	snap, err := e.loadSnapshot(ctx, hackathonID)
	if err != nil {
		return nil, err
	}
	return buildOverview(snap), nil
}

// JudgeView derives the submissions a judge should evaluate
func (e *Engine) JudgeView(ctx context.Context, hackathonID models.HackathonID, email string) (*JudgeView, error) {
	snap, err := e.loadSnapshot(ctx, hackathonID)
	if err != nil {
		return nil, err
	}
	return buildJudgeView(snap, email)
}

// loadSnapshot reads submissions and active assignments concurrently
func (e *Engine) loadSnapshot(ctx context.Context, hackathonID models.HackathonID) (*snapshot, error) {
	snap := &snapshot{hackathonID: hackathonID}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if _, err := e.hackathons.GetRounds(gctx, hackathonID); err != nil {
			return fmt.Errorf("failed to load hackathon: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		all, err := e.submissions.FindByHackathon(gctx, hackathonID)
		if err != nil {
			return fmt.Errorf("failed to load submissions: %w", err)
		}
		for _, s := range all {
			if s.IsSubmitted() {
				snap.submissions = append(snap.submissions, s)
			}
		}
		return nil
	})

	g.Go(func() error {
		active, err := e.store.FindActiveByHackathon(gctx, hackathonID)
		if err != nil {
			return fmt.Errorf("failed to load active assignments: %w", err)
		}
		snap.assignments = active
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func buildOverview(snap *snapshot) *Overview {
	bindings := bindingsByScope(snap.assignments, nil)

	ov := &Overview{
		HackathonID:      snap.hackathonID,
		TotalSubmissions: len(snap.submissions),
		Unassigned:       []models.Submission{},
		Assigned:         []AssignedSubmission{},
	}
	for _, s := range snap.submissions {
		refs := bindings[s.ID]
		if len(refs) == 0 {
			ov.Unassigned = append(ov.Unassigned, s)
			continue
		}
		ov.Assigned = append(ov.Assigned, AssignedSubmission{Submission: s, Bindings: refs})
	}
	return ov
}

func buildJudgeView(snap *snapshot, email string) (*JudgeView, error) {
	a := snap.assignment(email)
	if a == nil {
		return nil, fmt.Errorf("active assignment for %s %w", models.NormalizeEmail(email), ErrNotFound)
	}

	view := &JudgeView{
		HackathonID:            snap.hackathonID,
		AssignmentID:           a.ID,
		JudgeEmail:             a.Judge.Email,
		HasSpecificAssignments: a.HasSpecificAssignments(),
		Submissions:            []models.Submission{},
	}

	if view.HasSpecificAssignments {
		mine := make(map[models.SubmissionID]struct{})
		for _, sb := range a.ScopeBindings() {
			for _, id := range sb.SubmissionIDs {
				mine[id] = struct{}{}
			}
		}
		for _, s := range snap.submissions {
			if _, ok := mine[s.ID]; ok {
				view.Submissions = append(view.Submissions, s)
			}
		}
		return view, nil
	}

	// no explicit bindings: the judge sees every submission of the problem statements it covers
	for _, s := range snap.submissions {
		if s.ProblemStatementID != "" && a.ProblemStatement(s.ProblemStatementID) != nil {
			view.Submissions = append(view.Submissions, s)
		}
	}
	return view, nil
}

func (s *snapshot) assignment(email string) *models.JudgeAssignment {
	key := models.AssignmentKey(s.hackathonID, email)
	for _, a := range s.assignments {
		if a.Key() == key {
			return a
		}
	}
	return nil
}

// bindingsInScope maps each submission bound in scope to its judges
func bindingsInScope(assignments []*models.JudgeAssignment, scope models.Scope) map[models.SubmissionID][]BindingRef {
	return bindingsByScope(assignments, &scope)
}

// bindingsByScope maps submissions to judges over every scope, or only the given one.
// References are sorted by judge email, then scope.
func bindingsByScope(assignments []*models.JudgeAssignment, only *models.Scope) map[models.SubmissionID][]BindingRef {
	out := make(map[models.SubmissionID][]BindingRef)
	for _, a := range assignments {
		for _, sb := range a.ScopeBindings() {
			if only != nil && sb.Scope != *only {
				continue
			}
			ref := BindingRef{
				AssignmentID: a.ID,
				JudgeEmail:   a.Judge.Email,
				JudgeName:    a.Judge.DisplayName,
				Scope:        sb.Scope,
				RoundName:    sb.RoundName,
			}
			if sb.Scope.Type == models.ScopeRound {
				idx := sb.Scope.RoundIndex
				ref.RoundIndex = &idx
			}
			for _, id := range sb.SubmissionIDs {
				out[id] = append(out[id], ref)
			}
		}
	}

	for _, refs := range out {
		sort.SliceStable(refs, func(i, j int) bool {
			if refs[i].JudgeEmail != refs[j].JudgeEmail {
				return refs[i].JudgeEmail < refs[j].JudgeEmail
			}
			return refs[i].Scope.Less(refs[j].Scope)
		})
	}
	return out
}
