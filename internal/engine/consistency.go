package engine

import (
	"context"
	"log/slog"

	"github.com/terra-clan/judge-engine/internal/models"
)

// ConsistencyReport compares the overview with one judge's own view.
// It is diagnostic only; nothing is repaired.
type ConsistencyReport struct {
	HackathonID          models.HackathonID    `json:"hackathon_id"`
	JudgeEmail           string                `json:"judge_email"`
	OverviewMatchesJudge bool                  `json:"overview_matches_judge"`
	JudgeMatchesOverview bool                  `json:"judge_matches_overview"`
	MissingFromOverview  []models.SubmissionID `json:"missing_from_overview"`
}

// Consistent reports whether both directions agree
func (r *ConsistencyReport) Consistent() bool {
	return r.OverviewMatchesJudge && r.JudgeMatchesOverview
}

// VerifyConsistency checks that the overview and a judge's view agree
func (e *Engine) VerifyConsistency(ctx context.Context, hackathonID models.HackathonID, email string) (*ConsistencyReport, error) {
	snap, err := e.loadSnapshot(ctx, hackathonID)
	if err != nil {
		return nil, err
	}

	report, err := verify(snap, buildOverview(snap), email)
	if err != nil {
		return nil, err
	}
	e.record(report)
	return report, nil
}

// VerifyHackathon checks every active judge of a hackathon against one snapshot
func (e *Engine) VerifyHackathon(ctx context.Context, hackathonID models.HackathonID) ([]*ConsistencyReport, error) {
	snap, err := e.loadSnapshot(ctx, hackathonID)
	if err != nil {
		return nil, err
	}

	ov := buildOverview(snap)
	reports := make([]*ConsistencyReport, 0, len(snap.assignments))
	for _, a := range snap.assignments {
		report, err := verify(snap, ov, a.Judge.Email)
		if err != nil {
			return nil, err
		}
		e.record(report)
		reports = append(reports, report)
	}
	return reports, nil
}

func (e *Engine) record(report *ConsistencyReport) {
	e.metrics.RecordConsistencyCheck(report.Consistent())
	if !report.Consistent() {
		slog.Warn("assignment overview disagrees with judge view",
			"hackathon_id", report.HackathonID,
			"email", report.JudgeEmail,
			"overview_matches_judge", report.OverviewMatchesJudge,
			"judge_matches_overview", report.JudgeMatchesOverview,
			"missing", len(report.MissingFromOverview),
		)
	}
}

func verify(snap *snapshot, ov *Overview, email string) (*ConsistencyReport, error) {
	view, err := buildJudgeView(snap, email)
	if err != nil {
		return nil, err
	}
	a := snap.assignment(email)

	attributed := make(map[models.SubmissionID]struct{})
	for _, as := range ov.Assigned {
		for _, ref := range as.Bindings {
			if ref.AssignmentID == a.ID {
				attributed[as.ID] = struct{}{}
				break
			}
		}
	}

	report := &ConsistencyReport{
		HackathonID:          snap.hackathonID,
		JudgeEmail:           a.Judge.Email,
		OverviewMatchesJudge: view.HasSpecificAssignments == (len(attributed) > 0),
		MissingFromOverview:  []models.SubmissionID{},
	}

	seen := make(map[models.SubmissionID]struct{})
	for _, sb := range a.ScopeBindings() {
		for _, id := range sb.SubmissionIDs {
			if _, ok := attributed[id]; ok {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			report.MissingFromOverview = append(report.MissingFromOverview, id)
		}
	}
	report.JudgeMatchesOverview = len(report.MissingFromOverview) == 0

	return report, nil
}
