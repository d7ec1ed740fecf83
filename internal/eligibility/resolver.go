// Package eligibility decides which scopes a judge may be bound to.
//
// All functions are pure over the given state.
package eligibility

import (
	"strings"

	"github.com/terra-clan/judge-engine/internal/models"
)

// Target is what a judge assignment is being bound to: either a problem
// statement or a round. Exactly one field is set.
type Target struct {
	ProblemStatement *models.ProblemStatement
	Round            *models.Round
}

// ForProblemStatement builds a problem statement target
func ForProblemStatement(ps models.ProblemStatement) Target {
	return Target{ProblemStatement: &ps}
}

// ForRound builds a round target
func ForRound(r models.Round) Target {
	return Target{Round: &r}
}

// CanBind reports whether the assignment may be bound to the target.
//
// Rules, first match wins:
//  1. general problem statement: platform or hybrid judges
//  2. sponsored problem statement: sponsor judges of the same company,
//     hybrid judges, or platform judges that opted in
//  3. round: the assignment must be active
func CanBind(a *models.JudgeAssignment, target Target) bool {
	if a == nil {
		return false
	}
	switch {
	case target.ProblemStatement != nil:
		return CanJudgeProblemStatement(a.Judge, *target.ProblemStatement)
	case target.Round != nil:
		return a.IsActive()
	default:
		return false
	}
}

// CanJudgeProblemStatement applies the judge-type rules to a problem statement
func CanJudgeProblemStatement(judge models.JudgeIdentity, ps models.ProblemStatement) bool {
	switch ps.Kind {
	case models.ProblemStatementGeneral:
		return canJudgeGeneral(judge)
	case models.ProblemStatementSponsored:
		if judge.JudgeType == models.JudgeSponsor {
			return judge.SponsorCompany != "" && sameCompany(judge.SponsorCompany, ps.SponsorCompany)
		}
		return canJudgeSponsored(judge)
	default:
		return false
	}
}

// Permissions derives the cached permission flags for a judge identity
func Permissions(judge models.JudgeIdentity, maxSubmissions int) models.Permissions {
	return models.Permissions{
		CanJudgeGeneralPS:      canJudgeGeneral(judge),
		CanJudgeSponsoredPS:    canJudgeSponsored(judge) || judge.JudgeType == models.JudgeSponsor,
		MaxSubmissionsPerJudge: maxSubmissions,
	}
}

func canJudgeGeneral(judge models.JudgeIdentity) bool {
	return judge.JudgeType == models.JudgePlatform || judge.JudgeType == models.JudgeHybrid
}

// canJudgeSponsored covers the company-independent sponsored rules
func canJudgeSponsored(judge models.JudgeIdentity) bool {
	switch judge.JudgeType {
	case models.JudgeHybrid:
		return true
	case models.JudgePlatform:
		return judge.CanJudgeSponsoredPS
	default:
		return false
	}
}

func sameCompany(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
