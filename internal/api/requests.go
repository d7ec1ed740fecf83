package api

import "github.com/terra-clan/judge-engine/internal/models"

type inviteRequest struct {
	Email                  string           `json:"email"`
	DisplayName            string           `json:"display_name"`
	JudgeType              models.JudgeType `json:"judge_type"`
	SponsorCompany         string           `json:"sponsor_company"`
	CanJudgeSponsoredPS    bool             `json:"can_judge_sponsored_ps"`
	MaxSubmissionsPerJudge int              `json:"max_submissions_per_judge"`
}

type bindScopeRequest struct {
	Scope          models.Scope `json:"scope"`
	MaxSubmissions int          `json:"max_submissions"`
}

type assignRequest struct {
	Scope         models.Scope `json:"scope"`
	SubmissionIDs []string     `json:"submission_ids"`
}

// unassignRequest drops one submission, or all of the scope when SubmissionID is empty
type unassignRequest struct {
	Scope        models.Scope `json:"scope"`
	SubmissionID string       `json:"submission_id"`
}

type distributeRequest struct {
	Scope          models.Scope `json:"scope"`
	AssignmentIDs  []string     `json:"assignment_ids"`
	SubmissionIDs  []string     `json:"submission_ids"`
	ForceOverwrite bool         `json:"force_overwrite"`
}
