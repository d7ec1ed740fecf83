package models

import "time"

// SubmissionStatus is the host application's submission state
type SubmissionStatus string

const (
	SubmissionDraft     SubmissionStatus = "draft"
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionWithdrawn SubmissionStatus = "withdrawn"
)

// Submission is a team project submitted to a hackathon.
// Owned by the host application, read-only here.
type Submission struct {
	ID                 SubmissionID       `json:"id"`
	HackathonID        HackathonID        `json:"hackathon_id"`
	TeamName           string             `json:"team_name"`
	Title              string             `json:"title"`
	ProblemStatementID ProblemStatementID `json:"problem_statement_id,omitempty"`
	Status             SubmissionStatus   `json:"status"`
	SubmittedAt        *time.Time         `json:"submitted_at,omitempty"`
}

// IsSubmitted reports whether the submission counts for judging
func (s *Submission) IsSubmitted() bool {
	return s.Status == SubmissionSubmitted
}
