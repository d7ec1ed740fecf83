package models

import (
	"slices"
	"time"
)

// JudgeType decides which problem statements a judge may evaluate
type JudgeType string

const (
	JudgePlatform JudgeType = "platform"
	JudgeSponsor  JudgeType = "sponsor"
	JudgeHybrid   JudgeType = "hybrid"
)

// Valid reports whether the type is one of the known judge types
func (t JudgeType) Valid() bool {
	return t == JudgePlatform || t == JudgeSponsor || t == JudgeHybrid
}

// AssignmentStatus represents the lifecycle state of a judge assignment
type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"   // Invited, waiting for acceptance
	AssignmentActive    AssignmentStatus = "active"    // Accepted, can receive submissions
	AssignmentCompleted AssignmentStatus = "completed" // Judging finished
	AssignmentRemoved   AssignmentStatus = "removed"   // Revoked by an organizer, kept for history
)

// JudgeIdentity describes who the judge is within one hackathon
type JudgeIdentity struct {
	Email               string    `json:"email"`
	DisplayName         string    `json:"display_name"`
	JudgeType           JudgeType `json:"judge_type"`
	SponsorCompany      string    `json:"sponsor_company,omitempty"`
	CanJudgeSponsoredPS bool      `json:"can_judge_sponsored_ps"`
}

// ProblemStatementBinding is a problem statement scope covered by a judge.
// Problem statement scopes are uncapped.
type ProblemStatementBinding struct {
	ProblemStatementID    ProblemStatementID   `json:"problem_statement_id"`
	Kind                  ProblemStatementKind `json:"kind"`
	SponsorCompany        string               `json:"sponsor_company,omitempty"`
	AssignedSubmissionIDs []SubmissionID       `json:"assigned_submission_ids"`
}

// RoundBinding is a round scope covered by a judge with its own cap
type RoundBinding struct {
	RoundIndex            int            `json:"round_index"`
	RoundName             string         `json:"round_name"`
	RoundType             string         `json:"round_type"`
	AssignedSubmissionIDs []SubmissionID `json:"assigned_submission_ids"`
	MaxSubmissions        int            `json:"max_submissions"`
}

// Permissions mirror the eligibility rules for the judge identity
type Permissions struct {
	CanJudgeGeneralPS      bool `json:"can_judge_general_ps"`
	CanJudgeSponsoredPS    bool `json:"can_judge_sponsored_ps"`
	MaxSubmissionsPerJudge int  `json:"max_submissions_per_judge"`
}

// Metrics are maintained by the scoring subsystem
type Metrics struct {
	SubmissionsScored int        `json:"submissions_scored"`
	AverageScore      float64    `json:"average_score"`
	LastScoredAt      *time.Time `json:"last_scored_at,omitempty"`
}

// JudgeAssignment is the per-judge, per-hackathon aggregate
type JudgeAssignment struct {
	ID                        AssignmentID              `json:"id"`
	HackathonID               HackathonID               `json:"hackathon_id"`
	Judge                     JudgeIdentity             `json:"judge"`
	AssignedProblemStatements []ProblemStatementBinding `json:"assigned_problem_statements"`
	AssignedRounds            []RoundBinding            `json:"assigned_rounds"`
	Permissions               Permissions               `json:"permissions"`
	Status                    AssignmentStatus          `json:"status"`
	Metrics                   Metrics                   `json:"metrics"`
	Version                   int64                     `json:"version"`
	CreatedAt                 time.Time                 `json:"created_at"`
	UpdatedAt                 time.Time                 `json:"updated_at"`
	InvitedAt                 time.Time                 `json:"invited_at"`
	ActivatedAt               *time.Time                `json:"activated_at,omitempty"`
	RemovedAt                 *time.Time                `json:"removed_at,omitempty"`
}

// Key returns the identity key (hackathon, normalized email)
func (a *JudgeAssignment) Key() string {
	return AssignmentKey(a.HackathonID, a.Judge.Email)
}

// AssignmentKey builds the identity key for a judge within a hackathon
func AssignmentKey(hackathonID HackathonID, email string) string {
	return string(hackathonID) + "|" + NormalizeEmail(email)
}

// IsActive reports whether the assignment may receive new bindings
func (a *JudgeAssignment) IsActive() bool {
	return a.Status == AssignmentActive
}

// Round returns the round binding for an index, or nil
func (a *JudgeAssignment) Round(index int) *RoundBinding {
	for i := range a.AssignedRounds {
		if a.AssignedRounds[i].RoundIndex == index {
			return &a.AssignedRounds[i]
		}
	}
	return nil
}

// ProblemStatement returns the problem statement binding for an id, or nil
func (a *JudgeAssignment) ProblemStatement(id ProblemStatementID) *ProblemStatementBinding {
	for i := range a.AssignedProblemStatements {
		if a.AssignedProblemStatements[i].ProblemStatementID == id {
			return &a.AssignedProblemStatements[i]
		}
	}
	return nil
}

// HasScope reports whether the judge already covers the scope
func (a *JudgeAssignment) HasScope(scope Scope) bool {
	if scope.Type == ScopeRound {
		return a.Round(scope.RoundIndex) != nil
	}
	return a.ProblemStatement(scope.ProblemStatementID) != nil
}

// SubmissionsIn returns the submission ids bound in a scope (nil if the scope is not covered)
func (a *JudgeAssignment) SubmissionsIn(scope Scope) []SubmissionID {
	if scope.Type == ScopeRound {
		if rb := a.Round(scope.RoundIndex); rb != nil {
			return rb.AssignedSubmissionIDs
		}
		return nil
	}
	if pb := a.ProblemStatement(scope.ProblemStatementID); pb != nil {
		return pb.AssignedSubmissionIDs
	}
	return nil
}

// SetSubmissions replaces the submission set of an existing scope entry.
// Returns false if the scope is not covered.
func (a *JudgeAssignment) SetSubmissions(scope Scope, ids []SubmissionID) bool {
	if scope.Type == ScopeRound {
		if rb := a.Round(scope.RoundIndex); rb != nil {
			rb.AssignedSubmissionIDs = ids
			return true
		}
		return false
	}
	if pb := a.ProblemStatement(scope.ProblemStatementID); pb != nil {
		pb.AssignedSubmissionIDs = ids
		return true
	}
	return false
}

// RemoveScope drops a scope entry. Returns false if it was not covered.
func (a *JudgeAssignment) RemoveScope(scope Scope) bool {
	if scope.Type == ScopeRound {
		for i := range a.AssignedRounds {
			if a.AssignedRounds[i].RoundIndex == scope.RoundIndex {
				a.AssignedRounds = slices.Delete(a.AssignedRounds, i, i+1)
				return true
			}
		}
		return false
	}
	for i := range a.AssignedProblemStatements {
		if a.AssignedProblemStatements[i].ProblemStatementID == scope.ProblemStatementID {
			a.AssignedProblemStatements = slices.Delete(a.AssignedProblemStatements, i, i+1)
			return true
		}
	}
	return false
}

// ScopeBindings lists every covered scope with its submission ids, rounds first
func (a *JudgeAssignment) ScopeBindings() []ScopeSubmissions {
	out := make([]ScopeSubmissions, 0, len(a.AssignedRounds)+len(a.AssignedProblemStatements))
	for _, rb := range a.AssignedRounds {
		out = append(out, ScopeSubmissions{
			Scope:         RoundScope(rb.RoundIndex),
			RoundName:     rb.RoundName,
			SubmissionIDs: rb.AssignedSubmissionIDs,
		})
	}
	for _, pb := range a.AssignedProblemStatements {
		out = append(out, ScopeSubmissions{
			Scope:         ProblemStatementScope(pb.ProblemStatementID),
			SubmissionIDs: pb.AssignedSubmissionIDs,
		})
	}
	return out
}

// HasSpecificAssignments reports whether any scope entry holds at least one submission
func (a *JudgeAssignment) HasSpecificAssignments() bool {
	for _, sb := range a.ScopeBindings() {
		if len(sb.SubmissionIDs) > 0 {
			return true
		}
	}
	return false
}

// ClearBindings drops every scope entry
func (a *JudgeAssignment) ClearBindings() {
	a.AssignedRounds = nil
	a.AssignedProblemStatements = nil
}

// Clone returns a deep copy safe to mutate independently
func (a *JudgeAssignment) Clone() *JudgeAssignment {
	c := *a
	c.AssignedRounds = make([]RoundBinding, len(a.AssignedRounds))
	for i, rb := range a.AssignedRounds {
		rb.AssignedSubmissionIDs = slices.Clone(rb.AssignedSubmissionIDs)
		c.AssignedRounds[i] = rb
	}
	c.AssignedProblemStatements = make([]ProblemStatementBinding, len(a.AssignedProblemStatements))
	for i, pb := range a.AssignedProblemStatements {
		pb.AssignedSubmissionIDs = slices.Clone(pb.AssignedSubmissionIDs)
		c.AssignedProblemStatements[i] = pb
	}
	if a.ActivatedAt != nil {
		t := *a.ActivatedAt
		c.ActivatedAt = &t
	}
	if a.RemovedAt != nil {
		t := *a.RemovedAt
		c.RemovedAt = &t
	}
	if a.Metrics.LastScoredAt != nil {
		t := *a.Metrics.LastScoredAt
		c.Metrics.LastScoredAt = &t
	}
	return &c
}

// ScopeSubmissions pairs a scope with the submissions bound in it
type ScopeSubmissions struct {
	Scope         Scope          `json:"scope"`
	RoundName     string         `json:"round_name,omitempty"`
	SubmissionIDs []SubmissionID `json:"submission_ids"`
}

// UnionSubmissions returns existing followed by the new ids not already present, in order
func UnionSubmissions(existing, add []SubmissionID) []SubmissionID {
	seen := make(map[SubmissionID]struct{}, len(existing)+len(add))
	out := make([]SubmissionID, 0, len(existing)+len(add))
	for _, list := range [][]SubmissionID{existing, add} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// WithoutSubmissions returns ids minus the removed set, preserving order
func WithoutSubmissions(ids []SubmissionID, remove map[SubmissionID]struct{}) []SubmissionID {
	out := make([]SubmissionID, 0, len(ids))
	for _, id := range ids {
		if _, ok := remove[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}
