package client

import (
	"github.com/terra-clan/judge-engine/internal/engine"
	"github.com/terra-clan/judge-engine/internal/models"
)

// Identifiers
type (
	HackathonID        = models.HackathonID
	AssignmentID       = models.AssignmentID
	SubmissionID       = models.SubmissionID
	ProblemStatementID = models.ProblemStatementID
)

// Records returned by the API
type (
	Scope              = models.Scope
	ScopeType          = models.ScopeType
	JudgeType          = models.JudgeType
	AssignmentStatus   = models.AssignmentStatus
	JudgeAssignment    = models.JudgeAssignment
	Submission         = models.Submission
	Overview           = engine.Overview
	JudgeView          = engine.JudgeView
	ConsistencyReport  = engine.ConsistencyReport
	DistributionResult = engine.DistributionResult
	Share              = engine.Share
)

const (
	ScopeRound            = models.ScopeRound
	ScopeProblemStatement = models.ScopeProblemStatement

	JudgePlatform = models.JudgePlatform
	JudgeSponsor  = models.JudgeSponsor
	JudgeHybrid   = models.JudgeHybrid

	AssignmentPending   = models.AssignmentPending
	AssignmentActive    = models.AssignmentActive
	AssignmentCompleted = models.AssignmentCompleted
	AssignmentRemoved   = models.AssignmentRemoved
)

// RoundScope builds a round scope
func RoundScope(index int) Scope {
	return models.RoundScope(index)
}

// ProblemStatementScope builds a problem statement scope
func ProblemStatementScope(id ProblemStatementID) Scope {
	return models.ProblemStatementScope(id)
}
