package models

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyID is returned when an identifier is blank after trimming
	ErrEmptyID = errors.New("identifier is empty")
	// ErrNotFound is wrapped by every layer that fails to resolve an identifier
	ErrNotFound = errors.New("not found")
)

// HackathonID identifies a hackathon
type HackathonID string

// AssignmentID identifies a judge assignment
type AssignmentID string

// SubmissionID identifies a team submission
type SubmissionID string

// ProblemStatementID identifies a problem statement within a hackathon
type ProblemStatementID string

// ParseHackathonID trims and validates a raw hackathon id
func ParseHackathonID(raw string) (HackathonID, error) {
	v, err := parseID(raw)
	return HackathonID(v), err
}

// ParseAssignmentID trims and validates a raw assignment id
func ParseAssignmentID(raw string) (AssignmentID, error) {
	v, err := parseID(raw)
	return AssignmentID(v), err
}

// ParseSubmissionID trims and validates a raw submission id
func ParseSubmissionID(raw string) (SubmissionID, error) {
	v, err := parseID(raw)
	return SubmissionID(v), err
}

// ParseProblemStatementID trims and validates a raw problem statement id
func ParseProblemStatementID(raw string) (ProblemStatementID, error) {
	v, err := parseID(raw)
	return ProblemStatementID(v), err
}

// ParseSubmissionIDs parses a list of raw submission ids, failing on the first blank one
func ParseSubmissionIDs(raw []string) ([]SubmissionID, error) {
	ids := make([]SubmissionID, 0, len(raw))
	for _, r := range raw {
		id, err := ParseSubmissionID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// NormalizeEmail returns the canonical form of a judge email used as identity key
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func parseID(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", ErrEmptyID
	}
	return v, nil
}
