package models

import (
	"errors"
	"fmt"
)

// ErrInvalidScope is returned for a malformed scope
var ErrInvalidScope = errors.New("invalid scope")

// ScopeType discriminates round and problem statement scopes
type ScopeType string

const (
	ScopeRound            ScopeType = "round"
	ScopeProblemStatement ScopeType = "problem_statement"
)

// Scope names the unit under which submissions are bound to a judge.
// Exactly one of RoundIndex / ProblemStatementID is meaningful, selected by Type.
type Scope struct {
	Type               ScopeType          `json:"type"`
	RoundIndex         int                `json:"round_index,omitempty"`
	ProblemStatementID ProblemStatementID `json:"problem_statement_id,omitempty"`
}

// RoundScope builds a round scope
func RoundScope(index int) Scope {
	return Scope{Type: ScopeRound, RoundIndex: index}
}

// ProblemStatementScope builds a problem statement scope
func ProblemStatementScope(id ProblemStatementID) Scope {
	return Scope{Type: ScopeProblemStatement, ProblemStatementID: id}
}

// Validate checks the scope discriminant and its payload
func (s Scope) Validate() error {
	switch s.Type {
	case ScopeRound:
		if s.RoundIndex < 0 {
			return fmt.Errorf("%w: negative round index %d", ErrInvalidScope, s.RoundIndex)
		}
		if s.ProblemStatementID != "" {
			return fmt.Errorf("%w: round scope carries a problem statement id", ErrInvalidScope)
		}
	case ScopeProblemStatement:
		if s.ProblemStatementID == "" {
			return fmt.Errorf("%w: problem statement id is required", ErrInvalidScope)
		}
		if s.RoundIndex != 0 {
			return fmt.Errorf("%w: problem statement scope carries a round index", ErrInvalidScope)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidScope, s.Type)
	}
	return nil
}

// String renders the scope for logs and lock keys
func (s Scope) String() string {
	if s.Type == ScopeRound {
		return fmt.Sprintf("round:%d", s.RoundIndex)
	}
	return fmt.Sprintf("ps:%s", s.ProblemStatementID)
}

// Less orders round scopes before problem statement scopes, then by key
func (s Scope) Less(o Scope) bool {
	if s.Type != o.Type {
		return s.Type == ScopeRound
	}
	if s.Type == ScopeRound {
		return s.RoundIndex < o.RoundIndex
	}
	return s.ProblemStatementID < o.ProblemStatementID
}
