package models

// ProblemStatementKind discriminates general and sponsored problem statements
type ProblemStatementKind string

const (
	ProblemStatementGeneral   ProblemStatementKind = "general"
	ProblemStatementSponsored ProblemStatementKind = "sponsored"
)

// Valid reports whether the kind is one of the known kinds
func (k ProblemStatementKind) Valid() bool {
	return k == ProblemStatementGeneral || k == ProblemStatementSponsored
}

// ProblemStatement is a challenge track of a hackathon.
// SponsorCompany is set iff Kind is sponsored.
type ProblemStatement struct {
	ID             ProblemStatementID   `yaml:"id" json:"id"`
	Text           string               `yaml:"text" json:"text"`
	Kind           ProblemStatementKind `yaml:"kind" json:"kind"`
	SponsorCompany string               `yaml:"sponsor_company" json:"sponsor_company,omitempty"`
}

// Round is a judging stage. Index is the identity key, not the array position.
type Round struct {
	Index int    `yaml:"index" json:"index"`
	Name  string `yaml:"name" json:"name"`
	Type  string `yaml:"type" json:"type"` // project | pitch | quiz | ...
}

// Hackathon is the read-only slice of the hackathon record the engine needs
type Hackathon struct {
	ID                HackathonID        `yaml:"id" json:"id"`
	Name              string             `yaml:"name" json:"name"`
	ProblemStatements []ProblemStatement `yaml:"problem_statements" json:"problem_statements"`
	Rounds            []Round            `yaml:"rounds" json:"rounds"`
}
