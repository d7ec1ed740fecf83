// Package catalog serves the read-only problem statements and rounds of each
// hackathon, loaded from YAML files exported by the host application.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/judge-engine/internal/models"
)

// ErrHackathonNotFound is returned for an unknown hackathon id
var ErrHackathonNotFound = fmt.Errorf("hackathon %w", models.ErrNotFound)

// Loader manages loading and caching of hackathon catalogs
type Loader struct {
	mu         sync.RWMutex
	hackathons map[models.HackathonID]*models.Hackathon
}

// NewLoader creates a new catalog loader
func NewLoader() *Loader {
	return &Loader{
		hackathons: make(map[models.HackathonID]*models.Hackathon),
	}
}

// LoadFromDir loads every hackathon YAML file from a directory and its direct subdirectories
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading hackathon catalog", "dir", dir)

	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("failed to stat catalog dir: %w", err)
	}

	patterns := []string{"*.yaml", "*.yml", filepath.Join("*", "*.yaml"), filepath.Join("*", "*.yml")}
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	sort.Strings(files)

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load hackathon", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("hackathon catalog loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single hackathon from a YAML file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	h, err := Parse(data)
	if err != nil {
		return err
	}

	l.Add(h)
	slog.Info("hackathon loaded", "id", h.ID,
		"problem_statements", len(h.ProblemStatements), "rounds", len(h.Rounds))
	return nil
}

// Parse decodes and validates one hackathon document
func Parse(data []byte) (*models.Hackathon, error) {
	var hf hackathonFile
	if err := yaml.Unmarshal(data, &hf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	id, err := models.ParseHackathonID(hf.ID)
	if err != nil {
		return nil, fmt.Errorf("hackathon id is required")
	}

	h := &models.Hackathon{
		ID:     id,
		Name:   hf.Name,
		Rounds: hf.Rounds,
	}
	for i, ps := range hf.ProblemStatements {
		h.ProblemStatements = append(h.ProblemStatements, ps.toModel(i))
	}

	if err := validate(h); err != nil {
		return nil, err
	}
	return h, nil
}

// Get retrieves a hackathon by id
func (l *Loader) Get(id models.HackathonID) *models.Hackathon {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.hackathons[id]
}

// List returns all loaded hackathons ordered by id
func (l *Loader) List() []*models.Hackathon {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*models.Hackathon, 0, len(l.hackathons))
	for _, h := range l.hackathons {
		result = append(result, h)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Add programmatically adds or replaces a hackathon
func (l *Loader) Add(h *models.Hackathon) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hackathons[h.ID] = h
}

// GetProblemStatements returns a copy of the hackathon's problem statements
func (l *Loader) GetProblemStatements(_ context.Context, id models.HackathonID) ([]models.ProblemStatement, error) {
	h := l.Get(id)
	if h == nil {
		return nil, ErrHackathonNotFound
	}
	return append([]models.ProblemStatement(nil), h.ProblemStatements...), nil
}

// GetRounds returns a copy of the hackathon's rounds
func (l *Loader) GetRounds(_ context.Context, id models.HackathonID) ([]models.Round, error) {
	h := l.Get(id)
	if h == nil {
		return nil, ErrHackathonNotFound
	}
	return append([]models.Round(nil), h.Rounds...), nil
}

// ListHackathonIDs returns the ids of all loaded hackathons
func (l *Loader) ListHackathonIDs(_ context.Context) ([]models.HackathonID, error) {
	list := l.List()
	ids := make([]models.HackathonID, 0, len(list))
	for _, h := range list {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func validate(h *models.Hackathon) error {
	seenPS := make(map[models.ProblemStatementID]struct{}, len(h.ProblemStatements))
	for _, ps := range h.ProblemStatements {
		if ps.ID == "" {
			return fmt.Errorf("problem statement id is required")
		}
		if _, dup := seenPS[ps.ID]; dup {
			return fmt.Errorf("duplicate problem statement id %q", ps.ID)
		}
		seenPS[ps.ID] = struct{}{}

		if !ps.Kind.Valid() {
			return fmt.Errorf("problem statement %q: unknown kind %q", ps.ID, ps.Kind)
		}
		if (ps.Kind == models.ProblemStatementSponsored) != (ps.SponsorCompany != "") {
			return fmt.Errorf("problem statement %q: sponsor_company must be set iff kind is sponsored", ps.ID)
		}
	}

	seenRounds := make(map[int]struct{}, len(h.Rounds))
	for _, r := range h.Rounds {
		if r.Index < 0 {
			return fmt.Errorf("round %q: negative index", r.Name)
		}
		if _, dup := seenRounds[r.Index]; dup {
			return fmt.Errorf("duplicate round index %d", r.Index)
		}
		seenRounds[r.Index] = struct{}{}
	}
	return nil
}

// --- YAML file structs ---

// hackathonFile represents the YAML structure of a hackathon export
type hackathonFile struct {
	ID                string                 `yaml:"id"`
	Name              string                 `yaml:"name"`
	ProblemStatements []problemStatementFile `yaml:"problem_statements"`
	Rounds            []models.Round         `yaml:"rounds"`
}

// problemStatementFile accepts both shapes found in exports: a bare string
// (a general statement) or a mapping with explicit kind.
type problemStatementFile struct {
	ID             string `yaml:"id"`
	Text           string `yaml:"text"`
	Kind           string `yaml:"kind"`
	SponsorCompany string `yaml:"sponsor_company"`
}

// UnmarshalYAML implements yaml.Unmarshaler
func (p *problemStatementFile) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*p = problemStatementFile{Text: node.Value}
		return nil
	}
	type plain problemStatementFile
	var v plain
	if err := node.Decode(&v); err != nil {
		return err
	}
	*p = problemStatementFile(v)
	return nil
}

func (p problemStatementFile) toModel(position int) models.ProblemStatement {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = fmt.Sprintf("ps-%d", position+1)
	}

	kind := models.ProblemStatementKind(strings.ToLower(strings.TrimSpace(p.Kind)))
	if kind == "" {
		kind = models.ProblemStatementGeneral
		if strings.TrimSpace(p.SponsorCompany) != "" {
			kind = models.ProblemStatementSponsored
		}
	}

	return models.ProblemStatement{
		ID:             models.ProblemStatementID(id),
		Text:           strings.TrimSpace(p.Text),
		Kind:           kind,
		SponsorCompany: strings.TrimSpace(p.SponsorCompany),
	}
}
