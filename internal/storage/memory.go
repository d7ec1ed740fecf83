package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/terra-clan/judge-engine/internal/models"
)

// MemoryRepository implements AssignmentRepository in process memory.
// Stored and returned aggregates are deep copies.
type MemoryRepository struct {
	mu          sync.RWMutex
	assignments map[models.AssignmentID]*models.JudgeAssignment
	byKey       map[string]models.AssignmentID
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		assignments: make(map[models.AssignmentID]*models.JudgeAssignment),
		byKey:       make(map[string]models.AssignmentID),
	}
}

// CreateAssignment stores a new assignment with version 1
func (r *MemoryRepository) CreateAssignment(_ context.Context, a *models.JudgeAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.assignments[a.ID]; exists {
		return ErrAlreadyExists
	}
	if _, exists := r.byKey[a.Key()]; exists {
		return ErrAlreadyExists
	}

	a.Version = 1
	r.assignments[a.ID] = a.Clone()
	r.byKey[a.Key()] = a.ID
	return nil
}

// GetAssignment retrieves an assignment by id
func (r *MemoryRepository) GetAssignment(_ context.Context, id models.AssignmentID) (*models.JudgeAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.assignments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// FindByEmail retrieves the assignment of a judge within a hackathon
func (r *MemoryRepository) FindByEmail(_ context.Context, hackathonID models.HackathonID, email string) (*models.JudgeAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[models.AssignmentKey(hackathonID, email)]
	if !ok {
		return nil, ErrNotFound
	}
	return r.assignments[id].Clone(), nil
}

// FindActiveByHackathon returns the active assignments of a hackathon
func (r *MemoryRepository) FindActiveByHackathon(_ context.Context, hackathonID models.HackathonID) ([]*models.JudgeAssignment, error) {
	return r.list(hackathonID, true), nil
}

// ListByHackathon returns every assignment of a hackathon regardless of status
func (r *MemoryRepository) ListByHackathon(_ context.Context, hackathonID models.HackathonID) ([]*models.JudgeAssignment, error) {
	return r.list(hackathonID, false), nil
}

// SaveAssignment replaces the stored aggregate if versions match
func (r *MemoryRepository) SaveAssignment(_ context.Context, a *models.JudgeAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.assignments[a.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != a.Version {
		return ErrVersionConflict
	}

	if current.Key() != a.Key() {
		if _, taken := r.byKey[a.Key()]; taken {
			return ErrAlreadyExists
		}
		delete(r.byKey, current.Key())
		r.byKey[a.Key()] = a.ID
	}

	a.Version++
	r.assignments[a.ID] = a.Clone()
	return nil
}

// Ping always succeeds
func (r *MemoryRepository) Ping(_ context.Context) error {
	return nil
}

// Close is a no-op
func (r *MemoryRepository) Close() error {
	return nil
}

func (r *MemoryRepository) list(hackathonID models.HackathonID, activeOnly bool) []*models.JudgeAssignment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.JudgeAssignment
	for _, a := range r.assignments {
		if a.HackathonID != hackathonID {
			continue
		}
		if activeOnly && !a.IsActive() {
			continue
		}
		result = append(result, a.Clone())
	}
	sortAssignments(result)
	return result
}

// sortAssignments orders by creation time, then id, so listings are stable
func sortAssignments(list []*models.JudgeAssignment) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

// MemorySubmissionRepository implements SubmissionRepository in memory,
// preserving insertion order.
type MemorySubmissionRepository struct {
	mu          sync.RWMutex
	order       []models.SubmissionID
	submissions map[models.SubmissionID]models.Submission
}

// NewMemorySubmissionRepository creates a repository seeded with submissions
func NewMemorySubmissionRepository(seed ...models.Submission) *MemorySubmissionRepository {
	r := &MemorySubmissionRepository{
		submissions: make(map[models.SubmissionID]models.Submission),
	}
	for _, s := range seed {
		r.Put(s)
	}
	return r
}

// Put inserts or replaces a submission
func (r *MemorySubmissionRepository) Put(s models.Submission) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.submissions[s.ID]; !exists {
		r.order = append(r.order, s.ID)
	}
	r.submissions[s.ID] = s
}

// FindByHackathon returns every submission of a hackathon in insertion order
func (r *MemorySubmissionRepository) FindByHackathon(_ context.Context, hackathonID models.HackathonID) ([]models.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []models.Submission
	for _, id := range r.order {
		if s := r.submissions[id]; s.HackathonID == hackathonID {
			result = append(result, s)
		}
	}
	return result, nil
}

// FindByIDs returns the known submissions among ids, in insertion order
func (r *MemorySubmissionRepository) FindByIDs(_ context.Context, ids []models.SubmissionID) ([]models.Submission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[models.SubmissionID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var result []models.Submission
	for _, id := range r.order {
		if _, ok := want[id]; ok {
			result = append(result, r.submissions[id])
		}
	}
	return result, nil
}
