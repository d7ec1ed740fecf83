package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/terra-clan/judge-engine/internal/catalog"
	"github.com/terra-clan/judge-engine/internal/metrics"
	"github.com/terra-clan/judge-engine/internal/models"
	"github.com/terra-clan/judge-engine/internal/storage"
)

const hackathonID models.HackathonID = "hack-1"

var (
	round0    = models.RoundScope(0)
	round1    = models.RoundScope(1)
	psGeneral = models.ProblemStatementScope("ps-general")
	psAcme    = models.ProblemStatementScope("ps-acme")
)

func testHackathon() *models.Hackathon {
	return &models.Hackathon{
		ID:   hackathonID,
		Name: "DevFest",
		ProblemStatements: []models.ProblemStatement{
			{ID: "ps-general", Text: "Open track", Kind: models.ProblemStatementGeneral},
			{ID: "ps-acme", Text: "Instant payments", Kind: models.ProblemStatementSponsored, SponsorCompany: "Acme Bank"},
		},
		Rounds: []models.Round{
			{Index: 0, Name: "Project Review", Type: "project"},
			{Index: 1, Name: "Final Pitch", Type: "pitch"},
		},
	}
}

func testSubmissions() []models.Submission {
	submitted := func(id string, ps models.ProblemStatementID) models.Submission {
		return models.Submission{
			ID:                 models.SubmissionID(id),
			HackathonID:        hackathonID,
			TeamName:           "team-" + id,
			Title:              "project " + id,
			ProblemStatementID: ps,
			Status:             models.SubmissionSubmitted,
		}
	}

	list := []models.Submission{
		submitted("s1", "ps-general"),
		submitted("s2", "ps-general"),
		submitted("s3", "ps-general"),
		submitted("s4", "ps-general"),
		submitted("s5", "ps-general"),
		{ID: "s6", HackathonID: hackathonID, ProblemStatementID: "ps-general", Status: models.SubmissionDraft},
		{ID: "s7", HackathonID: "hack-2", Status: models.SubmissionSubmitted},
		submitted("s8", "ps-acme"),
		{ID: "s9", HackathonID: hackathonID, ProblemStatementID: "ps-general", Status: models.SubmissionWithdrawn},
	}
	return list
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	err   error
	delay time.Duration
}

func (n *recordingNotifier) Notify(_ context.Context, recipient, message string) error {
	time.Sleep(n.delay)

	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recipient+": "+message)
	return n.err
}

func (n *recordingNotifier) countFor(recipient string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.sent {
		if strings.HasPrefix(s, recipient+":") {
			count++
		}
	}
	return count
}

type countingRecorder struct {
	*metrics.NopMetrics
	retries      atomic.Int64
	checks       atomic.Int64
	inconsistent atomic.Int64
	distributed  atomic.Int64
}

func (r *countingRecorder) RecordRetry(string) {
	r.retries.Add(1)
}

func (r *countingRecorder) RecordDistributed(count int) {
	r.distributed.Add(int64(count))
}

func (r *countingRecorder) RecordConsistencyCheck(consistent bool) {
	r.checks.Add(1)
	if !consistent {
		r.inconsistent.Add(1)
	}
}

// flakyStore injects version conflicts and hard failures into saves
type flakyStore struct {
	*storage.MemoryRepository

	mu        sync.Mutex
	conflicts int
	failAfter int // saves allowed before every save fails; negative disables
	saves     int
}

func (s *flakyStore) SaveAssignment(ctx context.Context, a *models.JudgeAssignment) error {
	s.mu.Lock()
	if s.conflicts > 0 {
		s.conflicts--
		s.mu.Unlock()
		return storage.ErrVersionConflict
	}
	if s.failAfter >= 0 && s.saves >= s.failAfter {
		s.mu.Unlock()
		return errors.New("connection reset by peer")
	}
	s.saves++
	s.mu.Unlock()

	return s.MemoryRepository.SaveAssignment(ctx, a)
}

func (s *flakyStore) injectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

// allowSaves lets n more saves through, then fails every save
func (s *flakyStore) allowSaves(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAfter = s.saves + n
}

type fixture struct {
	t           *testing.T
	ctx         context.Context
	engine      *Engine
	memory      *storage.MemoryRepository
	store       storage.AssignmentRepository
	submissions *storage.MemorySubmissionRepository
	catalog     *catalog.Loader
	notifier    *recordingNotifier
	recorder    *countingRecorder
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	cfg   Config
	store func(*storage.MemoryRepository) storage.AssignmentRepository
}

func withMaxRetries(n int) fixtureOption {
	return func(c *fixtureConfig) {
		c.cfg.MaxRetries = n
	}
}

func withStore(wrap func(*storage.MemoryRepository) storage.AssignmentRepository) fixtureOption {
	return func(c *fixtureConfig) {
		c.store = wrap
	}
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	fc := fixtureConfig{cfg: Config{DefaultMaxSubmissions: 50, MaxRetries: 3}}
	for _, opt := range opts {
		opt(&fc)
	}

	memory := storage.NewMemoryRepository()
	var store storage.AssignmentRepository = memory
	if fc.store != nil {
		store = fc.store(memory)
	}

	loader := catalog.NewLoader()
	loader.Add(testHackathon())

	f := &fixture{
		t:           t,
		ctx:         context.Background(),
		memory:      memory,
		store:       store,
		submissions: storage.NewMemorySubmissionRepository(testSubmissions()...),
		catalog:     loader,
		notifier:    &recordingNotifier{},
		recorder:    &countingRecorder{NopMetrics: metrics.NewNop()},
	}

	var (
		seq  atomic.Int64
		tick atomic.Int64
	)
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	f.engine = New(store, f.submissions, loader, fc.cfg,
		WithNotifier(f.notifier),
		WithMetrics(f.recorder),
		WithClock(func() time.Time {
			return base.Add(time.Duration(tick.Add(1)) * time.Second)
		}),
		WithIDGenerator(func() models.AssignmentID {
			return models.AssignmentID(fmt.Sprintf("asg-%03d", seq.Add(1)))
		}),
	)
	return f
}

func (f *fixture) invite(email string, judgeType models.JudgeType, company string) *models.JudgeAssignment {
	f.t.Helper()
	a, err := f.engine.InviteJudge(f.ctx, InviteRequest{
		HackathonID:            hackathonID,
		Email:                  email,
		DisplayName:            strings.Split(email, "@")[0],
		JudgeType:              judgeType,
		SponsorCompany:         company,
		MaxSubmissionsPerJudge: 50,
	})
	require.NoError(f.t, err)
	return a
}

// judge invites and activates a judge
func (f *fixture) judge(email string, judgeType models.JudgeType, company string) *models.JudgeAssignment {
	f.t.Helper()
	f.invite(email, judgeType, company)
	a, err := f.engine.ActivateJudge(f.ctx, hackathonID, email)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) reload(id models.AssignmentID) *models.JudgeAssignment {
	f.t.Helper()
	a, err := f.memory.GetAssignment(f.ctx, id)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) versions() map[models.AssignmentID]int64 {
	f.t.Helper()
	list, err := f.memory.ListByHackathon(f.ctx, hackathonID)
	require.NoError(f.t, err)
	out := make(map[models.AssignmentID]int64, len(list))
	for _, a := range list {
		out[a.ID] = a.Version
	}
	return out
}

func (f *fixture) requireScope(scope models.Scope, want map[models.AssignmentID][]models.SubmissionID) {
	f.t.Helper()
	for id, ids := range want {
		a := f.reload(id)
		require.True(f.t, a.HasScope(scope), "assignment %s should cover %s", id, scope)
		require.Equal(f.t, ids, a.SubmissionsIn(scope), "assignment %s in %s", id, scope)
	}
}

func sids(ids ...string) []models.SubmissionID {
	out := make([]models.SubmissionID, len(ids))
	for i, id := range ids {
		out[i] = models.SubmissionID(id)
	}
	return out
}

func TestInviteJudge(t *testing.T) {
	f := newFixture(t)

	a := f.invite("  Alice@Example.com ", models.JudgeHybrid, "")
	require.Equal(t, models.AssignmentID("asg-001"), a.ID)
	require.Equal(t, "alice@example.com", a.Judge.Email)
	require.Equal(t, models.AssignmentPending, a.Status)
	require.Equal(t, int64(1), a.Version)
	require.True(t, a.Permissions.CanJudgeGeneralPS)
	require.True(t, a.Permissions.CanJudgeSponsoredPS)
	require.Equal(t, 50, a.Permissions.MaxSubmissionsPerJudge)

	_, err := f.engine.InviteJudge(f.ctx, InviteRequest{
		HackathonID: hackathonID,
		Email:       "alice@example.com",
		JudgeType:   models.JudgePlatform,
	})
	require.ErrorIs(t, err, ErrAlreadyInvited)

	require.Eventually(t, func() bool {
		return f.notifier.countFor("alice@example.com") == 1
	}, time.Second, 10*time.Millisecond)
}

func TestInviteJudgeDefaultsCap(t *testing.T) {
	f := newFixture(t)

	a, err := f.engine.InviteJudge(f.ctx, InviteRequest{
		HackathonID: hackathonID,
		Email:       "bob@example.com",
		JudgeType:   models.JudgePlatform,
	})
	require.NoError(t, err)
	require.Equal(t, 50, a.Permissions.MaxSubmissionsPerJudge)
	require.False(t, a.Permissions.CanJudgeSponsoredPS)
}

func TestInviteJudgeValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		req     InviteRequest
		wantErr error
	}{
		{
			name:    "missing hackathon",
			req:     InviteRequest{Email: "a@x.io", JudgeType: models.JudgePlatform},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "bad email",
			req:     InviteRequest{HackathonID: hackathonID, Email: "nobody", JudgeType: models.JudgePlatform},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown judge type",
			req:     InviteRequest{HackathonID: hackathonID, Email: "a@x.io", JudgeType: "guest"},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "sponsor without company",
			req:     InviteRequest{HackathonID: hackathonID, Email: "a@x.io", JudgeType: models.JudgeSponsor},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "negative cap",
			req:     InviteRequest{HackathonID: hackathonID, Email: "a@x.io", JudgeType: models.JudgePlatform, MaxSubmissionsPerJudge: -1},
			wantErr: ErrInvalidInput,
		},
		{
			name:    "unknown hackathon",
			req:     InviteRequest{HackathonID: "hack-9", Email: "a@x.io", JudgeType: models.JudgePlatform},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.InviteJudge(f.ctx, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAssignmentLifecycle(t *testing.T) {
	f := newFixture(t)
	a := f.invite("carol@example.com", models.JudgePlatform, "")

	t.Run("complete requires active", func(t *testing.T) {
		_, err := f.engine.CompleteAssignment(f.ctx, a.ID)
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("activate", func(t *testing.T) {
		got, err := f.engine.ActivateJudge(f.ctx, hackathonID, "CAROL@example.com")
		require.NoError(t, err)
		require.Equal(t, models.AssignmentActive, got.Status)
		require.NotNil(t, got.ActivatedAt)

		again, err := f.engine.ActivateJudge(f.ctx, hackathonID, "carol@example.com")
		require.NoError(t, err)
		require.Equal(t, got.Version, again.Version)
	})

	t.Run("complete", func(t *testing.T) {
		got, err := f.engine.CompleteAssignment(f.ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, models.AssignmentCompleted, got.Status)

		_, err = f.engine.ActivateJudge(f.ctx, hackathonID, "carol@example.com")
		require.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("remove", func(t *testing.T) {
		got, err := f.engine.RemoveAssignment(f.ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, models.AssignmentRemoved, got.Status)
		require.NotNil(t, got.RemovedAt)

		again, err := f.engine.RemoveAssignment(f.ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, got.Version, again.Version)
	})

	t.Run("unknown assignment", func(t *testing.T) {
		_, err := f.engine.RemoveAssignment(f.ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)

		_, err = f.engine.ActivateJudge(f.ctx, hackathonID, "nobody@example.com")
		require.ErrorIs(t, err, ErrNotFound)
	})

	require.Eventually(t, func() bool {
		return f.notifier.countFor("carol@example.com") == 2
	}, time.Second, 10*time.Millisecond)
}

func TestReinviteRemovedJudge(t *testing.T) {
	f := newFixture(t)
	a := f.judge("dave@example.com", models.JudgePlatform, "")

	_, err := f.engine.Assign(f.ctx, a.ID, round0, sids("s1", "s2"))
	require.NoError(t, err)

	scored := f.reload(a.ID)
	scored.Metrics.SubmissionsScored = 2
	scored.Metrics.AverageScore = 7.5
	require.NoError(t, f.memory.SaveAssignment(f.ctx, scored))

	_, err = f.engine.RemoveAssignment(f.ctx, a.ID)
	require.NoError(t, err)

	revived, err := f.engine.InviteJudge(f.ctx, InviteRequest{
		HackathonID:         hackathonID,
		Email:               "dave@example.com",
		JudgeType:           models.JudgePlatform,
		CanJudgeSponsoredPS: true,
	})
	require.NoError(t, err)
	require.Equal(t, a.ID, revived.ID)
	require.Equal(t, models.AssignmentPending, revived.Status)
	require.Empty(t, revived.AssignedRounds)
	require.Nil(t, revived.RemovedAt)
	require.Nil(t, revived.ActivatedAt)
	require.Equal(t, 2, revived.Metrics.SubmissionsScored)
	require.True(t, revived.Permissions.CanJudgeSponsoredPS)

	list, err := f.engine.ListAssignments(f.ctx, hackathonID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestReinviteRetriesVersionConflict(t *testing.T) {
	var flaky *flakyStore
	f := newFixture(t, withStore(func(m *storage.MemoryRepository) storage.AssignmentRepository {
		flaky = &flakyStore{MemoryRepository: m, failAfter: -1}
		return flaky
	}))
	a := f.judge("henry@example.com", models.JudgePlatform, "")

	_, err := f.engine.RemoveAssignment(f.ctx, a.ID)
	require.NoError(t, err)

	flaky.injectConflicts(1)
	revived, err := f.engine.InviteJudge(f.ctx, InviteRequest{
		HackathonID: hackathonID,
		Email:       "henry@example.com",
		JudgeType:   models.JudgePlatform,
	})
	require.NoError(t, err)
	require.Equal(t, a.ID, revived.ID)
	require.Equal(t, models.AssignmentPending, revived.Status)
	require.Equal(t, int64(1), f.recorder.retries.Load())
	require.Equal(t, models.AssignmentPending, f.reload(a.ID).Status)
}

func TestWaitDrainsNotifications(t *testing.T) {
	f := newFixture(t)
	f.notifier.delay = 50 * time.Millisecond

	f.invite("ivy@example.com", models.JudgePlatform, "")
	f.engine.Wait()

	require.Equal(t, 1, f.notifier.countFor("ivy@example.com"))
}

func TestGetAssignment(t *testing.T) {
	f := newFixture(t)
	a := f.invite("erin@example.com", models.JudgeHybrid, "")

	got, err := f.engine.GetAssignment(f.ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.Judge, got.Judge)

	_, err = f.engine.GetAssignment(f.ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestVersionConflictRetries(t *testing.T) {
	var flaky *flakyStore
	f := newFixture(t, withStore(func(m *storage.MemoryRepository) storage.AssignmentRepository {
		flaky = &flakyStore{MemoryRepository: m, failAfter: -1}
		return flaky
	}))
	a := f.judge("frank@example.com", models.JudgePlatform, "")

	t.Run("retried transparently", func(t *testing.T) {
		flaky.injectConflicts(2)
		got, err := f.engine.Assign(f.ctx, a.ID, round0, sids("s1"))
		require.NoError(t, err)
		require.Equal(t, sids("s1"), got.SubmissionsIn(round0))
		require.Equal(t, int64(2), f.recorder.retries.Load())
	})

	t.Run("surfaced after bound", func(t *testing.T) {
		flaky.injectConflicts(10)
		_, err := f.engine.Assign(f.ctx, a.ID, round0, sids("s2"))
		require.ErrorIs(t, err, ErrConcurrentModification)
		require.Equal(t, sids("s1"), f.reload(a.ID).SubmissionsIn(round0))
		flaky.injectConflicts(0)
	})
}

func TestConcurrentAssignsSameJudge(t *testing.T) {
	f := newFixture(t)
	a := f.judge("grace@example.com", models.JudgePlatform, "")

	const writers = 20
	for i := 0; i < writers; i++ {
		f.submissions.Put(models.Submission{
			ID:          models.SubmissionID(fmt.Sprintf("x%02d", i)),
			HackathonID: hackathonID,
			Status:      models.SubmissionSubmitted,
		})
	}

	// a second engine over the same store stands in for another process
	other := New(f.memory, f.submissions, f.catalog, Config{DefaultMaxSubmissions: 50, MaxRetries: writers})
	f.engine.cfg.MaxRetries = writers

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		e := f.engine
		if i%2 == 1 {
			e = other
		}
		id := models.SubmissionID(fmt.Sprintf("x%02d", i))

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Assign(f.ctx, a.ID, round0, []models.SubmissionID{id})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, f.reload(a.ID).SubmissionsIn(round0), writers)
}
