package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/judge-engine/internal/models"
)

// newTestPostgres connects to JUDGE_ENGINE_TEST_DSN or skips
func newTestPostgres(t *testing.T) *PostgresRepository {
	t.Helper()

	dsn := os.Getenv("JUDGE_ENGINE_TEST_DSN")
	if dsn == "" {
		t.Skip("JUDGE_ENGINE_TEST_DSN not set, skipping")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := NewPostgresRepository(ctx, PostgresConfig{DSN: dsn, MaxOpenConns: 4, MaxIdleConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	require.NoError(t, Migrate(ctx, repo.Pool(), ""))
	return repo
}

func TestPostgresRepositoryRoundTrip(t *testing.T) {
	repo := newTestPostgres(t)
	ctx := context.Background()

	hackathonID := models.HackathonID("pg-test-" + uuid.NewString())
	now := time.Now().UTC().Truncate(time.Millisecond)

	a := &models.JudgeAssignment{
		ID:          models.AssignmentID(uuid.NewString()),
		HackathonID: hackathonID,
		Judge: models.JudgeIdentity{
			Email:     "Judge@Example.com",
			JudgeType: models.JudgeHybrid,
		},
		AssignedRounds: []models.RoundBinding{
			{RoundIndex: 0, RoundName: "Review", AssignedSubmissionIDs: []models.SubmissionID{"s1", "s2"}, MaxSubmissions: 10},
		},
		Status:    models.AssignmentActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.CreateAssignment(ctx, a))
	require.Equal(t, int64(1), a.Version)

	dup := a.Clone()
	dup.ID = models.AssignmentID(uuid.NewString())
	dup.Judge.Email = "judge@example.com"
	require.ErrorIs(t, repo.CreateAssignment(ctx, dup), ErrAlreadyExists)

	got, err := repo.FindByEmail(ctx, hackathonID, "JUDGE@example.com")
	require.NoError(t, err)
	require.Equal(t, a.ID, got.ID)
	require.Equal(t, []models.SubmissionID{"s1", "s2"}, got.AssignedRounds[0].AssignedSubmissionIDs)

	stale := got.Clone()
	got.AssignedRounds[0].AssignedSubmissionIDs = []models.SubmissionID{"s1"}
	require.NoError(t, repo.SaveAssignment(ctx, got))
	require.Equal(t, int64(2), got.Version)

	require.ErrorIs(t, repo.SaveAssignment(ctx, stale), ErrVersionConflict)

	active, err := repo.FindActiveByHackathon(ctx, hackathonID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, int64(2), active[0].Version)
	require.Equal(t, []models.SubmissionID{"s1"}, active[0].AssignedRounds[0].AssignedSubmissionIDs)

	_, err = repo.GetAssignment(ctx, models.AssignmentID(uuid.NewString()))
	require.ErrorIs(t, err, ErrNotFound)
}
