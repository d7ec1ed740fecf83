package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terra-clan/judge-engine/internal/models"
)

func submissionIDs(list []models.Submission) []models.SubmissionID {
	out := make([]models.SubmissionID, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}

func TestOverview(t *testing.T) {
	f := newFixture(t)
	alice := f.judge("alice@example.com", models.JudgePlatform, "")
	bob := f.judge("bob@example.com", models.JudgePlatform, "")
	carl := f.judge("carl@example.com", models.JudgePlatform, "")
	f.invite("pending@example.com", models.JudgePlatform, "")

	_, err := f.engine.Assign(f.ctx, alice.ID, round0, sids("s1", "s2"))
	require.NoError(t, err)
	_, err = f.engine.Assign(f.ctx, bob.ID, round0, sids("s2"))
	require.NoError(t, err)
	_, err = f.engine.Assign(f.ctx, bob.ID, psGeneral, sids("s2", "s3"))
	require.NoError(t, err)
	_, err = f.engine.Assign(f.ctx, carl.ID, round0, sids("s4"))
	require.NoError(t, err)
	_, err = f.engine.RemoveAssignment(f.ctx, carl.ID)
	require.NoError(t, err)

	ov, err := f.engine.Overview(f.ctx, hackathonID)
	require.NoError(t, err)
	require.Equal(t, 6, ov.TotalSubmissions)
	require.Equal(t, sids("s4", "s5", "s8"), submissionIDs(ov.Unassigned))
	require.Len(t, ov.Assigned, 3)

	s1 := ov.Assigned[0]
	require.Equal(t, models.SubmissionID("s1"), s1.ID)
	require.Len(t, s1.Bindings, 1)
	require.Equal(t, alice.ID, s1.Bindings[0].AssignmentID)
	require.Equal(t, "alice", s1.Bindings[0].JudgeName)
	require.NotNil(t, s1.Bindings[0].RoundIndex)
	require.Equal(t, 0, *s1.Bindings[0].RoundIndex)
	require.Equal(t, "Project Review", s1.Bindings[0].RoundName)

	s2 := ov.Assigned[1]
	require.Equal(t, models.SubmissionID("s2"), s2.ID)
	require.Len(t, s2.Bindings, 3)
	require.Equal(t, "alice@example.com", s2.Bindings[0].JudgeEmail)
	require.Equal(t, "bob@example.com", s2.Bindings[1].JudgeEmail)
	require.Equal(t, round0, s2.Bindings[1].Scope)
	require.Equal(t, psGeneral, s2.Bindings[2].Scope)
	require.Nil(t, s2.Bindings[2].RoundIndex)

	s3 := ov.Assigned[2]
	require.Equal(t, models.SubmissionID("s3"), s3.ID)
	require.Equal(t, bob.ID, s3.Bindings[0].AssignmentID)

	_, err = f.engine.Overview(f.ctx, "hack-9")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOverviewEmptyHackathon(t *testing.T) {
	f := newFixture(t)

	ov, err := f.engine.Overview(f.ctx, hackathonID)
	require.NoError(t, err)
	require.Equal(t, 6, ov.TotalSubmissions)
	require.Len(t, ov.Unassigned, 6)
	require.Empty(t, ov.Assigned)
}

func TestJudgeView(t *testing.T) {
	f := newFixture(t)
	alice := f.judge("alice@example.com", models.JudgePlatform, "")
	dana := f.judge("dana@example.com", models.JudgePlatform, "")
	f.judge("eve@example.com", models.JudgePlatform, "")
	removed := f.judge("gone@example.com", models.JudgePlatform, "")
	f.invite("pending@example.com", models.JudgePlatform, "")

	_, err := f.engine.Assign(f.ctx, alice.ID, round0, sids("s2", "s1"))
	require.NoError(t, err)
	_, err = f.engine.Assign(f.ctx, alice.ID, round1, sids("s8"))
	require.NoError(t, err)
	_, err = f.engine.BindScope(f.ctx, dana.ID, psGeneral, 0)
	require.NoError(t, err)
	_, err = f.engine.RemoveAssignment(f.ctx, removed.ID)
	require.NoError(t, err)

	t.Run("specific assignments", func(t *testing.T) {
		view, err := f.engine.JudgeView(f.ctx, hackathonID, "Alice@Example.com")
		require.NoError(t, err)
		require.True(t, view.HasSpecificAssignments)
		require.Equal(t, alice.ID, view.AssignmentID)
		require.Equal(t, sids("s1", "s2", "s8"), submissionIDs(view.Submissions))
	})

	t.Run("falls back to covered problem statements", func(t *testing.T) {
		view, err := f.engine.JudgeView(f.ctx, hackathonID, "dana@example.com")
		require.NoError(t, err)
		require.False(t, view.HasSpecificAssignments)
		require.Equal(t, sids("s1", "s2", "s3", "s4", "s5"), submissionIDs(view.Submissions))
	})

	t.Run("no scopes", func(t *testing.T) {
		view, err := f.engine.JudgeView(f.ctx, hackathonID, "eve@example.com")
		require.NoError(t, err)
		require.False(t, view.HasSpecificAssignments)
		require.Empty(t, view.Submissions)
	})

	t.Run("inactive or unknown judges", func(t *testing.T) {
		for _, email := range []string{"gone@example.com", "pending@example.com", "nobody@example.com"} {
			_, err := f.engine.JudgeView(f.ctx, hackathonID, email)
			require.ErrorIs(t, err, ErrNotFound, email)
		}
	})
}
