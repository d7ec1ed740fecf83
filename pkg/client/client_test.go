package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/terra-clan/judge-engine/internal/api"
	"github.com/terra-clan/judge-engine/internal/catalog"
	"github.com/terra-clan/judge-engine/internal/config"
	"github.com/terra-clan/judge-engine/internal/engine"
	"github.com/terra-clan/judge-engine/internal/models"
	"github.com/terra-clan/judge-engine/internal/storage"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	loader := catalog.NewLoader()
	loader.Add(&models.Hackathon{
		ID: "hack-1",
		ProblemStatements: []models.ProblemStatement{
			{ID: "ps-general", Text: "Open track", Kind: models.ProblemStatementGeneral},
		},
		Rounds: []models.Round{{Index: 0, Name: "Review", Type: "project"}},
	})

	subs := storage.NewMemorySubmissionRepository(
		models.Submission{ID: "s1", HackathonID: "hack-1", ProblemStatementID: "ps-general", Status: models.SubmissionSubmitted},
		models.Submission{ID: "s2", HackathonID: "hack-1", ProblemStatementID: "ps-general", Status: models.SubmissionSubmitted},
		models.Submission{ID: "s3", HackathonID: "hack-1", ProblemStatementID: "ps-general", Status: models.SubmissionSubmitted},
	)

	eng := engine.New(storage.NewMemoryRepository(), subs, loader, engine.Config{})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	ts := httptest.NewServer(api.NewServer(config.ServerConfig{}, eng, nil, metrics).Router())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL, WithHeader("X-Request-ID", "client-test"))
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	require.NoError(t, c.Health(ctx))
	require.NoError(t, c.Ready(ctx))

	var judges []*JudgeAssignment
	for _, email := range []string{"j1@example.com", "j2@example.com"} {
		a, err := c.InviteJudge(ctx, "hack-1", InviteRequest{Email: email, JudgeType: JudgePlatform})
		require.NoError(t, err)
		require.Equal(t, AssignmentPending, a.Status)

		a, err = c.ActivateJudge(ctx, "hack-1", email)
		require.NoError(t, err)
		judges = append(judges, a)
	}

	round := RoundScope(0)
	result, err := c.AutoDistribute(ctx, "hack-1", DistributeRequest{
		Scope:         round,
		AssignmentIDs: []AssignmentID{judges[0].ID, judges[1].ID},
		SubmissionIDs: []SubmissionID{"s1", "s2", "s3"},
	})
	require.NoError(t, err)
	require.Len(t, result.Shares, 2)

	ov, err := c.Overview(ctx, "hack-1")
	require.NoError(t, err)
	require.Len(t, ov.Assigned, 3)
	require.Empty(t, ov.Unassigned)

	view, err := c.JudgeView(ctx, "hack-1", "j1@example.com")
	require.NoError(t, err)
	require.True(t, view.HasSpecificAssignments)
	require.Len(t, view.Submissions, 2)

	report, err := c.VerifyConsistency(ctx, "hack-1", "j2@example.com")
	require.NoError(t, err)
	require.True(t, report.Consistent())

	a, err := c.UnassignOne(ctx, judges[0].ID, round, "s1")
	require.NoError(t, err)
	require.Equal(t, []SubmissionID{"s2"}, a.SubmissionsIn(round))

	a, err = c.Assign(ctx, judges[0].ID, round, []SubmissionID{"s1"})
	require.NoError(t, err)
	require.Len(t, a.SubmissionsIn(round), 2)

	a, err = c.UnassignAll(ctx, judges[0].ID, round)
	require.NoError(t, err)
	require.Empty(t, a.SubmissionsIn(round))

	ps := ProblemStatementScope("ps-general")
	a, err = c.BindScope(ctx, judges[1].ID, ps, 0)
	require.NoError(t, err)
	require.True(t, a.HasScope(ps))

	a, err = c.UnbindScope(ctx, judges[1].ID, ps)
	require.NoError(t, err)
	require.False(t, a.HasScope(ps))

	a, err = c.CompleteAssignment(ctx, judges[1].ID)
	require.NoError(t, err)
	require.Equal(t, AssignmentCompleted, a.Status)

	a, err = c.RemoveAssignment(ctx, judges[0].ID)
	require.NoError(t, err)
	require.Equal(t, AssignmentRemoved, a.Status)

	list, err := c.ListAssignments(ctx, "hack-1", AssignmentRemoved)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := c.GetAssignment(ctx, judges[1].ID)
	require.NoError(t, err)
	require.Equal(t, judges[1].ID, got.ID)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.GetAssignment(ctx, "missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "not_found", apiErr.Code)

	_, err = c.InviteJudge(ctx, "hack-1", InviteRequest{Email: "j@example.com", JudgeType: JudgePlatform})
	require.NoError(t, err)
	a, err := c.ActivateJudge(ctx, "hack-1", "j@example.com")
	require.NoError(t, err)

	_, err = c.AutoDistribute(ctx, "hack-1", DistributeRequest{
		Scope:         RoundScope(0),
		AssignmentIDs: []AssignmentID{a.ID},
		SubmissionIDs: []SubmissionID{"s1"},
	})
	require.NoError(t, err)

	_, err = c.AutoDistribute(ctx, "hack-1", DistributeRequest{
		Scope:         RoundScope(0),
		AssignmentIDs: []AssignmentID{a.ID},
		SubmissionIDs: []SubmissionID{"s1"},
	})
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusConflict, apiErr.StatusCode)
	require.Equal(t, "conflict_requires_overwrite", apiErr.Code)
	require.Equal(t, []interface{}{"s1"}, apiErr.Details["submission_ids"])
}
