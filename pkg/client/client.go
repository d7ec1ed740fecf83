// Package client is a Go SDK for the judge-engine HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a Go SDK for judge-engine API
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    http.Header
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHeader adds a header to every request
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// NewClient creates a new judge-engine client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(http.Header),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a non-success response of the API
type APIError struct {
	StatusCode int                    `json:"-"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

// InviteRequest represents a judge invitation
type InviteRequest struct {
	Email                  string    `json:"email"`
	DisplayName            string    `json:"display_name,omitempty"`
	JudgeType              JudgeType `json:"judge_type"`
	SponsorCompany         string    `json:"sponsor_company,omitempty"`
	CanJudgeSponsoredPS    bool      `json:"can_judge_sponsored_ps,omitempty"`
	MaxSubmissionsPerJudge int       `json:"max_submissions_per_judge,omitempty"`
}

// DistributeRequest represents an auto-distribution request
type DistributeRequest struct {
	Scope          Scope          `json:"scope"`
	AssignmentIDs  []AssignmentID `json:"assignment_ids"`
	SubmissionIDs  []SubmissionID `json:"submission_ids"`
	ForceOverwrite bool           `json:"force_overwrite,omitempty"`
}

// InviteJudge invites a judge to a hackathon
func (c *Client) InviteJudge(ctx context.Context, hackathonID HackathonID, req InviteRequest) (*JudgeAssignment, error) {
	var a JudgeAssignment
	if err := c.call(ctx, http.MethodPost, hackathonPath(hackathonID, "judges"), req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ActivateJudge accepts a pending invitation
func (c *Client) ActivateJudge(ctx context.Context, hackathonID HackathonID, email string) (*JudgeAssignment, error) {
	var a JudgeAssignment
	if err := c.call(ctx, http.MethodPost, judgePath(hackathonID, email, "activate"), nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAssignments lists the assignments of a hackathon, optionally filtered by status
func (c *Client) ListAssignments(ctx context.Context, hackathonID HackathonID, status AssignmentStatus) ([]*JudgeAssignment, error) {
	path := hackathonPath(hackathonID, "judges")
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}

	var result struct {
		Assignments []*JudgeAssignment `json:"assignments"`
		Total       int                `json:"total"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Assignments, nil
}

// JudgeView returns the submissions a judge sees
func (c *Client) JudgeView(ctx context.Context, hackathonID HackathonID, email string) (*JudgeView, error) {
	var view JudgeView
	if err := c.call(ctx, http.MethodGet, judgePath(hackathonID, email, "view"), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// VerifyConsistency compares the overview with a judge's view
func (c *Client) VerifyConsistency(ctx context.Context, hackathonID HackathonID, email string) (*ConsistencyReport, error) {
	var report ConsistencyReport
	if err := c.call(ctx, http.MethodGet, judgePath(hackathonID, email, "consistency"), nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Overview returns the assignment overview of a hackathon
func (c *Client) Overview(ctx context.Context, hackathonID HackathonID) (*Overview, error) {
	var ov Overview
	if err := c.call(ctx, http.MethodGet, hackathonPath(hackathonID, "overview"), nil, &ov); err != nil {
		return nil, err
	}
	return &ov, nil
}

// AutoDistribute splits submissions among judges within a scope
func (c *Client) AutoDistribute(ctx context.Context, hackathonID HackathonID, req DistributeRequest) (*DistributionResult, error) {
	var result DistributionResult
	if err := c.call(ctx, http.MethodPost, hackathonPath(hackathonID, "distribute"), req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAssignment retrieves an assignment by ID
func (c *Client) GetAssignment(ctx context.Context, id AssignmentID) (*JudgeAssignment, error) {
	return c.assignmentCall(ctx, http.MethodGet, id, "", nil)
}

// RemoveAssignment revokes an assignment
func (c *Client) RemoveAssignment(ctx context.Context, id AssignmentID) (*JudgeAssignment, error) {
	return c.assignmentCall(ctx, http.MethodDelete, id, "", nil)
}

// CompleteAssignment marks an assignment as finished
func (c *Client) CompleteAssignment(ctx context.Context, id AssignmentID) (*JudgeAssignment, error) {
	return c.assignmentCall(ctx, http.MethodPost, id, "/complete", nil)
}

// BindScope makes a judge cover a scope. maxSubmissions of zero keeps the current cap.
func (c *Client) BindScope(ctx context.Context, id AssignmentID, scope Scope, maxSubmissions int) (*JudgeAssignment, error) {
	body := map[string]interface{}{"scope": scope}
	if maxSubmissions > 0 {
		body["max_submissions"] = maxSubmissions
	}
	return c.assignmentCall(ctx, http.MethodPost, id, "/scopes", body)
}

// UnbindScope drops a scope from a judge
func (c *Client) UnbindScope(ctx context.Context, id AssignmentID, scope Scope) (*JudgeAssignment, error) {
	q := url.Values{}
	q.Set("type", string(scope.Type))
	if scope.Type == ScopeRound {
		q.Set("round_index", strconv.Itoa(scope.RoundIndex))
	} else {
		q.Set("problem_statement_id", string(scope.ProblemStatementID))
	}
	return c.assignmentCall(ctx, http.MethodDelete, id, "/scopes?"+q.Encode(), nil)
}

// Assign adds submissions to a judge's scope
func (c *Client) Assign(ctx context.Context, id AssignmentID, scope Scope, submissionIDs []SubmissionID) (*JudgeAssignment, error) {
	return c.assignmentCall(ctx, http.MethodPost, id, "/submissions", map[string]interface{}{
		"scope":          scope,
		"submission_ids": submissionIDs,
	})
}

// UnassignOne removes one submission from a judge's scope
func (c *Client) UnassignOne(ctx context.Context, id AssignmentID, scope Scope, submissionID SubmissionID) (*JudgeAssignment, error) {
	return c.assignmentCall(ctx, http.MethodPost, id, "/unassign", map[string]interface{}{
		"scope":         scope,
		"submission_id": submissionID,
	})
}

// UnassignAll clears a judge's scope
func (c *Client) UnassignAll(ctx context.Context, id AssignmentID, scope Scope) (*JudgeAssignment, error) {
	return c.assignmentCall(ctx, http.MethodPost, id, "/unassign", map[string]interface{}{
		"scope": scope,
	})
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/health", nil, nil)
}

// Ready checks if the service dependencies are reachable
func (c *Client) Ready(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/ready", nil, nil)
}

func (c *Client) assignmentCall(ctx context.Context, method string, id AssignmentID, suffix string, body interface{}) (*JudgeAssignment, error) {
	var a JudgeAssignment
	path := "/api/v1/assignments/" + url.PathEscape(string(id)) + suffix
	if err := c.call(ctx, method, path, body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func hackathonPath(id HackathonID, suffix string) string {
	return "/api/v1/hackathons/" + url.PathEscape(string(id)) + "/" + suffix
}

func judgePath(id HackathonID, email, suffix string) string {
	return hackathonPath(id, "judges/"+url.PathEscape(email)+"/"+suffix)
}

// call performs a request and decodes the response envelope into out
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	status, resp, err := c.doRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}

	var result struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *APIError       `json:"error"`
	}

	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal response (HTTP %d): %w", status, err)
	}

	if !result.Success {
		apiErr := result.Error
		if apiErr == nil {
			apiErr = &APIError{Code: "unknown", Message: http.StatusText(status)}
		}
		apiErr.StatusCode = status
		return apiErr
	}

	if out != nil && len(result.Data) > 0 {
		if err := json.Unmarshal(result.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
