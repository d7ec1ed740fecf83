package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/judge-engine/internal/engine"
	"github.com/terra-clan/judge-engine/internal/models"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorDetails(w, status, code, message, nil)
}

func respondErrorDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondEngineError maps engine errors onto HTTP statuses
func respondEngineError(w http.ResponseWriter, err error, msg string) {
	var (
		capacity *engine.CapacityError
		conflict *engine.ConflictError
		partial  *engine.PartialDistributionError
	)

	switch {
	case errors.As(err, &partial):
		slog.Error(msg, "error", err)
		respondErrorDetails(w, http.StatusInternalServerError, "partial_distribution", err.Error(), map[string]interface{}{
			"persisted": partial.Persisted,
			"pending":   partial.Pending,
		})
	case errors.As(err, &capacity):
		respondErrorDetails(w, http.StatusUnprocessableEntity, "capacity_exceeded", err.Error(), map[string]interface{}{
			"assignment_id": capacity.AssignmentID,
			"round_index":   capacity.RoundIndex,
			"requested":     capacity.Requested,
			"max":           capacity.Max,
		})
	case errors.As(err, &conflict):
		respondErrorDetails(w, http.StatusConflict, "conflict_requires_overwrite", err.Error(), map[string]interface{}{
			"scope":          conflict.Scope,
			"submission_ids": conflict.SubmissionIDs,
		})
	case errors.Is(err, engine.ErrNotEligible):
		respondError(w, http.StatusUnprocessableEntity, "not_eligible", err.Error())
	case errors.Is(err, engine.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, engine.ErrConcurrentModification):
		respondError(w, http.StatusConflict, "concurrent_modification", err.Error())
	case errors.Is(err, engine.ErrAlreadyInvited):
		respondError(w, http.StatusConflict, "already_invited", err.Error())
	case errors.Is(err, engine.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, engine.ErrInvalidInput), errors.Is(err, models.ErrInvalidScope):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		slog.Error(msg, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", msg)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func hackathonParam(w http.ResponseWriter, r *http.Request) (models.HackathonID, bool) {
	id, err := models.ParseHackathonID(chi.URLParam(r, "hackathonID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "hackathon id is required")
		return "", false
	}
	return id, true
}

func assignmentParam(w http.ResponseWriter, r *http.Request) (models.AssignmentID, bool) {
	id, err := models.ParseAssignmentID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "assignment id is required")
		return "", false
	}
	return id, true
}

func emailParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "email"))
	email := models.NormalizeEmail(raw)
	if err != nil || email == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "judge email is required")
		return "", false
	}
	return email, true
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := s.health.HealthCheckAll(r.Context())

	failed := make(map[string]interface{})
	for name, err := range results {
		if err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		respondErrorDetails(w, http.StatusServiceUnavailable, "not_ready", "service not ready", failed)
		return
	}

	checks := make([]string, 0, len(results))
	for name := range results {
		checks = append(checks, name)
	}
	sort.Strings(checks)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": checks,
	})
}

// Judge handlers

func (s *Server) handleInviteJudge(w http.ResponseWriter, r *http.Request) {
	hackathonID, ok := hackathonParam(w, r)
	if !ok {
		return
	}

	var req inviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "email is required")
		return
	}

	a, err := s.engine.InviteJudge(r.Context(), engine.InviteRequest{
		HackathonID:            hackathonID,
		Email:                  req.Email,
		DisplayName:            req.DisplayName,
		JudgeType:              req.JudgeType,
		SponsorCompany:         req.SponsorCompany,
		CanJudgeSponsoredPS:    req.CanJudgeSponsoredPS,
		MaxSubmissionsPerJudge: req.MaxSubmissionsPerJudge,
	})
	if err != nil {
		respondEngineError(w, err, "failed to invite judge")
		return
	}

	respondJSON(w, http.StatusCreated, a)
}

func (s *Server) handleActivateJudge(w http.ResponseWriter, r *http.Request) {
	hackathonID, ok := hackathonParam(w, r)
	if !ok {
		return
	}
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	a, err := s.engine.ActivateJudge(r.Context(), hackathonID, email)
	if err != nil {
		respondEngineError(w, err, "failed to activate judge")
		return
	}

	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	hackathonID, ok := hackathonParam(w, r)
	if !ok {
		return
	}

	status := models.AssignmentStatus(r.URL.Query().Get("status"))

	list, err := s.engine.ListAssignments(r.Context(), hackathonID)
	if err != nil {
		respondEngineError(w, err, "failed to list assignments")
		return
	}

	assignments := make([]*models.JudgeAssignment, 0, len(list))
	for _, a := range list {
		if status == "" || a.Status == status {
			assignments = append(assignments, a)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"assignments": assignments,
		"total":       len(assignments),
	})
}

func (s *Server) handleJudgeView(w http.ResponseWriter, r *http.Request) {
	hackathonID, ok := hackathonParam(w, r)
	if !ok {
		return
	}
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	view, err := s.engine.JudgeView(r.Context(), hackathonID, email)
	if err != nil {
		respondEngineError(w, err, "failed to build judge view")
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleConsistency(w http.ResponseWriter, r *http.Request) {
	hackathonID, ok := hackathonParam(w, r)
	if !ok {
		return
	}
	email, ok := emailParam(w, r)
	if !ok {
		return
	}

	report, err := s.engine.VerifyConsistency(r.Context(), hackathonID, email)
	if err != nil {
		respondEngineError(w, err, "failed to verify consistency")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Hackathon handlers

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	hackathonID, ok := hackathonParam(w, r)
	if !ok {
		return
	}

	ov, err := s.engine.Overview(r.Context(), hackathonID)
	if err != nil {
		respondEngineError(w, err, "failed to build overview")
		return
	}

	respondJSON(w, http.StatusOK, ov)
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	hackathonID, ok := hackathonParam(w, r)
	if !ok {
		return
	}

	var req distributeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	assignmentIDs := make([]models.AssignmentID, 0, len(req.AssignmentIDs))
	for _, raw := range req.AssignmentIDs {
		id, err := models.ParseAssignmentID(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "assignment ids must not be blank")
			return
		}
		assignmentIDs = append(assignmentIDs, id)
	}
	submissionIDs, err := models.ParseSubmissionIDs(req.SubmissionIDs)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "submission ids must not be blank")
		return
	}

	result, err := s.engine.AutoDistribute(r.Context(), engine.DistributeRequest{
		HackathonID:    hackathonID,
		Scope:          req.Scope,
		AssignmentIDs:  assignmentIDs,
		SubmissionIDs:  submissionIDs,
		ForceOverwrite: req.ForceOverwrite,
	})
	if err != nil {
		respondEngineError(w, err, "failed to distribute submissions")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Assignment handlers

func (s *Server) handleGetAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentParam(w, r)
	if !ok {
		return
	}

	a, err := s.engine.GetAssignment(r.Context(), id)
	if err != nil {
		respondEngineError(w, err, "failed to get assignment")
		return
	}

	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleRemoveAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentParam(w, r)
	if !ok {
		return
	}

	a, err := s.engine.RemoveAssignment(r.Context(), id)
	if err != nil {
		respondEngineError(w, err, "failed to remove assignment")
		return
	}

	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleCompleteAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentParam(w, r)
	if !ok {
		return
	}

	a, err := s.engine.CompleteAssignment(r.Context(), id)
	if err != nil {
		respondEngineError(w, err, "failed to complete assignment")
		return
	}

	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleBindScope(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentParam(w, r)
	if !ok {
		return
	}

	var req bindScopeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	a, err := s.engine.BindScope(r.Context(), id, req.Scope, req.MaxSubmissions)
	if err != nil {
		respondEngineError(w, err, "failed to bind scope")
		return
	}

	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleUnbindScope(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentParam(w, r)
	if !ok {
		return
	}

	scope, err := scopeFromQuery(r.URL.Query())
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	a, err := s.engine.UnbindScope(r.Context(), id, scope)
	if err != nil {
		respondEngineError(w, err, "failed to unbind scope")
		return
	}

	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentParam(w, r)
	if !ok {
		return
	}

	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	submissionIDs, err := models.ParseSubmissionIDs(req.SubmissionIDs)
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "submission ids must not be blank")
		return
	}

	a, err := s.engine.Assign(r.Context(), id, req.Scope, submissionIDs)
	if err != nil {
		respondEngineError(w, err, "failed to assign submissions")
		return
	}

	respondJSON(w, http.StatusOK, a)
}

func (s *Server) handleUnassign(w http.ResponseWriter, r *http.Request) {
	id, ok := assignmentParam(w, r)
	if !ok {
		return
	}

	var req unassignRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		a   *models.JudgeAssignment
		err error
	)
	if req.SubmissionID == "" {
		a, err = s.engine.UnassignAll(r.Context(), id, req.Scope)
	} else {
		submissionID, perr := models.ParseSubmissionID(req.SubmissionID)
		if perr != nil {
			respondError(w, http.StatusBadRequest, "validation_error", "submission id must not be blank")
			return
		}
		a, err = s.engine.UnassignOne(r.Context(), id, req.Scope, submissionID)
	}
	if err != nil {
		respondEngineError(w, err, "failed to unassign submissions")
		return
	}

	respondJSON(w, http.StatusOK, a)
}

// scopeFromQuery reads a scope from ?type=round&round_index=N or
// ?type=problem_statement&problem_statement_id=ID
func scopeFromQuery(q url.Values) (models.Scope, error) {
	switch models.ScopeType(q.Get("type")) {
	case models.ScopeRound:
		index, err := strconv.Atoi(q.Get("round_index"))
		if err != nil {
			return models.Scope{}, errors.New("round_index must be an integer")
		}
		return models.RoundScope(index), nil
	case models.ScopeProblemStatement:
		id, err := models.ParseProblemStatementID(q.Get("problem_statement_id"))
		if err != nil {
			return models.Scope{}, errors.New("problem_statement_id is required")
		}
		return models.ProblemStatementScope(id), nil
	default:
		return models.Scope{}, fmt.Errorf("scope type must be %q or %q", models.ScopeRound, models.ScopeProblemStatement)
	}
}
