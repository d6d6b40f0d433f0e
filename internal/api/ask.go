package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ledgerask/ledgerask/internal/auth"
	"github.com/ledgerask/ledgerask/internal/pipeline"
)

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	RequestID string   `json:"request_id"`
	SQL       string   `json:"sql"`
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Table     string   `json:"table"`
}

type failureStatus struct {
	status    int
	code      string
	retryable bool
}

var failureStatuses = map[pipeline.FailureKind]failureStatus{
	pipeline.FailureInvalidQuestion:     {status: http.StatusBadRequest, code: "INVALID_QUESTION"},
	pipeline.FailureStoreUnavailable:    {status: http.StatusServiceUnavailable, code: "STORE_UNAVAILABLE", retryable: true},
	pipeline.FailureUpstreamUnavailable: {status: http.StatusGatewayTimeout, code: "UPSTREAM_UNAVAILABLE", retryable: true},
	pipeline.FailureGenerationFailed:    {status: http.StatusBadGateway, code: "GENERATION_FAILED"},
	pipeline.FailureQueryRejected:       {status: http.StatusUnprocessableEntity, code: "QUERY_REJECTED"},
	pipeline.FailureExecutionFailed:     {status: http.StatusBadRequest, code: "EXECUTION_FAILED"},
}

func (s *server) ask(w http.ResponseWriter, r *http.Request) {
	if s.deps.Asker == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "PIPELINE_NOT_CONFIGURED", "question pipeline is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	response := s.deps.Asker.Ask(r.Context(), request.Question)
	if response.Failure != nil {
		status, ok := failureStatuses[response.Failure.Kind]
		if !ok {
			status = failureStatus{status: http.StatusInternalServerError, code: "INTERNAL"}
		}
		extra := map[string]any{"request_id": response.RequestID, "kind": response.Failure.Kind}
		if response.SQL != "" {
			extra["sql"] = response.SQL
		}
		writeError(r.Context(), w, status.status, status.code, response.Failure.Message, status.retryable, extra)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{
		RequestID: response.RequestID,
		SQL:       response.SQL,
		Columns:   nonNilColumns(response.Columns),
		Rows:      nonNilRows(response.Rows),
		Table:     response.Table,
	})
}

// legacyQuery keeps the original wire shape: {sql, results:{columns, data}}
// on success and {sql?, error} on failure, always with status 200.
func (s *server) legacyQuery(w http.ResponseWriter, r *http.Request) {
	if s.deps.Asker == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]any{"error": "question pipeline is not configured"})
		return
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": err.Error()})
		return
	}
	question := r.URL.Query().Get("query")
	if strings.TrimSpace(question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "query parameter is required"})
		return
	}

	response := s.deps.Asker.Ask(r.Context(), question)
	if response.Failure != nil {
		payload := map[string]any{"error": response.Failure.Message}
		if response.SQL != "" {
			payload["sql"] = response.SQL
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sql": response.SQL,
		"results": map[string]any{
			"columns": nonNilColumns(response.Columns),
			"data":    nonNilRows(response.Rows),
		},
	})
}

func nonNilColumns(columns []string) []string {
	if columns == nil {
		return []string{}
	}
	return columns
}

func nonNilRows(rows [][]any) [][]any {
	if rows == nil {
		return [][]any{}
	}
	return rows
}
