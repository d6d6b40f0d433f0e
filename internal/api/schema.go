package api

import (
	"net/http"

	"github.com/ledgerask/ledgerask/internal/auth"
	"github.com/ledgerask/ledgerask/internal/ledger"
	"github.com/ledgerask/ledgerask/internal/prompt"
)

type schemaResponse struct {
	Dialect  string           `json:"dialect"`
	Tables   []ledger.Table   `json:"tables"`
	Rules    []string         `json:"rules"`
	Examples []prompt.Example `json:"examples"`
}

func (s *server) schema(w http.ResponseWriter, r *http.Request) {
	if s.deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema reader is not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleSchemaReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	snapshot, err := s.deps.Schema.Schema(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", err.Error(), true, nil)
		return
	}
	writeJSON(w, http.StatusOK, schemaResponse{
		Dialect:  snapshot.Dialect,
		Tables:   snapshot.Tables,
		Rules:    prompt.Rules(snapshot.Dialect),
		Examples: prompt.Examples(),
	})
}
