package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/filter"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
)

// RecordQueryExecutor runs one filtered, sorted and paginated record query
type RecordQueryExecutor interface {
	Execute(ctx context.Context, entity string, req filter.Request) (*entities.RecordPage, error)
}

// RecordHandler handles record search HTTP requests
type RecordHandler struct {
	executor RecordQueryExecutor
}

// NewRecordHandler creates a new record handler
func NewRecordHandler(executor RecordQueryExecutor) *RecordHandler {
	return &RecordHandler{executor: executor}
}

// ListRecords handles GET /api/records/{entity}
func (h *RecordHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	if entity == "" {
		respondWithError(w, http.StatusBadRequest, "entity is required")
		return
	}

	req, wellFormed := ParseFilterRequest(r.URL.Query())
	if !wellFormed {
		observability.LoggerFromContext(r.Context()).Debug().
			Str("entity", entity).
			Str("s_f", r.URL.Query().Get("s_f")).
			Str("s_v", r.URL.Query().Get("s_v")).
			Msg("Ignoring undecodable dynamic filter")
	}

	page, err := h.executor.Execute(r.Context(), entity, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, page)
}
