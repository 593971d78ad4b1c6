package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/filter"
	"github.com/zatekoja/clinicretail/internal/domain/providers"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicretail/pkg/errors"
)

// maxFacetOptions caps one option list; the executor clamps to its own maximum too
const maxFacetOptions = 100

// CacheInvalidator drops cached responses stored under a URL path
type CacheInvalidator interface {
	Invalidate(ctx context.Context, path string) (int, error)
}

// LabelInvalidator drops cached relation labels of an entity
type LabelInvalidator interface {
	InvalidateLabels(ctx context.Context, entity string) (int, error)
}

// FacetEventPublisher broadcasts facet events to other instances and clients
type FacetEventPublisher interface {
	Publish(ctx context.Context, channel string, event *entities.FacetEvent) error
}

// FacetHandler serves option lists for filter widgets
type FacetHandler struct {
	executor    RecordQueryExecutor
	catalog     *entities.Catalog
	invalidator CacheInvalidator
	events      FacetEventPublisher
	labels      LabelInvalidator
}

// NewFacetHandler creates a new facet handler. invalidator may be nil when
// responses are not cached.
func NewFacetHandler(executor RecordQueryExecutor, catalog *entities.Catalog, invalidator CacheInvalidator) *FacetHandler {
	return &FacetHandler{
		executor:    executor,
		catalog:     catalog,
		invalidator: invalidator,
	}
}

// SetEventPublisher announces every invalidation on the facet event channel
func (h *FacetHandler) SetEventPublisher(events FacetEventPublisher) {
	h.events = events
}

// SetLabelInvalidator also drops cached labels of each invalidated facet's entity
func (h *FacetHandler) SetLabelInvalidator(labels LabelInvalidator) {
	h.labels = labels
}

// ListOptions handles GET /api/facets/{facet}
//
// q searches the facet's search field; the full filter vocabulary is also
// accepted. The response is {"data": [{"id": 1, "label": "..."}]}.
func (h *FacetHandler) ListOptions(w http.ResponseWriter, r *http.Request) {
	facet, ok := h.catalog.Facet(r.PathValue("facet"))
	if !ok {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("unknown facet %q", r.PathValue("facet")))
		return
	}
	schema, ok := h.catalog.Entity(facet.Entity)
	if !ok {
		respondWithAppError(w, r, apperrors.NewInternalError("facet "+facet.Name+" has no entity", nil))
		return
	}

	q := r.URL.Query()
	req, _ := ParseFilterRequest(q)
	if search := strings.TrimSpace(q.Get("q")); search != "" {
		req.Fields = append(req.Fields, facet.SearchField)
		req.Values = append(req.Values, search)
	}
	if req.Sort == nil {
		req.Sort = &filter.Sort{Column: schema.LabelColumn, Direction: filter.Asc}
	}
	if req.PageSize <= 0 {
		req.PageSize = maxFacetOptions
	}
	req.With = nil

	page, err := h.executor.Execute(r.Context(), facet.Entity, req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	options := make([]entities.FacetOption, 0, len(page.Data))
	for _, record := range page.Data {
		id, ok := record.ID()
		if !ok {
			continue
		}
		label, ok := record[schema.LabelColumn]
		if !ok || label == nil {
			continue
		}
		options = append(options, entities.FacetOption{ID: id, Label: fmt.Sprint(label)})
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"data": options,
	})
}

// Invalidate handles POST /api/facets/invalidate?facet=brand&facet=material.
// Without facet parameters every facet is invalidated.
func (h *FacetHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query()["facet"]
	names := requested
	if len(names) == 0 {
		names = h.catalog.FacetNames()
	}
	for _, name := range names {
		if _, ok := h.catalog.Facet(name); !ok {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("unknown facet %q", name))
			return
		}
	}

	removed := 0
	for _, name := range names {
		n, err := h.invalidate(r.Context(), name)
		removed += n
		if err != nil {
			observability.LoggerFromContext(r.Context()).Error().Err(err).Str("facet", name).Msg("Failed to invalidate facet cache")
			respondWithError(w, http.StatusServiceUnavailable, "cache unavailable")
			return
		}
	}

	// Subscribers treat an empty list as every facet.
	if h.events != nil {
		event := entities.NewFacetEvent(entities.FacetEventTypeInvalidated, requested)
		if err := h.events.Publish(r.Context(), providers.EventChannelFacetInvalidations, event); err != nil {
			observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("Failed to publish facet invalidation")
		}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"invalidated": names,
		"removed":     removed,
	})
}

func (h *FacetHandler) invalidate(ctx context.Context, name string) (int, error) {
	removed := 0
	if h.invalidator != nil {
		n, err := h.invalidator.Invalidate(ctx, "/api/facets/"+name)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	if h.labels != nil {
		facet, _ := h.catalog.Facet(name)
		n, err := h.labels.InvalidateLabels(ctx, facet.Entity)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}
