package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/providers"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
)

// heartbeatInterval keeps idle streams open through proxies
const heartbeatInterval = 30 * time.Second

// FacetEventSubscriber delivers facet events until ctx is done
type FacetEventSubscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan *entities.FacetEvent, error)
}

// FacetStreamHandler streams facet invalidations to browsers over Server-Sent Events
type FacetStreamHandler struct {
	events  FacetEventSubscriber
	clients atomic.Int64
}

// NewFacetStreamHandler creates a new facet stream handler
func NewFacetStreamHandler(events FacetEventSubscriber) *FacetStreamHandler {
	return &FacetStreamHandler{events: events}
}

// StreamInvalidations handles GET /api/stream/facets?facet=brand&facet=type.
// Without facet parameters every invalidation is forwarded.
func (h *FacetStreamHandler) StreamInvalidations(w http.ResponseWriter, r *http.Request) {
	wanted := make(map[string]struct{})
	for _, name := range r.URL.Query()["facet"] {
		wanted[name] = struct{}{}
	}

	logger := observability.LoggerFromContext(r.Context())
	eventChan, err := h.events.Subscribe(r.Context(), providers.EventChannelFacetInvalidations)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to subscribe to facet invalidations")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.clients.Add(1)
	defer h.clients.Add(-1)

	h.sendEvent(w, "connected", map[string]interface{}{
		"timestamp": time.Now().UTC(),
	})
	if err := rc.Flush(); err != nil {
		logger.Error().Err(err).Msg("Streaming not supported")
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().UTC(),
			})
			rc.Flush()
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if !matches(event, wanted) {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			rc.Flush()
		}
	}
}

// matches reports whether event touches one of the wanted facets. An event
// without facets concerns all of them.
func matches(event *entities.FacetEvent, wanted map[string]struct{}) bool {
	if len(wanted) == 0 || len(event.Facets) == 0 {
		return true
	}
	for _, f := range event.Facets {
		if _, ok := wanted[f]; ok {
			return true
		}
	}
	return false
}

// sendEvent writes one SSE frame
func (h *FacetStreamHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		observability.GetLogger().Error().Err(err).Str("event", eventType).Msg("Failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// ClientCount returns the number of connected stream clients
func (h *FacetStreamHandler) ClientCount() int {
	return int(h.clients.Load())
}
