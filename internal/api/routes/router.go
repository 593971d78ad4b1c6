package routes

import (
	"net/http"

	"github.com/zatekoja/clinicretail/internal/api/handlers"
	"github.com/zatekoja/clinicretail/internal/api/middleware"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	recordHandler *handlers.RecordHandler
	facetHandler  *handlers.FacetHandler
	healthHandler *handlers.HealthHandler
	streamHandler *handlers.FacetStreamHandler

	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. cacheMiddleware and metrics may be nil.
// Use WithFacetStream to expose facet invalidations over Server-Sent Events.
func NewRouter(
	recordHandler *handlers.RecordHandler,
	facetHandler *handlers.FacetHandler,
	healthHandler *handlers.HealthHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		recordHandler:   recordHandler,
		facetHandler:    facetHandler,
		healthHandler:   healthHandler,
		cacheMiddleware: cacheMiddleware,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// WithFacetStream mounts the facet invalidation stream
func (r *Router) WithFacetStream(streamHandler *handlers.FacetStreamHandler) *Router {
	r.streamHandler = streamHandler
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	// Record search
	r.mux.HandleFunc("GET /api/records/{entity}", r.recordHandler.ListRecords)

	// Facet option lists
	r.mux.HandleFunc("POST /api/facets/invalidate", r.facetHandler.Invalidate)
	r.mux.HandleFunc("GET /api/facets/{facet}", r.facetHandler.ListOptions)

	if r.streamHandler != nil {
		r.mux.HandleFunc("GET /api/stream/facets", r.streamHandler.StreamInvalidations)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// CORS wraps everything so headers are set even on cache hits
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
