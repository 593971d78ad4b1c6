package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/zatekoja/clinicretail/internal/domain/providers"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
)

// CacheKeyPrefix namespaces every cached HTTP response
const CacheKeyPrefix = "http:cache:"

// CacheConfig holds cache configuration for specific routes
type CacheConfig struct {
	TTLSeconds int
	Enabled    bool
}

// CacheMiddleware provides HTTP response caching
type CacheMiddleware struct {
	cache        providers.CacheProvider
	routeConfigs map[string]CacheConfig
}

// NewCacheMiddleware caches facet option lists for facetTTLSeconds
func NewCacheMiddleware(cache providers.CacheProvider, facetTTLSeconds int) *CacheMiddleware {
	return &CacheMiddleware{
		cache: cache,
		routeConfigs: map[string]CacheConfig{
			"/api/facets/": {TTLSeconds: facetTTLSeconds, Enabled: facetTTLSeconds > 0},
		},
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		config := m.getRouteConfig(r.URL.Path)
		if !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		logger := observability.LoggerFromContext(r.Context())
		cacheKey := CacheKey(r)

		cached, err := m.cache.Get(r.Context(), cacheKey)
		if err == nil {
			logger.Debug().Str("cache_key", cacheKey).Msg("Cache hit")
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
		if !errors.Is(err, providers.ErrCacheMiss) {
			logger.Warn().Err(err).Str("cache_key", cacheKey).Msg("Cache lookup failed, serving uncached")
		}

		w.Header().Set("X-Cache", "MISS")
		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		// Only cache successful responses
		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(r.Context(), cacheKey, recorder.body.Bytes(), config.TTLSeconds); err != nil {
				logger.Warn().Err(err).Str("cache_key", cacheKey).Msg("Failed to cache response")
			}
		}
	})
}

// getRouteConfig gets the cache configuration for a route
func (m *CacheMiddleware) getRouteConfig(path string) CacheConfig {
	if config, exists := m.routeConfigs[path]; exists {
		return config
	}
	for pattern, config := range m.routeConfigs {
		if strings.HasPrefix(path, pattern) {
			return config
		}
	}
	return CacheConfig{Enabled: false}
}

// Invalidate drops every cached response under path, e.g. "/api/facets/brand"
func (m *CacheMiddleware) Invalidate(ctx context.Context, path string) (int, error) {
	if m.cache == nil {
		return 0, nil
	}
	return m.cache.DeletePrefix(ctx, PathPrefix(path))
}

// CacheKey is the path in clear followed by a hash of the sorted query, so a
// whole path can be invalidated by prefix
func CacheKey(r *http.Request) string {
	hash := sha256.Sum256([]byte(r.URL.Query().Encode()))
	return PathPrefix(r.URL.Path) + hex.EncodeToString(hash[:])
}

// PathPrefix is the key prefix shared by every cached response of path
func PathPrefix(path string) string {
	return CacheKeyPrefix + strings.TrimRight(path, "/") + ":"
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

// WriteHeader captures the status code
func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

// Write captures the response body and writes to the client
func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
