package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicretail/internal/domain/providers"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	ttls    map[string]int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string][]byte{}, ttls: map[string]int{}}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) GetMulti(_ context.Context, keys []string) (map[string][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := c.entries[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = append([]byte(nil), value...)
	c.ttls[key] = expirationSeconds
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *mapCache) DeletePrefix(_ context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"data":[{"id":3,"label":"Acme Co"}]}`))
	})
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestCacheMiddleware_CachesFacetResponses(t *testing.T) {
	cache := newMapCache()
	calls := 0
	h := NewCacheMiddleware(cache, 120).Middleware(countingHandler(&calls, http.StatusOK))

	first := serve(h, http.MethodGet, "/api/facets/brand?q=acme")
	second := serve(h, http.MethodGet, "/api/facets/brand?q=acme")

	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	for _, ttl := range cache.ttls {
		assert.Equal(t, 120, ttl)
	}
}

func TestCacheMiddleware_QueryOrderDoesNotMatter(t *testing.T) {
	req1 := httptest.NewRequest(http.MethodGet, "/api/facets/brand?q=acme&page=1", nil)
	req2 := httptest.NewRequest(http.MethodGet, "/api/facets/brand?page=1&q=acme", nil)

	assert.Equal(t, CacheKey(req1), CacheKey(req2))
	assert.True(t, strings.HasPrefix(CacheKey(req1), "http:cache:/api/facets/brand:"))
}

func TestCacheMiddleware_Bypass(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		status int
	}{
		{"uncached route", http.MethodGet, "/api/records/products", http.StatusOK},
		{"non-GET", http.MethodPost, "/api/facets/invalidate", http.StatusOK},
		{"error responses", http.MethodGet, "/api/facets/brand", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := newMapCache()
			calls := 0
			h := NewCacheMiddleware(cache, 60).Middleware(countingHandler(&calls, tt.status))

			serve(h, tt.method, tt.target)
			serve(h, tt.method, tt.target)

			assert.Equal(t, 2, calls)
			assert.Empty(t, cache.entries)
		})
	}
}

func TestCacheMiddleware_ZeroTTLDisablesCaching(t *testing.T) {
	cache := newMapCache()
	calls := 0
	h := NewCacheMiddleware(cache, 0).Middleware(countingHandler(&calls, http.StatusOK))

	serve(h, http.MethodGet, "/api/facets/brand")
	serve(h, http.MethodGet, "/api/facets/brand")

	assert.Equal(t, 2, calls)
}

func TestCacheMiddleware_InvalidateDropsOnlyThatFacet(t *testing.T) {
	cache := newMapCache()
	calls := 0
	m := NewCacheMiddleware(cache, 60)
	h := m.Middleware(countingHandler(&calls, http.StatusOK))

	serve(h, http.MethodGet, "/api/facets/brand?q=a")
	serve(h, http.MethodGet, "/api/facets/brand?q=b")
	serve(h, http.MethodGet, "/api/facets/brands?q=a")
	serve(h, http.MethodGet, "/api/facets/material")

	removed, err := m.Invalidate(context.Background(), "/api/facets/brand")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Len(t, cache.entries, 2)

	assert.Equal(t, "MISS", serve(h, http.MethodGet, "/api/facets/brand?q=a").Header().Get("X-Cache"))
	assert.Equal(t, "HIT", serve(h, http.MethodGet, "/api/facets/material").Header().Get("X-Cache"))
}

func TestCacheMiddleware_NilCache(t *testing.T) {
	calls := 0
	m := NewCacheMiddleware(nil, 60)
	h := m.Middleware(countingHandler(&calls, http.StatusOK))

	serve(h, http.MethodGet, "/api/facets/brand")
	n, err := m.Invalidate(context.Background(), "/api/facets/brand")

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, calls)
}
