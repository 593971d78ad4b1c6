package facets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/zatekoja/clinicretail/pkg/errors"
)

const maxPayloadBytes = 4 << 20

// HTTPTransport fetches facet options from the records API
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPTransport creates a transport against baseURL. requestsPerSecond
// paces outgoing requests; zero or less disables pacing.
func NewHTTPTransport(baseURL string, timeout time.Duration, requestsPerSecond float64) *HTTPTransport {
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Endpoint is the URL searched for facet
func (t *HTTPTransport) Endpoint(facet string) string {
	return fmt.Sprintf("%s/api/facets/%s", t.baseURL, url.PathEscape(facet))
}

// Search implements Transport
func (t *HTTPTransport) Search(ctx context.Context, facet, query string) (interface{}, error) {
	endpoint := t.Endpoint(facet)
	if query != "" {
		endpoint += "?" + url.Values{"q": []string{query}}.Encode()
	}

	var payload interface{}
	if err := t.doJSON(ctx, http.MethodGet, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Invalidate asks the server to drop its cached option lists for facets,
// or for every facet when none are named
func (t *HTTPTransport) Invalidate(ctx context.Context, facets ...string) error {
	endpoint := t.baseURL + "/api/facets/invalidate"
	if len(facets) > 0 {
		endpoint += "?" + url.Values{"facet": facets}.Encode()
	}
	var out interface{}
	return t.doJSON(ctx, http.MethodPost, endpoint, &out)
}

func (t *HTTPTransport) doJSON(ctx context.Context, method, endpoint string, out interface{}) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return apperrors.NewTransportError("facet request not sent", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return apperrors.NewTransportError("invalid facet request", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return apperrors.NewTransportError(fmt.Sprintf("%s %s failed", method, endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apperrors.NewTransportError(fmt.Sprintf("facet api returned status %d", resp.StatusCode), nil)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return apperrors.NewTransportError("failed to decode facet payload", err)
	}
	return nil
}
