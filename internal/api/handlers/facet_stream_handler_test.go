package handlers_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicretail/internal/api/handlers"
	"github.com/zatekoja/clinicretail/internal/domain/entities"
	"github.com/zatekoja/clinicretail/internal/domain/providers"
)

// MockEventBus fans published events out to in-process subscribers
type MockEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.FacetEvent
	subscribed  chan struct{}
	err         error
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.FacetEvent),
		subscribed:  make(chan struct{}, 10),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.FacetEvent) error {
	m.mu.Lock()
	channels := append([]chan *entities.FacetEvent(nil), m.subscribers[channel]...)
	m.mu.Unlock()

	for _, ch := range channels {
		ch <- event
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.FacetEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	ch := make(chan *entities.FacetEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	m.mu.Unlock()
	m.subscribed <- struct{}{}
	return ch, nil
}

type sseFrame struct {
	event string
	data  string
}

func readFrame(t *testing.T, r *bufio.Reader) sseFrame {
	t.Helper()
	var frame sseFrame
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return frame
		case strings.HasPrefix(line, "event: "):
			frame.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			frame.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestFacetStreamHandler_ForwardsMatchingInvalidations(t *testing.T) {
	bus := NewMockEventBus()
	handler := handlers.NewFacetStreamHandler(bus)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stream/facets", handler.StreamInvalidations)
	server := httptest.NewServer(mux)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/stream/facets?facet=brand", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	reader := bufio.NewReader(resp.Body)
	assert.Equal(t, "connected", readFrame(t, reader).event)
	<-bus.subscribed
	assert.Equal(t, 1, handler.ClientCount())

	publish := func(facets ...string) *entities.FacetEvent {
		event := entities.NewFacetEvent(entities.FacetEventTypeInvalidated, facets)
		require.NoError(t, bus.Publish(context.Background(), providers.EventChannelFacetInvalidations, event))
		return event
	}

	publish("material")
	brand := publish("type", "brand")
	all := publish()

	for _, want := range []*entities.FacetEvent{brand, all} {
		frame := readFrame(t, reader)
		assert.Equal(t, string(entities.FacetEventTypeInvalidated), frame.event)

		var got entities.FacetEvent
		require.NoError(t, json.Unmarshal([]byte(frame.data), &got))
		assert.Equal(t, want.ID, got.ID)
	}

	cancel()
	assert.Eventually(t, func() bool { return handler.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestFacetStreamHandler_SubscribeFailure(t *testing.T) {
	bus := NewMockEventBus()
	bus.err = assert.AnError
	handler := handlers.NewFacetStreamHandler(bus)

	rec := httptest.NewRecorder()
	handler.StreamInvalidations(rec, httptest.NewRequest(http.MethodGet, "/api/stream/facets", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, handler.ClientCount())
}
