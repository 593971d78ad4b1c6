package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFromContext_AddsRequestID(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	initLogger(&buf, "clinic-retail", "production")

	ctx := WithRequestID(context.Background(), "req-42")
	LoggerFromContext(ctx).Info().Str("entity", "products").Msg("filter_diagnostics")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "clinic-retail", line["service"])
	assert.Equal(t, "req-42", line["request_id"])
	assert.Equal(t, "products", line["entity"])
	assert.Equal(t, "filter_diagnostics", line["message"])
	assert.Equal(t, "req-42", RequestID(ctx))
}

func TestInitLogger_ProductionSuppressesDebug(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	initLogger(&buf, "clinic-retail", "production")
	GetLogger().Debug().Msg("hidden")

	assert.Zero(t, buf.Len())
	assert.Empty(t, RequestID(context.Background()))
}

func TestRecordHelpers_NilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, nil, "GET", "/health", 200, 0)
		RecordFilterQuery(ctx, nil, "products", 0, nil)
		RecordFacetCache(ctx, nil, "brand", true)
		RecordFacetTransport(ctx, nil, "brand", nil)
	})
}
