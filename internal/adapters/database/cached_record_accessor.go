package database

import (
	"context"
	"fmt"

	"github.com/zatekoja/clinicretail/internal/domain/providers"
	"github.com/zatekoja/clinicretail/internal/domain/repositories"
	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
)

// labelTTL is how long a cached relation label stays valid (in seconds)
const labelTTL = 300

// LabelKeyPrefix namespaces cached relation labels
const LabelKeyPrefix = "labels:"

// CachedRecordAccessor wraps a RecordAccessor with a label cache. Filtered
// queries always reach the store; only id → label lookups are cached.
type CachedRecordAccessor struct {
	accessor repositories.RecordAccessor
	cache    providers.CacheProvider
}

// NewCachedRecordAccessor creates a new cached record accessor
func NewCachedRecordAccessor(accessor repositories.RecordAccessor, cache providers.CacheProvider) *CachedRecordAccessor {
	return &CachedRecordAccessor{
		accessor: accessor,
		cache:    cache,
	}
}

var _ repositories.RecordAccessor = (*CachedRecordAccessor)(nil)

func labelCacheKey(entity string, id int64) string {
	return fmt.Sprintf("%s%s:%d", LabelKeyPrefix, entity, id)
}

// Query starts an uncached query over the named entity
func (a *CachedRecordAccessor) Query(entity string) (repositories.RecordQuery, error) {
	return a.accessor.Query(entity)
}

// LabelsByIDs serves what it can from cache and loads the rest in one batch
func (a *CachedRecordAccessor) LabelsByIDs(ctx context.Context, entity string, ids []int64) (map[int64]string, error) {
	labels := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return labels, nil
	}
	logger := observability.LoggerFromContext(ctx)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = labelCacheKey(entity, id)
	}

	cached, err := a.cache.GetMulti(ctx, keys)
	if err != nil {
		logger.Warn().Err(err).Str("entity", entity).Msg("Label cache lookup failed, loading from store")
		cached = nil
	}

	missing := make([]int64, 0, len(ids))
	for i, id := range ids {
		if data, ok := cached[keys[i]]; ok {
			labels[id] = string(data)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return labels, nil
	}

	loaded, err := a.accessor.LabelsByIDs(ctx, entity, missing)
	if err != nil {
		return nil, err
	}
	for id, label := range loaded {
		labels[id] = label
		if err := a.cache.Set(ctx, labelCacheKey(entity, id), []byte(label), labelTTL); err != nil {
			logger.Warn().Err(err).Str("entity", entity).Int64("id", id).Msg("Failed to cache label")
		}
	}
	return labels, nil
}

// InvalidateLabels drops every cached label of entity
func (a *CachedRecordAccessor) InvalidateLabels(ctx context.Context, entity string) (int, error) {
	return a.cache.DeletePrefix(ctx, LabelKeyPrefix+entity+":")
}
