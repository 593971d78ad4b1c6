package loaders

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/clinicretail/internal/domain/repositories"
)

type ctxKey string

// ErrLabelNotFound is returned for ids the store has no row for
var ErrLabelNotFound = errors.New("label not found")

const loadersKey ctxKey = "dataloaders"

// LabelLoader batches id → label lookups for one entity
type LabelLoader = dataloader.Loader[int64, string]

// Loaders holds one label loader per entity, created on first use
type Loaders struct {
	accessor repositories.RecordAccessor

	mu     sync.Mutex
	labels map[string]*LabelLoader
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(accessor repositories.RecordAccessor) *Loaders {
	return &Loaders{
		accessor: accessor,
		labels:   make(map[string]*LabelLoader),
	}
}

// Labels returns the label loader for entity
func (l *Loaders) Labels(entity string) *LabelLoader {
	l.mu.Lock()
	defer l.mu.Unlock()

	if loader, ok := l.labels[entity]; ok {
		return loader
	}
	loader := dataloader.NewBatchedLoader(l.batchLabels(entity))
	l.labels[entity] = loader
	return loader
}

func (l *Loaders) batchLabels(entity string) dataloader.BatchFunc[int64, string] {
	return func(ctx context.Context, keys []int64) []*dataloader.Result[string] {
		results := make([]*dataloader.Result[string], len(keys))
		labels, err := l.accessor.LabelsByIDs(ctx, entity, keys)

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[string]{Error: err}
			} else if label, ok := labels[key]; ok {
				results[i] = &dataloader.Result[string]{Data: label}
			} else {
				results[i] = &dataloader.Result[string]{Error: fmt.Errorf("%w: %s %d", ErrLabelNotFound, entity, key)}
			}
		}
		return results
	}
}

// LoadLabels resolves every id it can. Missing ids are left out of the result;
// the first non-missing error is returned alongside the partial map.
func (l *Loaders) LoadLabels(ctx context.Context, entity string, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	values, errs := l.Labels(entity).LoadMany(ctx, ids)()
	var firstErr error
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			if firstErr == nil && !errors.Is(errs[i], ErrLabelNotFound) {
				firstErr = errs[i]
			}
			continue
		}
		if i < len(values) {
			out[id] = values[i]
		}
	}
	return out, firstErr
}

// For returns the loaders for a given context, or nil if none are attached
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(loadersKey).(*Loaders)
	return loaders
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}
