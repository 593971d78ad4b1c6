package cache

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/clinicretail/internal/domain/providers"
)

// setupRedis connects to REDIS_ADDR, skipping the test when it is not set
func setupRedis(t *testing.T) (*RedisAdapter, string) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis adapter test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())

	// Unique namespace so parallel runs never collide.
	return NewRedisAdapterFromClient(client), "test:" + uuid.NewString() + ":"
}

func TestRedisAdapter_GetSetDelete(t *testing.T) {
	adapter, ns := setupRedis(t)
	ctx := context.Background()

	_, err := adapter.Get(ctx, ns+"missing")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	require.NoError(t, adapter.Set(ctx, ns+"k", []byte(`{"data":[]}`), 60))
	value, err := adapter.Get(ctx, ns+"k")
	require.NoError(t, err)
	assert.Equal(t, `{"data":[]}`, string(value))

	require.NoError(t, adapter.Delete(ctx, ns+"k"))
	_, err = adapter.Get(ctx, ns+"k")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}

func TestRedisAdapter_DeletePrefix(t *testing.T) {
	adapter, ns := setupRedis(t)
	ctx := context.Background()

	for i := 0; i < scanBatch+5; i++ {
		require.NoError(t, adapter.Set(ctx, fmt.Sprintf("%sfacets:brand:%d", ns, i), []byte("x"), 60))
	}
	require.NoError(t, adapter.Set(ctx, ns+"facets:material:0", []byte("x"), 60))

	deleted, err := adapter.DeletePrefix(ctx, ns+"facets:brand:")
	require.NoError(t, err)
	assert.Equal(t, scanBatch+5, deleted)

	_, err = adapter.Get(ctx, ns+"facets:material:0")
	assert.NoError(t, err)

	deleted, err = adapter.DeletePrefix(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}

func TestRedisAdapter_GetMulti(t *testing.T) {
	adapter, ns := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, adapter.Set(ctx, ns+"a", []byte("1"), 60))
	require.NoError(t, adapter.Set(ctx, ns+"c", []byte("3"), 60))

	values, err := adapter.GetMulti(ctx, []string{ns + "a", ns + "b", ns + "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{ns + "a": []byte("1"), ns + "c": []byte("3")}, values)

	empty, err := adapter.GetMulti(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
