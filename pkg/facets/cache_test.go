package facets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionCache_FreshnessAndStaleRetention(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewSessionCache(time.Minute)
	c.now = func() time.Time { return now }

	key := NewKey("brand", "  Ray ")
	c.Put(key, Entry{Options: []Option{{ID: 1, Label: "Ray Optics"}}})

	entry, ok := c.Get(NewKey("brand", "ray"))
	require.True(t, ok)
	assert.Equal(t, now, entry.FetchedAt)
	assert.True(t, c.IsFresh(entry))

	now = now.Add(2 * time.Minute)
	entry, ok = c.Get(key)
	require.True(t, ok, "stale entries are kept")
	assert.False(t, c.IsFresh(entry))
	assert.Equal(t, "Ray Optics", entry.Options[0].Label)
}

func TestSessionCache_DeleteFacet(t *testing.T) {
	c := NewSessionCache(time.Minute)
	c.Put(NewKey("brand", ""), Entry{})
	c.Put(NewKey("brand", "ray"), Entry{})
	c.Put(NewKey("material", ""), Entry{})

	c.DeleteFacet("brand")
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get(NewKey("material", ""))
	assert.True(t, ok)

	c.DeleteFacet()
	assert.Zero(t, c.Len())
}
