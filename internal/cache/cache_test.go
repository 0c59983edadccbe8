package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

func TestKeyNormalizesClaimText(t *testing.T) {
	a := Key("wikipedia", "The Eiffel Tower is in Paris.")
	b := Key("wikipedia", "  the eiffel   tower is in PARIS. ")
	c := Key("llm", "The Eiffel Tower is in Paris.")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "veracity:v1:")
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set("k", []byte("v"), 0))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	// Returned bytes are a copy
	got[0] = 'x'
	again, _ := c.Get("k")
	assert.Equal(t, []byte("v"), again)

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestDiskCacheExpiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set("k", []byte("v"), time.Minute))
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)

	assert.NoError(t, c.Delete("missing"))
}

func TestLayeredCachePromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewDiskCache(dir, time.Hour).Set("k", []byte("disk"), 0))

	c := NewLayeredCache(time.Hour, dir, time.Hour)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("disk"), got)

	mem, ok := c.memory.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("disk"), mem)
}

func TestJSONHelpers(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	in := model.SourceResult{Provider: "wikipedia", Confidence: 72, IsSupported: true}
	require.NoError(t, SetJSON(c, "k", in, 0))

	var out model.SourceResult
	require.True(t, GetJSON(c, "k", &out))
	assert.Equal(t, in, out)

	require.NoError(t, c.Set("bad", []byte("{"), 0))
	assert.False(t, GetJSON(c, "bad", &out))
}

func TestNewFromConfig(t *testing.T) {
	assert.IsType(t, Nop{}, New(model.CacheConfig{Enabled: false}))
	assert.IsType(t, &MemoryCache{}, New(model.CacheConfig{Enabled: true, TTL: time.Minute}))
	assert.IsType(t, &DiskCache{}, New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}))
	assert.IsType(t, &LayeredCache{}, New(model.CacheConfig{Enabled: true, Memory: true, Dir: t.TempDir()}))
}
