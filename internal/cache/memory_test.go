package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMemoryAbsentVersusZero(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, found, err := c.Get(ctx, "never_written")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, PutJSON(ctx, c, "zero", 0, time.Hour))
	require.NoError(t, c.Put(ctx, "empty", []byte{}, time.Hour))

	var n float64 = -1
	found, err = GetJSON(ctx, c, "zero", &n)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, float64(0), n)

	v, found, err := c.Get(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, v)
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemory().WithClock(clock.Now)

	require.NoError(t, c.Put(ctx, "rate", []byte("3.25"), time.Hour))

	ttl, found, err := c.TTL(ctx, "rate")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, time.Hour, ttl)

	clock.Advance(59 * time.Minute)
	v, found, err := c.Get(ctx, "rate")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "3.25", string(v))

	clock.Advance(time.Minute)
	_, found, err = c.Get(ctx, "rate")
	require.NoError(t, err)
	assert.False(t, found, "expired key must read as absent")

	_, found, err = c.TTL(ctx, "rate")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryNoTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	require.NoError(t, c.Put(ctx, "k", []byte("v"), 0))

	ttl, found, err := c.TTL(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Zero(t, ttl)

	require.NoError(t, c.Delete(ctx, "k"))
	_, found, _ = c.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryCopiesValues(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	buf := []byte("abc")
	require.NoError(t, c.Put(ctx, "k", buf, time.Minute))
	buf[0] = 'x'

	v, _, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(v))
}

func TestGetJSONDecodeError(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()
	require.NoError(t, c.Put(ctx, "bad", []byte("{"), time.Minute))

	var out map[string]any
	_, err := GetJSON(ctx, c, "bad", &out)
	assert.Error(t, err)
}
