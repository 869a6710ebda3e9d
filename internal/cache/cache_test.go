package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/aeris/pkg/logger"
)

type station struct {
	ICAO string  `json:"icao"`
	Temp float64 `json:"temp"`
}

func TestMemoryCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)

	c.Set(ctx, "k", []byte("v"), 0)
	v, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), v)
	assert.Equal(t, 1, c.Len())

	c.Delete(ctx, "k")
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, "memory", c.Backend())
}

func TestMemoryCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)
	c.Set(ctx, "k", []byte("v"), 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, SetJSON(ctx, c, "metar:LEMD", station{ICAO: "LEMD", Temp: 14}, 0))
	got, ok := GetJSON[station](ctx, c, "metar:LEMD")
	require.True(t, ok)
	assert.Equal(t, station{ICAO: "LEMD", Temp: 14}, got)

	c.Set(ctx, "bad", []byte("{"), 0)
	_, ok = GetJSON[station](ctx, c, "bad")
	assert.False(t, ok)
	_, ok = c.Get(ctx, "bad")
	assert.False(t, ok, "undecodable entry is evicted")
}

func TestGetOrSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)
	calls := 0
	loader := func(context.Context) (station, error) {
		calls++
		return station{ICAO: "LEBL"}, nil
	}

	v, hit, err := GetOrSet(ctx, c, "s", 0, loader)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "LEBL", v.ICAO)

	v, hit, err = GetOrSet(ctx, c, "s", 0, loader)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "LEBL", v.ICAO)
	assert.Equal(t, 1, calls)

	_, _, err = GetOrSet(ctx, c, "e", 0, func(context.Context) (station, error) {
		return station{}, errors.New("upstream down")
	})
	assert.Error(t, err)
	_, ok := c.Get(ctx, "e")
	assert.False(t, ok)
}

func TestNewRedisCache_Errors(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not a url", "aeris:", time.Minute, logger.NewNop())
	assert.ErrorContains(t, err, "invalid redis url")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = NewRedisCache(ctx, "redis://127.0.0.1:1/0", "aeris:", time.Minute, logger.NewNop())
	assert.ErrorContains(t, err, "failed to connect to Redis")
}
