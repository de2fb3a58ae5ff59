package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	ctx := context.Background()

	type doc struct {
		Name string `json:"name"`
	}
	var out doc
	found, err := c.Get(ctx, Key("doc"), &out)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Set(ctx, Key("doc"), doc{Name: "debit"}))
	found, err = c.Get(ctx, Key("doc"), &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "debit", out.Name)

	mr.FastForward(2 * time.Minute)
	found, err = c.Get(ctx, Key("doc"), &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestNilClientAlwaysMisses(t *testing.T) {
	c := New(nil, time.Minute)
	require.NoError(t, c.Set(context.Background(), "k", 1))
	var v int
	found, err := c.Get(context.Background(), "k", &v)
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, c.Delete(context.Background(), "k"))
}

func TestKey(t *testing.T) {
	require.Equal(t, "pos:fees:schedule", Key("fees", "schedule"))
}
