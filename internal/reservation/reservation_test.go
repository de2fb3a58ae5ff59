package reservation_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/reservation"
)

func newReserver(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *reservation.Reserver) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, reservation.New(lock.Leases{R: client}, ttl)
}

func TestConcurrentSalesCannotShareUnit(t *testing.T) {
	_, r := newReserver(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, r.Reserve(ctx, "sale-a", "imei-1"))
	require.ErrorIs(t, r.Reserve(ctx, "sale-b", "imei-1"), reservation.ErrUnitReserved)
	require.NoError(t, r.Reserve(ctx, "sale-a", "imei-1"))

	require.NoError(t, r.Release(ctx, "sale-a", "imei-1"))
	require.NoError(t, r.Reserve(ctx, "sale-b", "imei-1"))

	holder, err := r.Holder(ctx, "imei-1")
	require.NoError(t, err)
	require.Equal(t, "sale-b", holder)
}

func TestLeaseExpires(t *testing.T) {
	mr, r := newReserver(t, 10*time.Second)
	ctx := context.Background()

	require.NoError(t, r.Reserve(ctx, "sale-a", "imei-2"))
	mr.FastForward(11 * time.Second)
	require.NoError(t, r.Reserve(ctx, "sale-b", "imei-2"))
}

func TestExtendReportsLostUnits(t *testing.T) {
	mr, r := newReserver(t, 10*time.Second)
	ctx := context.Background()

	require.NoError(t, r.Reserve(ctx, "sale-a", "imei-3"))
	require.NoError(t, r.Reserve(ctx, "sale-a", "imei-4"))
	mr.FastForward(11 * time.Second)
	require.NoError(t, r.Reserve(ctx, "sale-b", "imei-4"))
	require.NoError(t, r.Reserve(ctx, "sale-a", "imei-3"))

	lost, err := r.Extend(ctx, "sale-a", []string{"imei-3", "imei-4"})
	require.NoError(t, err)
	require.Equal(t, []string{"imei-4"}, lost)

	require.NoError(t, r.ReleaseAll(ctx, "sale-a", []string{"imei-3", "imei-4"}))
	holder, _ := r.Holder(ctx, "imei-4")
	require.Equal(t, "sale-b", holder)
	holder, _ = r.Holder(ctx, "imei-3")
	require.Empty(t, holder)
}
