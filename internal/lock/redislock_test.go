package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/lock"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestWithLockSerialisesCallers(t *testing.T) {
	_, client := newClient(t)

	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, "sale:lock:1", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
	}()

	<-firstDone

	go func() {
		errs <- locker.WithLock(ctx, "sale:lock:1", 100*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	close(releaseFirst)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}

func TestLeasesOwnership(t *testing.T) {
	mr, client := newClient(t)
	leases := lock.Leases{R: client}
	ctx := context.Background()

	require.NoError(t, leases.Acquire(ctx, "unit:1", "sale-a", time.Minute))
	require.NoError(t, leases.Acquire(ctx, "unit:1", "sale-a", time.Minute))
	require.ErrorIs(t, leases.Acquire(ctx, "unit:1", "sale-b", time.Minute), lock.ErrHeld)

	holder, err := leases.Holder(ctx, "unit:1")
	require.NoError(t, err)
	require.Equal(t, "sale-a", holder)

	require.NoError(t, leases.Release(ctx, "unit:1", "sale-b"))
	holder, _ = leases.Holder(ctx, "unit:1")
	require.Equal(t, "sale-a", holder)

	require.NoError(t, leases.Release(ctx, "unit:1", "sale-a"))
	holder, err = leases.Holder(ctx, "unit:1")
	require.NoError(t, err)
	require.Empty(t, holder)

	require.NoError(t, leases.Acquire(ctx, "unit:2", "sale-a", time.Second))
	mr.FastForward(2 * time.Second)
	require.NoError(t, leases.Acquire(ctx, "unit:2", "sale-b", time.Second))
}

func TestLeasesExtend(t *testing.T) {
	mr, client := newClient(t)
	leases := lock.Leases{R: client}
	ctx := context.Background()

	require.NoError(t, leases.Acquire(ctx, "unit:9", "sale-a", time.Second))
	ok, err := leases.Extend(ctx, "unit:9", "sale-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	mr.FastForward(30 * time.Second)
	holder, _ := leases.Holder(ctx, "unit:9")
	require.Equal(t, "sale-a", holder)

	ok, err = leases.Extend(ctx, "unit:9", "sale-b", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWithLockGivesUpAfterAcquireWait(t *testing.T) {
	_, client := newClient(t)
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, AcquireWait: 30 * time.Millisecond}
	ctx := context.Background()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithLock(ctx, "sale:lock:2", time.Second, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	called := false
	err := locker.WithLock(ctx, "sale:lock:2", time.Second, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, lock.ErrNotAcquired)
	require.False(t, called)
}

func TestWithLockKeepsLeaseWhileRunning(t *testing.T) {
	mr, client := newClient(t)
	locker := lock.Locker{R: client, RetryBackoff: 5 * time.Millisecond, AcquireWait: 10 * time.Millisecond}
	ctx := context.Background()

	err := locker.WithLock(ctx, "sale:lock:3", 60*time.Millisecond, func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		require.False(t, hasDeadline, "the acquire wait must not bound the work")
		for range 5 {
			time.Sleep(40 * time.Millisecond)
			mr.FastForward(40 * time.Millisecond)
			require.True(t, mr.Exists("sale:lock:3"), "lease expired while held")
		}
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists("sale:lock:3"))
}
