package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when a lease is owned by another holder.
var ErrHeld = errors.New("lock: held by another owner")

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

const extendScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("pexpire", KEYS[1], ARGV[2])
else
  return 0
end`

// Leases grants expiring ownership of Redis keys to named holders.
type Leases struct {
	R *redis.Client
}

// Acquire claims key for holder until ttl elapses. Re-acquiring a key already
// owned by holder refreshes its ttl. ErrHeld is returned when another holder owns it.
func (l Leases) Acquire(ctx context.Context, key, holder string, ttl time.Duration) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	ok, err := l.R.SetNX(ctx, key, holder, ttl).Result()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	extended, err := l.Extend(ctx, key, holder, ttl)
	if err != nil {
		return err
	}
	if !extended {
		return ErrHeld
	}
	return nil
}

// Extend refreshes the ttl of a lease owned by holder, reporting whether it was owned.
func (l Leases) Extend(ctx context.Context, key, holder string, ttl time.Duration) (bool, error) {
	if l.R == nil {
		return false, errors.New("lock: redis client not configured")
	}
	n, err := l.R.Eval(ctx, extendScript, []string{key}, holder, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release drops the lease if holder still owns it.
func (l Leases) Release(ctx context.Context, key, holder string) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if err := l.R.Eval(ctx, releaseScript, []string{key}, holder).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			return l.R.Del(ctx, key).Err()
		}
		return err
	}
	return nil
}

// Holder returns the current owner of key, or "" when it is free.
func (l Leases) Holder(ctx context.Context, key string) (string, error) {
	if l.R == nil {
		return "", errors.New("lock: redis client not configured")
	}
	v, err := l.R.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// ErrNotAcquired is returned when AcquireWait elapses while another holder owns the lock.
var ErrNotAcquired = errors.New("lock: not acquired before wait elapsed")

// Locker provides a Redis-backed mutual exclusion built on Leases.
type Locker struct {
	R            *redis.Client
	RetryBackoff time.Duration
	// AcquireWait bounds the wait for a held lock. Zero waits until ctx is done.
	AcquireWait time.Duration
}

// WithLock executes fn while holding a lock for the provided key. The lease is
// extended every ttl/3 while fn runs and released when it returns. Only the
// acquisition is bounded by AcquireWait; fn runs under ctx.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	token, err := l.acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	leases := Leases{R: l.R}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if owned, err := leases.Extend(context.Background(), key, token, ttl); err == nil && !owned {
					return
				}
			}
		}
	}()
	defer func() {
		close(stop)
		<-done
		_ = leases.Release(context.Background(), key, token)
	}()
	return fn(ctx)
}

func (l Locker) acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	waitCtx := ctx
	if l.AcquireWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.AcquireWait)
		defer cancel()
	}
	token := uuid.NewString()
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	for {
		ok, err := l.R.SetNX(waitCtx, key, token, ttl).Result()
		if err != nil {
			if ctx.Err() == nil && waitCtx.Err() != nil {
				return "", ErrNotAcquired
			}
			return "", err
		}
		if ok {
			return token, nil
		}
		timer := time.NewTimer(retry)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", ErrNotAcquired
		case <-timer.C:
		}
	}
}
