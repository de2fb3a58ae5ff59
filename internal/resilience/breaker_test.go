package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/obs"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(minRequests int, openFor time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	b := NewBreaker("fees", minRequests, 0.5, openFor)
	b.now = clock.now
	return b, clock
}

func TestBreakerTransitions(t *testing.T) {
	b, clock := newTestBreaker(2, time.Minute)
	ctx := context.Background()

	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)

	require.Equal(t, Open, b.State())
	require.False(t, b.Allow(ctx), "open breaker rejects calls")

	clock.advance(time.Minute)
	require.True(t, b.Allow(ctx), "cool-off admits a probe")
	require.Equal(t, HalfOpen, b.State())
	b.Report(ctx, true)
	require.Equal(t, Closed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(1, time.Second)
	ctx := context.Background()

	b.Report(ctx, false)
	clock.advance(time.Second)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, Open, b.State())
	require.False(t, b.Allow(ctx))
}

func TestBreakerDo(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	ctx := context.Background()
	boom := errors.New("connection refused")

	require.ErrorIs(t, b.Do(ctx, func(context.Context) error { return boom }), boom)
	require.ErrorIs(t, b.Do(ctx, func(context.Context) error {
		t.Fatal("open breaker must not call through")
		return nil
	}), ErrOpenCircuit)
}

func TestBreakerDoIgnoresCallerCancellation(t *testing.T) {
	b, _ := newTestBreaker(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, Closed, b.State())
}

func TestBreakerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	b, clock := newTestBreaker(1, time.Second)
	b.Metrics = obs.NewBreakerMetrics("pos", reg)
	ctx := context.Background()

	b.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(b.Metrics.State.WithLabelValues("fees")))

	clock.advance(time.Second)
	require.True(t, b.Allow(ctx))
	require.Equal(t, 2.0, testutil.ToFloat64(b.Metrics.State.WithLabelValues("fees")))

	b.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(b.Metrics.State.WithLabelValues("fees")))
	require.Equal(t, 1.0, testutil.ToFloat64(b.Metrics.Transitions.WithLabelValues("fees", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(b.Metrics.Transitions.WithLabelValues("fees", "half_open", "closed")))
}
