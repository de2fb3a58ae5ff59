package feeschedule

import (
	"context"

	"github.com/noah-isme/backend-pos/internal/resilience"
	"github.com/noah-isme/backend-pos/internal/ticket"
)

// GuardedSource stops querying a failing source until its breaker recovers,
// so the Provider falls back without waiting on Postgres for every sale.
type GuardedSource struct {
	Source  Source
	Breaker *resilience.Breaker
}

// Load implements Source.
func (g GuardedSource) Load(ctx context.Context, base ticket.FeeSchedule) (ticket.FeeSchedule, bool, error) {
	var (
		schedule ticket.FeeSchedule
		found    bool
	)
	err := g.Breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		schedule, found, err = g.Source.Load(ctx, base)
		return err
	})
	if err != nil {
		return base, false, err
	}
	return schedule, found, nil
}
