// Package reservation holds serialized inventory units for an open sale so
// that two concurrent sale sessions cannot both sell the same unit.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/backend-pos/internal/lock"
)

// ErrUnitReserved is returned when another sale holds the unit.
var ErrUnitReserved = errors.New("unit reserved by another sale")

const keyPrefix = "reservation:unit:"

// Key returns the Redis key of a unit lease.
func Key(unitID string) string {
	return keyPrefix + unitID
}

// Reserver leases units to sale sessions.
type Reserver struct {
	Leases lock.Leases
	TTL    time.Duration

	outcomes metric.Int64Counter
}

// New constructs a Reserver recording outcomes on the global meter provider.
func New(leases lock.Leases, ttl time.Duration) *Reserver {
	counter, err := otel.Meter("pos/reservation").Int64Counter(
		"unit_reservations",
		metric.WithDescription("Unit reservation attempts by outcome."),
	)
	if err != nil {
		counter = nil
	}
	return &Reserver{Leases: leases, TTL: ttl, outcomes: counter}
}

func (r *Reserver) ttl() time.Duration {
	if r == nil || r.TTL <= 0 {
		return 15 * time.Minute
	}
	return r.TTL
}

// Reserve holds unitID for saleID. Reserving a unit the sale already holds refreshes the lease.
func (r *Reserver) Reserve(ctx context.Context, saleID, unitID string) error {
	err := r.Leases.Acquire(ctx, Key(unitID), saleID, r.ttl())
	switch {
	case err == nil:
		r.record(ctx, "reserved")
		return nil
	case errors.Is(err, lock.ErrHeld):
		r.record(ctx, "conflict")
		return fmt.Errorf("unit %s: %w", unitID, ErrUnitReserved)
	default:
		r.record(ctx, "error")
		return fmt.Errorf("reserve unit %s: %w", unitID, err)
	}
}

// Release frees unitID if saleID still holds it.
func (r *Reserver) Release(ctx context.Context, saleID, unitID string) error {
	if err := r.Leases.Release(ctx, Key(unitID), saleID); err != nil {
		return fmt.Errorf("release unit %s: %w", unitID, err)
	}
	r.record(ctx, "released")
	return nil
}

// ReleaseAll frees every unit in unitIDs, joining the errors.
func (r *Reserver) ReleaseAll(ctx context.Context, saleID string, unitIDs []string) error {
	var joined error
	for _, id := range unitIDs {
		if err := r.Release(ctx, saleID, id); err != nil {
			joined = errors.Join(joined, err)
		}
	}
	return joined
}

// Extend refreshes every lease held by saleID, returning the units it no longer holds.
func (r *Reserver) Extend(ctx context.Context, saleID string, unitIDs []string) ([]string, error) {
	var lost []string
	for _, id := range unitIDs {
		ok, err := r.Leases.Extend(ctx, Key(id), saleID, r.ttl())
		if err != nil {
			return lost, fmt.Errorf("extend unit %s: %w", id, err)
		}
		if !ok {
			lost = append(lost, id)
		}
	}
	return lost, nil
}

// Holder returns the sale currently holding unitID, or "".
func (r *Reserver) Holder(ctx context.Context, unitID string) (string, error) {
	return r.Leases.Holder(ctx, Key(unitID))
}

func (r *Reserver) record(ctx context.Context, result string) {
	if r == nil || r.outcomes == nil {
		return
	}
	r.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
