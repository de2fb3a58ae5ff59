package feeschedule

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pos/internal/cache"
	"github.com/noah-isme/backend-pos/internal/ticket"
)

var cacheKey = cache.Key("fees", "schedule")

// Provider serves the effective schedule. It never fails: when the source is
// empty, unreachable or invalid the configured fallback is returned.
type Provider struct {
	source   Source
	cache    *cache.JSON
	fallback ticket.FeeSchedule
	logger   zerolog.Logger
}

// NewProvider constructs a Provider. source and c may be nil.
func NewProvider(source Source, c *cache.JSON, fallback ticket.FeeSchedule, logger zerolog.Logger) *Provider {
	return &Provider{source: source, cache: c, fallback: fallback, logger: logger}
}

// Schedule returns the schedule currently in force.
func (p *Provider) Schedule(ctx context.Context) ticket.FeeSchedule {
	var cached ticket.FeeSchedule
	if found, err := p.cache.Get(ctx, cacheKey, &cached); err != nil {
		p.logger.Warn().Err(err).Msg("fee schedule cache read failed")
	} else if found && cached.Validate() == nil {
		return cached
	}

	schedule, err := p.load(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("using fallback fee schedule")
		return p.fallback
	}
	if err := p.cache.Set(ctx, cacheKey, schedule); err != nil {
		p.logger.Warn().Err(err).Msg("fee schedule cache write failed")
	}
	return schedule
}

func (p *Provider) load(ctx context.Context) (ticket.FeeSchedule, error) {
	if p.source == nil {
		return p.fallback, nil
	}
	schedule, found, err := p.source.Load(ctx, p.fallback)
	if err != nil {
		return ticket.FeeSchedule{}, err
	}
	if !found {
		return p.fallback, nil
	}
	if err := schedule.Validate(); err != nil {
		return ticket.FeeSchedule{}, fmt.Errorf("configured schedule: %w", err)
	}
	return schedule, nil
}

// Invalidate drops the cached schedule so the next read hits the source.
func (p *Provider) Invalidate(ctx context.Context) error {
	return p.cache.Delete(ctx, cacheKey)
}
