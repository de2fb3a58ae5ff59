// Package feeschedule supplies the card fee and interest configuration
// maintained by the back-office admin screen.
package feeschedule

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/db"
	"github.com/noah-isme/backend-pos/internal/ticket"
)

// Source loads a schedule. found is false when nothing has been configured.
type Source interface {
	Load(ctx context.Context, base ticket.FeeSchedule) (schedule ticket.FeeSchedule, found bool, err error)
}

// Store reads card_fees, interest_schedule and fee_settings.
type Store struct {
	q db.Querier
}

// NewStore constructs a Store over q.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

// Load overlays the configured rows onto base.
func (s *Store) Load(ctx context.Context, base ticket.FeeSchedule) (ticket.FeeSchedule, bool, error) {
	out := base
	out.InterestTable = maps.Clone(base.InterestTable)
	found := false

	rows, err := s.q.Query(ctx, `SELECT method, fee_percent::text FROM card_fees`)
	if err != nil {
		return base, false, fmt.Errorf("load card fees: %w", err)
	}
	for rows.Next() {
		var method, pct string
		if err := rows.Scan(&method, &pct); err != nil {
			rows.Close()
			return base, false, err
		}
		v, err := decimal.NewFromString(pct)
		if err != nil {
			rows.Close()
			return base, false, fmt.Errorf("card fee %s: %w", method, err)
		}
		switch ticket.Method(method) {
		case ticket.MethodDebit:
			out.DebitFeePercent = v
		case ticket.MethodCredit:
			out.CreditFeePercent = v
		}
		found = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return base, false, fmt.Errorf("load card fees: %w", err)
	}

	rows, err = s.q.Query(ctx, `SELECT installments, rate_percent::text FROM interest_schedule ORDER BY installments`)
	if err != nil {
		return base, false, fmt.Errorf("load interest schedule: %w", err)
	}
	table := map[int]decimal.Decimal{}
	for rows.Next() {
		var (
			n    int32
			rate string
		)
		if err := rows.Scan(&n, &rate); err != nil {
			rows.Close()
			return base, false, err
		}
		v, err := decimal.NewFromString(rate)
		if err != nil {
			rows.Close()
			return base, false, fmt.Errorf("interest rate %d: %w", n, err)
		}
		table[int(n)] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return base, false, fmt.Errorf("load interest schedule: %w", err)
	}
	// The table is replaced as a whole, never merged with base.
	if len(table) > 0 {
		out.InterestTable = table
		found = true
	}

	var free, max int32
	err = s.q.QueryRow(ctx, `SELECT interest_free_installments, max_installments FROM fee_settings WHERE id = 1`).Scan(&free, &max)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return base, false, fmt.Errorf("load fee settings: %w", err)
	default:
		out.InterestFreeInstallments = int(free)
		out.MaxInstallments = int(max)
		found = true
	}
	return out, found, nil
}
