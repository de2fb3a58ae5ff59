// Package repo persists finalized sales.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/backend-pos/internal/ticket"
)

var (
	// ErrUnitUnavailable is returned when a serialized unit was sold or retired after it was added.
	ErrUnitUnavailable = errors.New("repo: unit no longer available")
	// ErrSaleExists is returned when the sale id was already persisted.
	ErrSaleExists = errors.New("repo: sale already recorded")
)

const uniqueViolation = "23505"

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Sales writes sales, their lines and payments in one transaction.
type Sales struct {
	DB TxBeginner
}

// NewSales constructs a Sales repository.
func NewSales(db TxBeginner) *Sales {
	return &Sales{DB: db}
}

// SaveSale records the receipt and marks its serialized units as sold.
func (s *Sales) SaveSale(ctx context.Context, operatorID string, r ticket.Receipt) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var discountKind, discountValue *string
	if r.Discount != nil {
		kind := string(r.Discount.Kind)
		value := r.Discount.Value.StringFixed(2)
		discountKind, discountValue = &kind, &value
	}
	sum := r.Summary
	_, err = tx.Exec(ctx, `INSERT INTO sales (
    id, operator_id, seller_id, customer_id, subtotal, discount_kind, discount_value,
    discount_amount, total_due, total_fees, total_interest, total_paid, finalized_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.SaleID, operatorID, r.SellerID, r.CustomerID,
		sum.Subtotal.StringFixed(2), discountKind, discountValue,
		sum.DiscountAmount.StringFixed(2), sum.TotalDue.StringFixed(2), sum.TotalFees.StringFixed(2),
		sum.TotalInterest.StringFixed(2), sum.TotalPaid.StringFixed(2), r.FinalizedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSaleExists
		}
		return fmt.Errorf("insert sale: %w", err)
	}

	batch := &pgx.Batch{}
	for i, line := range r.Lines {
		batch.Queue(`INSERT INTO sale_lines (sale_id, position, item_id, description, unit_price, quantity, serialized)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			r.SaleID, i, line.ItemID, line.Description, line.UnitPrice.StringFixed(2), line.Quantity, line.Serialized)
	}
	for i, p := range r.Payments {
		batch.Queue(`INSERT INTO sale_payments (sale_id, position, method, amount, installments, interest,
    fee_amount, interest_rate, interest_amount, installment_value)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			r.SaleID, i, string(p.Method), p.Amount.StringFixed(2), p.Installments, p.Interest,
			p.Charges.FeeAmount.StringFixed(2), p.Charges.InterestRate.StringFixed(2),
			p.Charges.InterestAmount.StringFixed(2), p.Charges.InstallmentValue.StringFixed(2))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert sale details: %w", err)
	}

	for _, line := range r.Lines {
		if !line.Serialized {
			continue
		}
		tag, err := tx.Exec(ctx,
			`UPDATE inventory_items SET status = 'sold', updated_at = now() WHERE id = $1 AND status = 'available'`,
			line.ItemID)
		if err != nil {
			return fmt.Errorf("mark unit %s sold: %w", line.ItemID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrUnitUnavailable, line.ItemID)
		}
	}
	return tx.Commit(ctx)
}
