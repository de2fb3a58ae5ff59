// Package catalog looks up sellable inventory items.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/db"
	"github.com/noah-isme/backend-pos/internal/ticket"
)

// ErrNotFound is returned when no item matches the identifier.
var ErrNotFound = errors.New("catalog: item not found")

// Item statuses.
const (
	StatusAvailable = "available"
	StatusSold      = "sold"
	StatusInactive  = "inactive"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Item is an inventory record as the POS sees it.
type Item struct {
	ID          string          `json:"id"`
	SKU         string          `json:"sku"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Serialized  bool            `json:"serialized"`
	Serial      string          `json:"serial,omitempty"`
	Status      string          `json:"status"`
}

// Available reports whether the item can be added to a sale.
func (i Item) Available() bool {
	return i.Status == StatusAvailable
}

// TicketItem converts the record into the cart input type.
func (i Item) TicketItem() ticket.Item {
	desc := i.Description
	if i.Serialized && i.Serial != "" {
		desc = fmt.Sprintf("%s (%s)", i.Description, i.Serial)
	}
	return ticket.Item{
		ID:          i.ID,
		Description: desc,
		UnitPrice:   i.UnitPrice,
		Serialized:  i.Serialized,
	}
}

// Finder is the read API the sale service and handlers depend on.
type Finder interface {
	Search(ctx context.Context, text string, onlyAvailable bool, limit int) ([]Item, error)
	Get(ctx context.Context, id string) (Item, error)
}

// Store reads inventory_items.
type Store struct {
	q db.Querier
}

// NewStore constructs a Store over q.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

const itemColumns = `id, sku, description, unit_price::text, serialized, COALESCE(serial, ''), status`

// Search matches text against description, SKU and serial number.
func (s *Store) Search(ctx context.Context, text string, onlyAvailable bool, limit int) ([]Item, error) {
	sql := `SELECT ` + itemColumns + ` FROM inventory_items
WHERE ($1 = '' OR description ILIKE '%' || $1 || '%' OR sku ILIKE $1 || '%' OR serial = $1)
  AND ($2 = FALSE OR status = 'available')
  AND status <> 'inactive'
ORDER BY description, id
LIMIT $3`
	rows, err := s.q.Query(ctx, sql, strings.TrimSpace(text), onlyAvailable, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return items, nil
}

// Get loads a single item.
func (s *Store) Get(ctx context.Context, id string) (Item, error) {
	row := s.q.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}

func scanItem(row pgx.Row) (Item, error) {
	var (
		item  Item
		price string
	)
	if err := row.Scan(&item.ID, &item.SKU, &item.Description, &price, &item.Serialized, &item.Serial, &item.Status); err != nil {
		return Item{}, err
	}
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return Item{}, fmt.Errorf("item %s price: %w", item.ID, err)
	}
	item.UnitPrice = amount
	return item, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}
