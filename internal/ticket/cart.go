package ticket

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Item describes a sellable catalog entry being placed on the ticket.
type Item struct {
	ID          string
	Description string
	UnitPrice   decimal.Decimal
	// Serialized items carry a serial/IMEI and can only appear once per cart.
	Serialized bool
}

// Line is a single cart entry.
type Line struct {
	ItemID      string          `json:"itemId"`
	Description string          `json:"description"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
	Serialized  bool            `json:"serialized"`
}

// Total returns unit price times quantity.
func (l Line) Total() decimal.Decimal {
	return round(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
}

// Cart is the ordered collection of lines of a sale.
type Cart struct {
	Lines []Line `json:"lines"`
}

// AddLine appends the item or, for generic items, increments the matching line.
func (c *Cart) AddLine(item Item, qty int) error {
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return fmt.Errorf("item id required: %w", ErrInvalidInput)
	}
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	if item.UnitPrice.IsNegative() {
		return fmt.Errorf("unit price must not be negative: %w", ErrInvalidInput)
	}
	if item.Serialized && qty != 1 {
		return fmt.Errorf("serialized unit quantity must be 1: %w", ErrInvalidInput)
	}
	if i := c.index(id); i >= 0 {
		if item.Serialized || c.Lines[i].Serialized {
			return &DuplicateUnitError{ItemID: id}
		}
		c.Lines[i].Quantity += qty
		return nil
	}
	c.Lines = append(c.Lines, Line{
		ItemID:      id,
		Description: item.Description,
		UnitPrice:   round(item.UnitPrice),
		Quantity:    qty,
		Serialized:  item.Serialized,
	})
	return nil
}

// RemoveLine drops the line for itemID and reports whether one existed.
func (c *Cart) RemoveLine(itemID string) bool {
	i := c.index(strings.TrimSpace(itemID))
	if i < 0 {
		return false
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return true
}

// Line returns the line for itemID.
func (c Cart) Line(itemID string) (Line, bool) {
	i := c.index(itemID)
	if i < 0 {
		return Line{}, false
	}
	return c.Lines[i], true
}

// Subtotal sums every line total.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// Len returns the number of lines.
func (c Cart) Len() int {
	return len(c.Lines)
}

func (c Cart) index(itemID string) int {
	for i, l := range c.Lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}
