// Package directory stores customers and sellers.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-pos/internal/db"
)

// ErrNotFound is returned when no party matches.
var ErrNotFound = errors.New("directory: party not found")

// Kind distinguishes customers from sellers.
type Kind string

// Party kinds.
const (
	Customer Kind = "customer"
	Seller   Kind = "seller"
)

// ParseKind validates a kind from a URL segment.
func ParseKind(raw string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case Customer, Seller:
		return k, true
	default:
		return "", false
	}
}

// Party is a customer or seller record.
type Party struct {
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Name     string `json:"name" validate:"required,max=120"`
	Document string `json:"document,omitempty" validate:"omitempty,max=32"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,max=32"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// Directory is the API consumed by the sale service and handlers.
type Directory interface {
	Search(ctx context.Context, kind Kind, text string, limit int) ([]Party, error)
	Get(ctx context.Context, kind Kind, id string) (Party, error)
	Create(ctx context.Context, p Party) (Party, error)
}

// Store reads and writes the parties table.
type Store struct {
	q db.Querier
}

// NewStore constructs a Store over q.
func NewStore(q db.Querier) *Store {
	return &Store{q: q}
}

const partyColumns = `id, kind, name, COALESCE(document, ''), COALESCE(phone, ''), COALESCE(email, '')`

// Search returns active parties of kind whose name or document matches text.
func (s *Store) Search(ctx context.Context, kind Kind, text string, limit int) ([]Party, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	rows, err := s.q.Query(ctx, `SELECT `+partyColumns+` FROM parties
WHERE kind = $1 AND active
  AND ($2 = '' OR name ILIKE '%' || $2 || '%' OR document = $2)
ORDER BY name, id
LIMIT $3`, string(kind), strings.TrimSpace(text), limit)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kind, err)
	}
	defer rows.Close()

	out := make([]Party, 0)
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get loads an active party.
func (s *Store) Get(ctx context.Context, kind Kind, id string) (Party, error) {
	row := s.q.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE kind = $1 AND id = $2 AND active`, string(kind), id)
	p, err := scanParty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Party{}, ErrNotFound
	}
	return p, err
}

// Create inserts p and returns it with a generated ID.
func (s *Store) Create(ctx context.Context, p Party) (Party, error) {
	p.ID = uuid.NewString()
	p.Name = strings.TrimSpace(p.Name)
	_, err := s.q.Exec(ctx, `INSERT INTO parties (id, kind, name, document, phone, email)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))`,
		p.ID, string(p.Kind), p.Name, p.Document, p.Phone, p.Email)
	if err != nil {
		return Party{}, fmt.Errorf("create %s: %w", p.Kind, err)
	}
	return p, nil
}

func scanParty(row pgx.Row) (Party, error) {
	var (
		p    Party
		kind string
	)
	if err := row.Scan(&p.ID, &kind, &p.Name, &p.Document, &p.Phone, &p.Email); err != nil {
		return Party{}, err
	}
	p.Kind = Kind(kind)
	return p, nil
}
