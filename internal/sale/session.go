package sale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-pos/internal/ticket"
)

// ErrSessionNotFound is returned when the sale session expired or never existed.
var ErrSessionNotFound = errors.New("sale session not found")

// Session is an open sale plus the bookkeeping around it.
type Session struct {
	Sale       *ticket.Sale `json:"sale"`
	OperatorID string       `json:"operatorId"`
	Reserved   []string     `json:"reserved"`
	OpenedAt   time.Time    `json:"openedAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// ID returns the sale identifier.
func (s *Session) ID() string {
	return s.Sale.ID
}

func (s *Session) holds(unitID string) bool {
	return slices.Contains(s.Reserved, unitID)
}

func (s *Session) drop(unitID string) {
	s.Reserved = slices.DeleteFunc(s.Reserved, func(id string) bool { return id == unitID })
}

// Store keeps sessions between requests.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps sessions as JSON documents with a sliding TTL.
type RedisStore struct {
	R   *redis.Client
	TTL time.Duration
}

func sessionKey(id string) string {
	return "sale:session:" + id
}

// Load fetches a session.
func (s RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := s.R.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.Sale == nil {
		return nil, fmt.Errorf("decode session %s: missing sale", id)
	}
	return &sess, nil
}

// Save writes the session and restarts its TTL.
func (s RedisStore) Save(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return s.R.Set(ctx, sessionKey(sess.ID()), data, ttl).Err()
}

// Delete removes the session.
func (s RedisStore) Delete(ctx context.Context, id string) error {
	return s.R.Del(ctx, sessionKey(id)).Err()
}
