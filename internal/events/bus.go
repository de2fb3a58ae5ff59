// Package events persists domain events and hands them to the worker queue.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-pos/internal/db"
)

// Event is a persisted domain event.
type Event struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// EventStore persists events.
type EventStore interface {
	InsertEvent(ctx context.Context, ev Event) error
}

// Enqueuer is the subset of *asynq.Client used by the bus.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PGStore writes to domain_events.
type PGStore struct {
	q db.Querier
}

// NewPGStore constructs a PGStore over q.
func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{q: q}
}

// InsertEvent stores ev.
func (s *PGStore) InsertEvent(ctx context.Context, ev Event) error {
	_, err := s.q.Exec(ctx,
		`INSERT INTO domain_events (id, topic, aggregate_id, payload, created_at) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt)
	return err
}

// Bus persists domain events and enqueues one task per event.
type Bus struct {
	Store    EventStore
	Tasks    Enqueuer
	Queue    string
	MaxRetry int
	Now      func() time.Time
}

// Emit records the event, then enqueues it. The returned event is valid even
// when enqueueing fails; the error then reports the failed hand-off.
func (b *Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) (Event, error) {
	if b == nil || b.Store == nil {
		return Event{}, errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	if strings.TrimSpace(aggregateID) == "" {
		return Event{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	ev := Event{
		ID:          uuid.NewString(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     encoded,
		OccurredAt:  now().UTC(),
	}
	if err := b.Store.InsertEvent(ctx, ev); err != nil {
		return Event{}, fmt.Errorf("events: persist event: %w", err)
	}
	if b.Tasks == nil {
		return ev, nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return ev, fmt.Errorf("events: encode task: %w", err)
	}
	queue := b.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	retry := b.MaxRetry
	if retry <= 0 {
		retry = defaultMaxRetry
	}
	task := asynq.NewTask(TaskType(topic), body)
	if _, err := b.Tasks.EnqueueContext(ctx, task, asynq.Queue(queue), asynq.MaxRetry(retry), asynq.TaskID(ev.ID)); err != nil {
		return ev, fmt.Errorf("events: enqueue %s: %w", topic, err)
	}
	return ev, nil
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		return validJSON(v)
	case []byte:
		return validJSON(v)
	default:
		return json.Marshal(v)
	}
}

func validJSON(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), data...), nil
}

// Decode extracts the event carried by an asynq task.
func Decode(task *asynq.Task) (Event, error) {
	var ev Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return Event{}, fmt.Errorf("decode %s: %w", task.Type(), err)
	}
	return ev, nil
}
