package common

import "context"

type ctxKey string

const (
	operatorIDKey   ctxKey = "auth/operator-id"
	operatorSlotKey ctxKey = "auth/operator-slot"
)

type operatorSlot struct{ id string }

// WithUserID stores the authenticated operator identifier on the provided context.
func WithUserID(ctx context.Context, id string) context.Context {
	if slot, ok := ctx.Value(operatorSlotKey).(*operatorSlot); ok {
		slot.id = id
	}
	return context.WithValue(ctx, operatorIDKey, id)
}

// UserID extracts the authenticated operator identifier from the context if present.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(operatorIDKey).(string)
	return id, ok && id != ""
}

// TrackOperator lets outer middleware observe the operator authenticated further
// down the chain. Calling it again on a tracked context is a no-op.
func TrackOperator(ctx context.Context) context.Context {
	if _, ok := ctx.Value(operatorSlotKey).(*operatorSlot); ok {
		return ctx
	}
	return context.WithValue(ctx, operatorSlotKey, &operatorSlot{})
}

// TrackedOperator returns the operator recorded on a context prepared by TrackOperator.
func TrackedOperator(ctx context.Context) (string, bool) {
	if id, ok := UserID(ctx); ok {
		return id, true
	}
	slot, ok := ctx.Value(operatorSlotKey).(*operatorSlot)
	if !ok || slot.id == "" {
		return "", false
	}
	return slot.id, true
}
