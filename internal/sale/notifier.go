package sale

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier surfaces operation outcomes to the operator.
type Notifier interface {
	ShowSuccess(ctx context.Context, title, message string)
	ShowError(ctx context.Context, title, message string)
	ShowWarning(ctx context.Context, title, message string)
}

// LogNotifier writes notices to the structured log. The front-end renders
// them from the HTTP response, so the log is the only other sink.
type LogNotifier struct {
	Logger zerolog.Logger
}

// ShowSuccess implements Notifier.
func (n LogNotifier) ShowSuccess(ctx context.Context, title, message string) {
	n.emit(ctx, n.Logger.Info(), "success", title, message)
}

// ShowError implements Notifier.
func (n LogNotifier) ShowError(ctx context.Context, title, message string) {
	n.emit(ctx, n.Logger.Error(), "error", title, message)
}

// ShowWarning implements Notifier.
func (n LogNotifier) ShowWarning(ctx context.Context, title, message string) {
	n.emit(ctx, n.Logger.Warn(), "warning", title, message)
}

func (n LogNotifier) emit(ctx context.Context, evt *zerolog.Event, kind, title, message string) {
	evt = evt.Str("notice", kind).Str("title", title)
	if sid, ok := ctx.Value(saleIDKey{}).(string); ok {
		evt = evt.Str("sale_id", sid)
	}
	evt.Msg(message)
}

type saleIDKey struct{}

func withSaleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, saleIDKey{}, id)
}
