package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes stack events to an slog.Logger.
// Useful for development when you want to see serial traffic in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a SlogAdapter that writes to the given
// slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.Port != "" {
		attrs = append(attrs, slog.String("port", event.Port))
	}

	switch {
	case event.Line != nil:
		attrs = append(attrs,
			slog.String("line", event.Line.Text),
			slog.Bool("truncated", event.Line.Truncated),
		)
	case event.Exchange != nil:
		attrs = append(attrs,
			slog.String("command", event.Exchange.Command),
			slog.String("outcome", event.Exchange.Outcome),
		)
		if event.Exchange.ErrorCode != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Exchange.ErrorCode))
		}
		if event.Exchange.Attempt > 0 {
			attrs = append(attrs, slog.Int("attempt", event.Exchange.Attempt))
		}
	case event.Operation != nil:
		attrs = append(attrs,
			slog.String("op", event.Operation.Op),
			slog.String("register", event.Operation.Register),
			slog.Int("offset", event.Operation.Offset),
			slog.Int("size", event.Operation.Size),
		)
		if event.Operation.Retries > 0 {
			attrs = append(attrs, slog.Int("retries", event.Operation.Retries))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
		)
		if event.Error.Context != "" {
			attrs = append(attrs, slog.String("error_context", event.Error.Context))
		}
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "regline", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
