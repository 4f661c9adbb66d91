package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes lifecycle events to an slog.Logger.
// Useful for development when you want to see registry events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("kind", event.Kind.String()),
		slog.String("key", event.Key),
		slog.String("name", event.Name),
	}

	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", event.ClientID))
	}

	// Add type-specific attributes
	switch {
	case event.Register != nil:
		attrs = append(attrs,
			slog.Bool("new_entry", event.Register.NewEntry),
			slog.Bool("new_client", event.Register.NewClient),
		)
		if event.Register.Permanent {
			attrs = append(attrs, slog.Bool("permanent", true))
		}
		if event.Register.UnsubDelay > 0 {
			attrs = append(attrs, slog.Duration("unsub_delay", event.Register.UnsubDelay))
		}
	case event.Release != nil:
		attrs = append(attrs, slog.Duration("delay", event.Release.Delay))
	case event.Teardown != nil:
		attrs = append(attrs, slog.Bool("stopped", event.Teardown.Stopped))
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "subs", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
