package notify

import (
	"context"
	"log/slog"

	"github.com/civicpulse/authcore"
)

// Log writes notifications to a logger instead of sending them. With
// IncludeCode unset the code itself is withheld from the log.
type Log struct {
	Logger      *slog.Logger
	IncludeCode bool
}

var _ authcore.Notifier = Log{}

// Send logs the notification instead of delivering it.
func (l Log) Send(ctx context.Context, n authcore.Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []slog.Attr{
		slog.String("kind", string(n.Kind)),
		slog.String("to", n.Identity),
	}
	if n.Kind == authcore.NotificationCode {
		attrs = append(attrs,
			slog.String("purpose", string(n.Purpose)),
			slog.Time("expires_at", n.ExpiresAt),
		)
		if l.IncludeCode {
			attrs = append(attrs, slog.String("code", n.Code))
		}
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "notification", attrs...)
	return nil
}
