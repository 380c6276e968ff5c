package notify

import (
	"context"
	"log/slog"
)

// Writes every event to a structured logger. Useful as a default and in development.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, evt Event) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "kind", evt.Kind, "user", evt.UserID, "content", evt.ContentID, "status", evt.Status, "reason", evt.Reason, "badge", evt.Badge, "points", evt.Points)
	return nil
}
