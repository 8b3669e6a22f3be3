package main

import (
	"context"
	"log/slog"

	"github.com/elC0mpa/ec2-concierge/model"
)

// logNotifier emits notification intents as structured log records. The chat
// delivery transport consumes these from the log pipeline; the engine itself
// never talks to the chat workspace.
type logNotifier struct {
	logger *slog.Logger
}

func (n *logNotifier) Notify(ctx context.Context, notes []model.Notification) error {
	for _, note := range notes {
		n.logger.LogAttrs(ctx, slog.LevelInfo, "notification",
			slog.String("recipient", string(note.Recipient)),
			slog.Bool("to_admin", note.ToAdmin),
			slog.String("resource_id", note.ResourceID),
			slog.String("message", note.Message),
		)
	}
	return nil
}
