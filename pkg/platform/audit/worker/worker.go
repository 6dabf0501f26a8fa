package worker

import (
	"context"
	"log/slog"

	audit "antns/pkg/platform/audit"
)

// Worker drains audit events from a channel into a store until the channel
// is closed.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run persists events in arrival order. A failed append is logged and the
// event dropped; auditing never blocks the writes it describes.
func (w *Worker) Run(ctx context.Context) {
	for event := range w.inbox {
		if err := w.store.Append(ctx, event); err != nil {
			w.logger.WarnContext(ctx, "audit append failed",
				"action", event.Action,
				"domain", event.Domain,
				"error", err,
			)
		}
	}
}
