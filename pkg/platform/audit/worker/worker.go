package worker

import (
	"context"
	"log/slog"

	audit "sanctuary/pkg/platform/audit"
)

// HandlerFunc processes one event taken off the inbox.
type HandlerFunc func(ctx context.Context, event audit.Event) error

// Worker consumes audit events from a channel and hands them to a handler.
// Handler failures are logged and do not stop the loop.
type Worker struct {
	handle HandlerFunc
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func NewWorker(handle HandlerFunc, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{handle: handle, inbox: inbox, logger: logger}
}

// Run processes events until the inbox is closed (returning nil after draining)
// or ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.handle(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit worker failed to process event",
					"kind", event.Kind,
					"vault", event.Vault.Hex(),
					"error", err,
				)
			}
		}
	}
}
