package events

import (
	"context"
	"log/slog"
)

// Worker drains the publisher inbox into a sink. Sink failures are logged and
// the event is dropped; lifecycle events are informational.
type Worker struct {
	sink   Sink
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(sink Sink, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{sink: sink, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

// drain flushes whatever is buffered at shutdown without blocking on new events.
func (w *Worker) drain() {
	ctx := context.Background()
	for {
		select {
		case event := <-w.inbox:
			w.append(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event Event) {
	if err := w.sink.Append(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "failed to publish lifecycle event",
			"type", string(event.Type),
			"registration_id", event.RegistrationID,
			"error", err,
		)
	}
}
