// Package events publishes registration lifecycle events.
//
// Emit never blocks the caller: events go onto a bounded inbox that a Worker
// drains into a Sink (Kafka when brokers are configured, the log otherwise).
package events

import (
	"context"
	"errors"
	"log/slog"

	"onboarding/pkg/requestcontext"
)

// ErrInboxFull is returned by Emit when the worker has fallen behind.
var ErrInboxFull = errors.New("event inbox full")

// Sink is the durable destination of events.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Emitter is what services depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

type Publisher struct {
	inbox chan Event
}

func NewPublisher(buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Publisher{inbox: make(chan Event, buffer)}
}

// Emit stamps the event with the request-scoped time and id and enqueues it.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		return ErrInboxFull
	}
}

// Inbox exposes the queue for the Worker.
func (p *Publisher) Inbox() <-chan Event {
	return p.inbox
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, event Event) error {
	attrs := []any{
		"type", string(event.Type),
		"registration_id", event.RegistrationID,
		"timestamp", event.Timestamp,
	}
	if event.RequestID != "" {
		attrs = append(attrs, "request_id", event.RequestID)
	}
	for k, v := range event.Attributes {
		attrs = append(attrs, k, v)
	}
	s.logger.InfoContext(ctx, "lifecycle event", attrs...)
	return nil
}
