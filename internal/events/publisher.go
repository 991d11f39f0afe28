// Package events publishes session lifecycle events to RabbitMQ so other
// services (sheet exports, notifications) can follow saves and deletes.
package events

import (
	"context"
	"log/slog"
	"sync"
)

// Publisher sends session events.
type Publisher interface {
	Publish(ctx context.Context, ev *SessionEvent) error
}

// PublishBestEffort publishes ev and only logs failures; the store write the
// event describes has already happened. A nil publisher is a no-op.
func PublishBestEffort(ctx context.Context, p Publisher, ev *SessionEvent) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		slog.WarnContext(ctx, "Failed to publish session event",
			"type", ev.Type,
			"session_id", ev.SessionID,
			"error", err,
		)
	}
}

// Recorder is an in-memory Publisher.
type Recorder struct {
	mu     sync.Mutex
	events []*SessionEvent
}

func (r *Recorder) Publish(_ context.Context, ev *SessionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns the events published so far.
func (r *Recorder) Events() []*SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*SessionEvent(nil), r.events...)
}
