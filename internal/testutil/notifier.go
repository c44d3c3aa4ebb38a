package testutil

import (
	"context"
	"sync"

	"cashdesk/internal/events"
)

// RecordingNotifier keeps every notified event in memory.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []events.Event
}

func (n *RecordingNotifier) Notify(ctx context.Context, t events.Type, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, events.New(t, payload))
}

func (n *RecordingNotifier) Events() []events.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]events.Event(nil), n.events...)
}

// Types returns the event types in the order they were notified.
func (n *RecordingNotifier) Types() []events.Type {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]events.Type, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}
