// Package realtime delivers pushed document updates to the open editor session.
//
// A Subscriber hands out one Subscription per document. The Reconciler keeps at
// most one subscription alive and overwrites the local buffer with every pushed
// value that differs from it (last writer wins, no merge).
package realtime

import (
	"context"
	"time"
)

// Event is a pushed document value.
type Event struct {
	DocumentID string
	Content    string
	At         time.Time
	Seq        uint64
}

// Subscription is a cancellable stream of events for one document.
// Events is closed when the subscription ends for any reason.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Subscriber opens subscriptions. Cancelling ctx ends the subscription.
type Subscriber interface {
	Subscribe(ctx context.Context, docID string) (Subscription, error)
}

// Publisher accepts document updates for fan-out.
type Publisher interface {
	Publish(Event)
}
