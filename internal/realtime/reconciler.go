package realtime

import (
	"context"
	"fmt"
	"sync"

	"claridoc/internal/logging"
)

// Target is the local buffer a Reconciler keeps in sync.
type Target interface {
	// ReplaceRemote swaps in content if docID is still open and content differs
	// from the current buffer. It reports whether the buffer changed.
	ReplaceRemote(docID, content string) bool
}

// TargetFunc adapts a function to Target.
type TargetFunc func(docID, content string) bool

// ReplaceRemote implements Target.
func (f TargetFunc) ReplaceRemote(docID, content string) bool { return f(docID, content) }

// Reconciler owns the single live subscription and its consumer goroutine.
type Reconciler struct {
	sub    Subscriber
	target Target

	opMu sync.Mutex // serializes Follow and Stop

	mu     sync.Mutex
	docID  string
	cancel context.CancelFunc
	stream Subscription
	done   chan struct{}
}

// NewReconciler returns an idle reconciler.
func NewReconciler(sub Subscriber, target Target) *Reconciler {
	return &Reconciler{sub: sub, target: target}
}

// Follow releases any prior subscription and subscribes to docID.
func (r *Reconciler) Follow(ctx context.Context, docID string) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.stop()

	ctx, cancel := context.WithCancel(ctx)
	stream, err := r.sub.Subscribe(ctx, docID)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe %s: %w", docID, err)
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.docID = docID
	r.cancel = cancel
	r.stream = stream
	r.done = done
	r.mu.Unlock()

	go r.consume(ctx, docID, stream, done)
	logging.Realtime("following %s", docID)
	return nil
}

// Stop cancels the subscription and waits for the consumer to exit.
func (r *Reconciler) Stop() {
	r.opMu.Lock()
	defer r.opMu.Unlock()
	r.stop()
}

func (r *Reconciler) stop() {
	r.mu.Lock()
	cancel, stream, done, docID := r.cancel, r.stream, r.done, r.docID
	r.cancel, r.stream, r.done, r.docID = nil, nil, nil, ""
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if err := stream.Close(); err != nil {
		logging.RealtimeWarn("closing subscription for %s: %v", docID, err)
	}
	<-done
	logging.RealtimeDebug("stopped following %s", docID)
}

// Following returns the document currently subscribed to, or "".
func (r *Reconciler) Following() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docID
}

func (r *Reconciler) consume(ctx context.Context, docID string, stream Subscription, done chan struct{}) {
	defer close(done)

	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() == nil {
					logging.RealtimeWarn("subscription for %s dropped; not retrying", docID)
				}
				return
			}
			if ev.DocumentID != docID {
				continue
			}
			if r.target.ReplaceRemote(docID, ev.Content) {
				logging.Realtime("applied remote update %d to %s (%d bytes)", ev.Seq, docID, len(ev.Content))
			}
		}
	}
}
