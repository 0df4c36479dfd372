package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"claridoc/internal/logging"
)

const defaultHubBuffer = 16

// Hub is an in-process broker. Every subscriber gets a buffered channel; when it
// is full the oldest queued event is dropped so the newest value always lands.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*hubSubscription]struct{}
	buffer int
	seq    atomic.Uint64
}

// NewHub returns a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultHubBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*hubSubscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe implements Subscriber.
func (h *Hub) Subscribe(ctx context.Context, docID string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &hubSubscription{hub: h, docID: docID, ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	if h.subs[docID] == nil {
		h.subs[docID] = make(map[*hubSubscription]struct{})
	}
	h.subs[docID][s] = struct{}{}
	h.mu.Unlock()

	s.stop = context.AfterFunc(ctx, s.release)
	logging.RealtimeDebug("hub: subscribed to %s", docID)
	return s, nil
}

// Publish fans ev out to every subscriber of ev.DocumentID. It never blocks.
func (h *Hub) Publish(ev Event) {
	ev.Seq = h.seq.Add(1)
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs[ev.DocumentID] {
		select {
		case s.ch <- ev:
			continue
		default:
		}
		// full: drop the oldest queued event, then retry once
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- ev:
		default:
			logging.RealtimeWarn("hub: dropped event %d for %s", ev.Seq, ev.DocumentID)
		}
	}
}

// Subscribers returns the number of live subscriptions for docID.
func (h *Hub) Subscribers(docID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[docID])
}

func (h *Hub) remove(s *hubSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[s.docID]
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.docID)
	}
	close(s.ch)
}

type hubSubscription struct {
	hub   *Hub
	docID string
	ch    chan Event
	stop  func() bool
	once  sync.Once
}

func (s *hubSubscription) Events() <-chan Event { return s.ch }

func (s *hubSubscription) Close() error {
	s.stop()
	s.release()
	return nil
}

func (s *hubSubscription) release() {
	s.once.Do(func() {
		s.hub.remove(s)
		logging.RealtimeDebug("hub: unsubscribed from %s", s.docID)
	})
}
