// Package events fans controller events out to observers.
//
// Publish never blocks for ordinary subscribers. A subscriber whose channel
// is full misses the event and the drop is counted; observers that need the
// current truth re-read the snapshot instead of replaying history. Durable
// subscribers (the operation journal) are never skipped: Publish waits for
// room in their channel until the subscription's context ends.
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrSubscriberExists   = errors.New("subscriber id already exists")
	ErrSubscriberNotFound = errors.New("subscriber id not found")
	ErrHubClosed          = errors.New("hub is closed")
)

// Stats is a point-in-time view of hub counters.
type Stats struct {
	Published uint64
	Sent      uint64
	Dropped   uint64
}

type subscriber struct {
	ch      chan<- Event
	durable bool
	done    <-chan struct{}
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Hub distributes events to registered channels.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool

	published atomic.Uint64
	// removed subscribers keep contributing to the totals
	sentGone    atomic.Uint64
	droppedGone atomic.Uint64

	now func() time.Time
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]*subscriber), now: time.Now}
}

// Subscribe registers ch under id.
func (h *Hub) Subscribe(id string, ch chan<- Event) error {
	return h.add(id, &subscriber{ch: ch})
}

// SubscribeDurable registers ch under id so that no event is skipped while
// ctx is live. A full channel applies backpressure to publishers; once ctx
// is done, undeliverable events are counted as dropped.
func (h *Hub) SubscribeDurable(ctx context.Context, id string, ch chan<- Event) error {
	return h.add(id, &subscriber{ch: ch, durable: true, done: ctx.Done()})
}

func (h *Hub) add(id string, s *subscriber) error {
	if s.ch == nil {
		return errors.New("subscriber channel cannot be nil")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}
	if _, ok := h.subs[id]; ok {
		return ErrSubscriberExists
	}
	h.subs[id] = s
	return nil
}

// Unsubscribe removes id. The channel is not closed; it belongs to the caller.
func (h *Hub) Unsubscribe(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.subs[id]
	if !ok {
		return ErrSubscriberNotFound
	}
	h.sentGone.Add(s.sent.Load())
	h.droppedGone.Add(s.dropped.Load())
	delete(h.subs, id)
	return nil
}

// Publish stamps and delivers an event to every subscriber with room for it
// and then waits on durable subscribers. Publishing on a closed hub is a
// no-op.
func (h *Hub) Publish(t Type, data any) {
	ev := Event{Type: t, At: h.now().UTC(), Data: data}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.published.Add(1)

	var durable []*subscriber
	for _, s := range h.subs {
		if s.durable {
			durable = append(durable, s)
			continue
		}
		select {
		case s.ch <- ev:
			s.sent.Add(1)
		default:
			s.dropped.Add(1)
		}
	}
	h.mu.RUnlock()

	// outside the lock so a blocked send cannot stall Unsubscribe or Close
	for _, s := range durable {
		select {
		case s.ch <- ev:
			s.sent.Add(1)
		case <-s.done:
			s.dropped.Add(1)
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := Stats{
		Published: h.published.Load(),
		Sent:      h.sentGone.Load(),
		Dropped:   h.droppedGone.Load(),
	}
	for _, s := range h.subs {
		st.Sent += s.sent.Load()
		st.Dropped += s.dropped.Load()
	}
	return st
}

// Close stops delivery. It is idempotent and does not close subscriber
// channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}
