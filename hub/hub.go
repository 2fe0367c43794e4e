// Package hub fans newly committed events out to live streaming
// subscribers. Delivery is best effort and per-subscriber isolated: a
// subscriber that cannot keep up is pruned instead of stalling the rest.
package hub

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/technicalkuldeep/blood-dapp/domain"
)

// DefaultBuffer is the per-subscriber event buffer. Sized so a browser
// client briefly blocked on flushing does not get evicted immediately.
const DefaultBuffer = 16

// Subscriber is one live streaming connection. Events are delivered on
// Events until the subscriber is removed, at which point Done is closed.
// The hub is the only writer to the events channel.
type Subscriber struct {
	id     string
	events chan domain.Event
	done   chan struct{}
	once   sync.Once
}

// ID returns the process-unique subscriber token.
func (s *Subscriber) ID() string { return s.id }

// Events is the subscriber's delivery channel.
func (s *Subscriber) Events() <-chan domain.Event { return s.events }

// Done is closed when the subscriber has been removed from the hub,
// either explicitly or because delivery failed.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub is the registry of live subscribers. All methods are safe for
// concurrent use.
type Hub struct {
	logger *log.Logger
	buffer int

	mu   sync.Mutex
	subs map[string]*Subscriber
}

// New returns an empty hub. A non-positive buffer falls back to
// DefaultBuffer.
func New(logger *log.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		logger: logger,
		buffer: buffer,
		subs:   make(map[string]*Subscriber),
	}
}

// Subscribe registers a new subscriber and returns its handle. Callers
// are expected to replay catch-up history themselves right after
// subscribing; an event racing the replay may be delivered twice, which
// display-only receivers tolerate.
func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		id:     uuid.NewString(),
		events: make(chan domain.Event, h.buffer),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[s.id] = s
	h.mu.Unlock()
	h.logger.WithField("subscriber", s.id).Debug("subscriber registered")
	return s
}

// Unsubscribe removes a subscriber. It is idempotent and safe to call
// concurrently with Publish.
func (h *Hub) Unsubscribe(s *Subscriber) {
	if s == nil {
		return
	}
	h.mu.Lock()
	_, present := h.subs[s.id]
	delete(h.subs, s.id)
	h.mu.Unlock()
	s.close()
	if present {
		h.logger.WithField("subscriber", s.id).Debug("subscriber removed")
	}
}

// Publish pushes the event to every current subscriber and returns how
// many were reached. Each push is non-blocking; a subscriber whose buffer
// is full is treated as gone and pruned so one stalled client cannot
// delay the others.
func (h *Hub) Publish(ev domain.Event) int {
	h.mu.Lock()
	targets := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	delivered := 0
	for _, s := range targets {
		select {
		case <-s.done:
			// already closing; registry cleanup happens elsewhere
		case s.events <- ev:
			delivered++
		default:
			h.logger.WithField("subscriber", s.id).Warn("subscriber stalled, pruning")
			h.Unsubscribe(s)
		}
	}
	return delivered
}

// Len reports the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Shutdown removes every subscriber, closing their Done channels. Used on
// graceful server exit so no stream outlives the process.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.subs = make(map[string]*Subscriber)
	h.mu.Unlock()
	for _, s := range subs {
		s.close()
	}
}
