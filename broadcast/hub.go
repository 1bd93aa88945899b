// Package broadcast delivers relay output to browsers holding an open
// event-stream subscription, decoupled from the request that started the turn.
//
// A Hub keeps at most one subscription per session ID. Publishers push events
// by session; each subscription queues them until its writer drains them into
// the subscriber's connection.
package broadcast

import (
	"log/slog"
	"sync"
)

// backlogWarnEvery is how many undrained events trigger each backlog warning.
const backlogWarnEvery = 1024

// DefaultSession is the session used when a client does not name one. It
// gives every such client a single shared slot.
const DefaultSession = "default"

// Subscription is one subscriber's slot in a Hub. Pushed events queue up
// without bound until the subscriber drains them, so a slow reader delays
// its answer but never loses part of it.
type Subscription struct {
	SessionID string

	mu    sync.Mutex
	queue []Event
	ended bool
	ready chan struct{}
	done  chan struct{}
}

func newSubscription(sessionID string) *Subscription {
	return &Subscription{
		SessionID: sessionID,
		ready:     make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Ready receives a value whenever events have been queued since the last
// Drain.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed when the subscription ends, whether by Close, Unsubscribe or
// displacement. Events queued before that can still be drained.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Drain removes and returns the queued events, oldest first.
func (s *Subscription) Drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.queue
	s.queue = nil
	return events
}

// Pending returns the number of queued events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

// enqueue appends ev unless the subscription has ended.
func (s *Subscription) enqueue(ev Event) bool {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return true
}

func (s *Subscription) end() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ended {
		s.ended = true
		close(s.done)
	}
}

// Hub is a registry of subscriptions keyed by session ID. It is safe for
// concurrent use.
type Hub struct {
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewHub creates an empty Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe registers a new subscription for sessionID. An existing
// subscription for the same session is displaced: it ends and receives
// nothing further.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	sub := newSubscription(sessionID)

	h.mu.Lock()
	prev := h.subs[sessionID]
	h.subs[sessionID] = sub
	if prev != nil {
		prev.end()
	}
	h.mu.Unlock()

	if prev != nil {
		h.logger.Warn("subscriber displaced", "session", sessionID)
	}
	h.logger.Debug("subscriber registered", "session", sessionID)

	return sub
}

// Unsubscribe removes sub if it still owns its session's slot. A displaced
// subscription leaves its successor untouched.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	if h.subs[sub.SessionID] == sub {
		delete(h.subs, sub.SessionID)
	}
	sub.end()
	h.mu.Unlock()

	h.logger.Debug("subscriber removed", "session", sub.SessionID)
}

// Has reports whether sessionID has an open subscription.
func (h *Hub) Has(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.subs[sessionID]
	return ok
}

// Push queues ev for the subscription of sessionID without blocking. It
// returns ErrNoSubscriber, dropping the event, only when the session has no
// open subscription.
func (h *Hub) Push(sessionID string, ev Event) error {
	// The read lock is held across the enqueue so that a displacing
	// Subscribe cannot end the subscription between lookup and enqueue.
	h.mu.RLock()
	sub, ok := h.subs[sessionID]
	queued := ok && sub.enqueue(ev)
	h.mu.RUnlock()

	if !queued {
		return ErrNoSubscriber
	}

	if n := sub.Pending(); n > 0 && n%backlogWarnEvery == 0 {
		h.logger.Warn("subscriber falling behind", "session", sessionID, "pending", n)
	}
	return nil
}

// Close ends the subscription for sessionID, if any.
func (h *Hub) Close(sessionID string) {
	h.mu.Lock()
	sub, ok := h.subs[sessionID]
	if ok {
		delete(h.subs, sessionID)
		sub.end()
	}
	h.mu.Unlock()

	if ok {
		h.logger.Debug("subscriber closed", "session", sessionID)
	}
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// CloseAll ends every subscription. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		sub.end()
		delete(h.subs, id)
	}
}
