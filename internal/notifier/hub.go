package notifier

import (
	"log/slog"
	"sync"
)

const DefaultSubscriberBuffer = 64

// Hub fans events out to the subscribers of one session. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[*Subscription]struct{}
	capacity int
}

type Subscription struct {
	sessionID string
	events    chan Event
}

func (s *Subscription) SessionID() string {
	return s.sessionID
}

// Events is closed when the subscription is cancelled.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = DefaultSubscriberBuffer
	}
	return &Hub{
		subs:     make(map[string]map[*Subscription]struct{}),
		capacity: capacity,
	}
}

// Subscribe registers a subscriber for sessionID. The returned cancel func is idempotent.
func (h *Hub) Subscribe(sessionID string) (*Subscription, func()) {
	sub := &Subscription{sessionID: sessionID, events: make(chan Event, h.capacity)}

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sessionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if set, ok := h.subs[sessionID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.subs, sessionID)
				}
			}
			close(sub.events)
		})
	}
	return sub, cancel
}

func (h *Hub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

func (h *Hub) Publish(sessionID string, result TranscriptResult) {
	result.SessionID = sessionID
	h.deliver(Event{SessionID: sessionID, Result: &result})
}

func (h *Hub) PublishError(sessionID string, failure Failure) {
	failure.SessionID = sessionID
	h.deliver(Event{SessionID: sessionID, Failure: &failure})
}

func (h *Hub) deliver(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.subs[ev.SessionID]
	if len(set) == 0 {
		slog.Debug("no subscribers for session; event dropped", "session_id", ev.SessionID)
		return
	}
	for sub := range set {
		select {
		case sub.events <- ev:
		default:
			slog.Warn("subscriber buffer full; event dropped", "session_id", ev.SessionID)
		}
	}
}
