// Package broadcast implements the per-meeting pub-sub hub (§4.10): events
// produced by the turn engine are fanned out to any number of subscribers
// without ever blocking the producer on a slow consumer.
package broadcast

import "sync"

// subscriberBuffer is the bounded number of pending events per subscriber
// per §4.10; overflow drops the subscriber rather than blocking the
// producer. Each channel has one extra slot reserved for the terminal
// EventLagged.
const subscriberBuffer = 256

// EventType tags one kind of event a meeting can emit.
type EventType string

const (
	EventNewMessage       EventType = "new_message"
	EventStatusChange     EventType = "status_change"
	EventStreamingDelta   EventType = "streaming_delta"
	EventMinutesGenerated EventType = "minutes_generated"
	EventMindMapGenerated EventType = "mind_map_generated"
	EventTurnFailed       EventType = "turn_failed"
	// EventLagged is synthesized locally, never produced by a caller, and
	// terminates delivery to a subscriber that fell behind.
	EventLagged EventType = "lagged"
)

// DeltaKind mirrors llms.DeltaKind without importing it, keeping this
// package dependency-free of the model-adapter layer.
type DeltaKind string

const (
	DeltaReasoning DeltaKind = "reasoning"
	DeltaContent   DeltaKind = "content"
	DeltaComplete  DeltaKind = "complete"
	DeltaError     DeltaKind = "error"
)

// Event is one item delivered to a subscriber.
type Event struct {
	Type EventType

	MessageID      string
	Status         string
	SpeakerID      string
	DeltaKind      DeltaKind
	DeltaText      string
	MinutesVersion int
	MindMapVersion int
	ErrorKind      string
	ErrorDetail    string
}

// Subscription is a single subscriber's handle. Events() yields events in
// producer order until Close is called or the subscriber is evicted for
// lagging, at which point the channel is closed (after, if evicted, one
// final EventLagged event).
type Subscription struct {
	events chan Event
	hub    *Hub
	id     uint64
}

// Events returns the channel of events for this subscription.
func (s *Subscription) Events() <-chan Event { return s.events }

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s.id)
}

// Hub is one meeting's pub-sub fan-out point.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan Event
}

// NewHub creates an empty hub for one meeting.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a new subscriber. It receives only events published
// after this call.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, subscriberBuffer+1)
	h.subs[id] = ch

	return &Subscription{events: ch, hub: h, id: id}
}

func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish delivers ev to every current subscriber. A subscriber whose
// buffer is full is evicted with one final EventLagged and its channel
// closed; Publish never blocks.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		if len(ch) >= subscriberBuffer {
			delete(h.subs, id)
			ch <- Event{Type: EventLagged} // uses the reserved slot
			close(ch)
			continue
		}
		ch <- ev
	}
}

// Close unregisters and closes every subscriber, used when a meeting ends
// or is deleted.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
