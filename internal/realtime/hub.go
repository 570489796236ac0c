package realtime

import (
	"log"
	"sync"
)

// DefaultBufferSize is the per-subscriber queue length
const DefaultBufferSize = 64

// Hub fans family events out to live subscribers. Publishers never block: a
// subscriber whose queue is full is dropped and its channel closed.
type Hub struct {
	// Subscribers keyed by family ID
	subscribers map[string]map[*Subscription]struct{}

	bufferSize int

	// Sends happen under the read lock and channel closes under the write lock,
	// so a channel is never closed mid-send.
	mu sync.RWMutex
}

// Subscription receives the events of one family until closed
type Subscription struct {
	// C is closed when the subscription ends, either by Close or by falling behind
	C <-chan Event

	ch       chan Event
	familyID string
	hub      *Hub
}

// NewHub creates a hub. A bufferSize of 0 or less uses DefaultBufferSize.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a subscriber for familyID
func (h *Hub) Subscribe(familyID string) *Subscription {
	ch := make(chan Event, h.bufferSize)
	sub := &Subscription{C: ch, ch: ch, familyID: familyID, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[familyID] == nil {
		h.subscribers[familyID] = make(map[*Subscription]struct{})
	}
	h.subscribers[familyID][sub] = struct{}{}

	return sub
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// FamilyID returns the family the subscription listens to
func (s *Subscription) FamilyID() string {
	return s.familyID
}

// Publish delivers event to every subscriber of familyID, in call order per subscriber
func (h *Hub) Publish(familyID string, event Event) {
	var slow []*Subscription

	h.mu.RLock()
	for sub := range h.subscribers[familyID] {
		select {
		case sub.ch <- event:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		log.Printf("Dropping slow subscriber for family %s", familyID)
		h.remove(sub)
	}
}

// SubscriberCount returns the number of live subscribers for familyID
func (h *Hub) SubscriberCount(familyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[familyID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sub.familyID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}

	delete(subs, sub)
	close(sub.ch)
	if len(subs) == 0 {
		delete(h.subscribers, sub.familyID)
	}
}
