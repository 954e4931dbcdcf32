package bot

import "sync"

// Subscription receives broadcast values until unsubscribed; its channel is
// closed on Unsubscribe.
type Subscription[T any] struct {
	ch chan T
}

// C exposes the receive side of the subscription.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Hub fans broadcast values out to subscribers. Slow subscribers drop values
// rather than block the broadcaster.
type Hub[T any] struct {
	mu   sync.RWMutex
	subs map[*Subscription[T]]struct{}
}

// NewHub creates an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[*Subscription[T]]struct{})}
}

// Subscribe registers a new subscriber with the given channel buffer.
func (h *Hub[T]) Subscribe(buffer int) *Subscription[T] {
	sub := &Subscription[T]{ch: make(chan T, buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes the subscriber and closes its channel.
func (h *Hub[T]) Unsubscribe(sub *Subscription[T]) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// Broadcast delivers value to every subscriber with room in its buffer.
func (h *Hub[T]) Broadcast(value T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		select {
		case sub.ch <- value:
		default:
		}
	}
}
