// Package hub fans serialized packets out to every live realtime session of
// this process.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/immxrtalbeast/geopulse/internal/metrics"
)

const DefaultBuffer = 4096

// Hub is a broadcast channel with one bounded queue per subscriber. Publish
// never blocks: a subscriber whose queue is full loses its oldest packet.
type Hub struct {
	buffer int

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool

	dropped atomic.Uint64
}

func New(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[*Subscription]struct{}),
	}
}

// Subscription receives every packet published after it was created.
type Subscription struct {
	hub     *Hub
	ch      chan []byte
	once    sync.Once
	dropped atomic.Uint64
}

// C is closed once the subscription is removed or the hub shuts down.
func (s *Subscription) C() <-chan []byte {
	return s.ch
}

// Dropped reports how many packets this subscriber lost to overflow.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) Close() {
	s.hub.Unsubscribe(s)
}

func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		hub: h,
		ch:  make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.subs[sub] = struct{}{}
	metrics.SetHubSubscribers(len(h.subs))
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	sub.once.Do(func() { close(sub.ch) })
	metrics.SetHubSubscribers(len(h.subs))
}

// Publish hands payload to every current subscriber and returns how many
// received it. With no subscribers the packet is discarded.
func (h *Hub) Publish(payload []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0
	}
	metrics.IncHubPublished()

	for sub := range h.subs {
		h.deliver(sub, payload)
	}
	return len(h.subs)
}

// deliver runs under h.mu, so no other publisher competes for the queue slot
// freed by evicting the oldest entry.
func (h *Hub) deliver(sub *Subscription, payload []byte) {
	select {
	case sub.ch <- payload:
		return
	default:
	}

	select {
	case <-sub.ch:
		h.countDrop(sub)
	default:
	}

	select {
	case sub.ch <- payload:
	default:
		h.countDrop(sub)
	}
}

func (h *Hub) countDrop(sub *Subscription) {
	sub.dropped.Add(1)
	h.dropped.Add(1)
	metrics.IncHubDropped()
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped is the total number of packets lost by lagging subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close detaches every subscriber. Later publishes are no-ops.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		sub.once.Do(func() { close(sub.ch) })
	}
	h.subs = make(map[*Subscription]struct{})
	metrics.SetHubSubscribers(0)
}
