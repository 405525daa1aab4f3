// Package events is the in-process event bus. Chat turns, rename lookups
// and the interpreter publish typed events; the gateway, the event log and
// the cost tracker subscribe.
package events

import (
	"sync"
	"sync/atomic"
)

// transient event types reach subscribers but are not kept in history:
// a single answer yields hundreds of stream fragments.
var transient = map[EventType]bool{
	EventAssistantStream: true,
}

// Transient reports whether events of type t are excluded from history.
func Transient(t EventType) bool { return transient[t] }

// Subscriber is a function that receives events.
type Subscriber func(Event)

type subscription struct {
	types   map[EventType]bool // nil = every type
	handler Subscriber
}

func (s *subscription) wants(t EventType) bool {
	return s.types == nil || s.types[t]
}

// Bus is an in-memory event bus. Events are delivered to each subscriber in
// publication order from a single dispatch goroutine, so a slow subscriber
// delays the others.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscription
	nextID  uint64
	queue   chan Event
	history *ring[Event]
	dropped atomic.Uint64
	closed  bool
	done    chan struct{}
}

// NewBus creates a bus queueing up to bufferSize undelivered events and
// keeping as many in history.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	b := &Bus{
		subs:    make(map[uint64]*subscription),
		queue:   make(chan Event, bufferSize),
		history: newRing[Event](bufferSize),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) run() {
	for {
		select {
		case e := <-b.queue:
			if !transient[e.Type] {
				b.history.push(e)
			}
			b.deliver(e)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) deliver(e Event) {
	b.mu.RLock()
	handlers := make([]Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.wants(e.Type) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Publish queues an event. It never blocks: when the queue is full the event
// is counted in Dropped and discarded. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	select {
	case b.queue <- e:
	default:
		b.dropped.Add(1)
	}
}

// Dropped reports how many events Publish discarded on a full queue.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribe registers a handler for the given event types, or for every
// type when none is given. It returns an unsubscribe function.
func (b *Bus) Subscribe(handler Subscriber, eventTypes ...EventType) func() {
	sub := &subscription{handler: handler}
	if len(eventTypes) > 0 {
		sub.types = make(map[EventType]bool, len(eventTypes))
		for _, t := range eventTypes {
			sub.types[t] = true
		}
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// SubscribeChan delivers events on a channel of bufSize. Events that do not
// fit are dropped for this subscriber only. The returned function
// unsubscribes and closes the channel.
func (b *Bus) SubscribeChan(bufSize int, eventTypes ...EventType) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)

	var (
		mu     sync.Mutex
		closed bool
	)
	unsubscribe := b.Subscribe(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		select {
		case ch <- e:
		default:
		}
	}, eventTypes...)

	return ch, func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}
}

// History returns up to limit of the most recent retained events, oldest
// first, restricted to eventTypes when given.
func (b *Bus) History(limit int, eventTypes ...EventType) []Event {
	if limit <= 0 {
		return nil
	}
	all := b.history.snapshot()

	var out []Event
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if len(eventTypes) == 0 || containsType(eventTypes, all[i].Type) {
			out = append(out, all[i])
		}
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func containsType(types []EventType, t EventType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

// Close stops dispatching. Queued events are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

// ring is a fixed-size circular buffer.
type ring[T any] struct {
	mu   sync.Mutex
	buf  []T
	next int
	n    int
}

func newRing[T any](size int) *ring[T] {
	return &ring[T]{buf: make([]T, size)}
}

func (r *ring[T]) push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.n < len(r.buf) {
		r.n++
	}
}

// snapshot copies the retained values, oldest first.
func (r *ring[T]) snapshot() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, r.n)
	start := (r.next - r.n + len(r.buf)) % len(r.buf)
	for i := range out {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}
