// Package bus provides a process-wide named-event broadcast fabric.
//
// Events are payload-less: subscribers are told that something changed on a
// topic and are expected to re-read whatever durable state the topic covers.
package bus

import "sync"

// Bus is a named, payload-less broadcast/subscribe primitive.
// Delivery is synchronous and in-process. Safe for concurrent use.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func()
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string]map[int]func())}
}

// Subscribe registers fn for the given topic and returns a cancel function.
// Cancel is idempotent.
func (b *Bus) Subscribe(topic string, fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func())
	}
	b.subs[topic][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// Publish notifies all current subscribers of the topic.
// Callbacks run synchronously, outside the bus lock, so a callback may
// publish or subscribe without deadlocking.
func (b *Bus) Publish(topic string) {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
