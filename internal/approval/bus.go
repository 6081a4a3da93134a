package approval

import "sync"

// subscriberBuffer bounds how many undelivered notifications a subscriber
// may accumulate before further ones are dropped for it.
const subscriberBuffer = 16

// Bus broadcasts newly created pending requests to interested UIs. It is an
// explicit object with injected lifetime rather than a process-wide global
// so tests and multiple gate instances stay independent.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Request
	nextID int
	closed bool
}

// NewBus creates an empty broadcast bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Request)}
}

// Subscribe registers a listener and returns its channel plus an
// unsubscribe function. Unsubscribing twice is safe.
func (b *Bus) Subscribe() (<-chan Request, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Request, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, unsubscribe
}

// Publish fans a request out to all subscribers. A subscriber that has
// fallen behind loses the notification instead of blocking the gate.
func (b *Bus) Publish(req Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- req:
		default:
		}
	}
}

// Close drops all subscribers and closes their channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
