package pivot

import (
	"log"
	"sync"

	"dfl-stack/internal/models"
)

// Listener receives pivot notifications.
type Listener func(models.PivotNotification)

// Bus fans notifications out to every subscriber, in subscription order.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	order     []int
}

func NewBus() *Bus {
	return &Bus{listeners: make(map[int]Listener)}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.listeners, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish delivers n synchronously. A panicking listener is logged and
// does not stop delivery to the others.
func (b *Bus) Publish(n models.PivotNotification) {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.order))
	for _, id := range b.order {
		listeners = append(listeners, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, fn := range listeners {
		deliver(fn, n)
	}
}

func deliver(fn Listener, n models.PivotNotification) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: pivot listener panicked: %v", r)
		}
	}()
	fn(n)
}
