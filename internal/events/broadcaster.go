package events

import (
	"sync"
)

// Broadcaster delivers every published value to all current subscribers.
type Broadcaster[T any] struct {
	lock        sync.RWMutex
	subscribers map[int]chan T
	nextID      int
	dropped     int
}

// NewBroadcaster creates an empty [Broadcaster].
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subscribers: make(map[int]chan T)}
}

// Subscribe registers a subscriber with the given channel buffer.
// The returned cancel func unregisters it and closes the channel.
func (b *Broadcaster[T]) Subscribe(buffer int) (<-chan T, func()) {
	b.lock.Lock()
	defer b.lock.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan T, max(buffer, 1))
	b.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.lock.Lock()
			defer b.lock.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}
}

// Send offers v to every subscriber without blocking. Full subscribers miss v.
func (b *Broadcaster[T]) Send(v T) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
			b.dropped++
		}
	}
}

// Len returns the number of subscribers.
func (b *Broadcaster[T]) Len() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.subscribers)
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *Broadcaster[T]) Dropped() int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.dropped
}

// Bus is the event [Broadcaster] shared by the scheduler and its consumers.
type Bus struct {
	*Broadcaster[Event]
}

// NewBus creates an empty [Bus].
func NewBus() *Bus {
	return &Bus{Broadcaster: NewBroadcaster[Event]()}
}

// Publish implements [Publisher].
func (b *Bus) Publish(e Event) {
	b.Send(e)
}
