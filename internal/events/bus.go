// Package events broadcasts translation lifecycle events to subscribers.
//
// Emitters (the namespace manager and the dynamic store) must never block
// on a slow consumer: each subscriber gets a buffered channel and events
// that do not fit are dropped and counted.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/openlocale/openlocale/internal/logging"
	"github.com/openlocale/openlocale/internal/models"
)

const defaultSubscriberBuffer = 256

// Subscription is a handle to a subscriber's event stream.
type Subscription struct {
	ch     chan models.TranslationEvent
	bus    *Bus
	closed atomic.Bool
}

// Events returns the subscriber's receive channel. It is closed when the
// subscription is cancelled or the bus shuts down.
func (s *Subscription) Events() <-chan models.TranslationEvent {
	return s.ch
}

// Cancel removes the subscription from the bus and closes its channel.
func (s *Subscription) Cancel() {
	s.bus.unsubscribe(s)
}

// Bus fans translation events out to all subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	buffer      int
	closed      bool

	published uint64
	dropped   uint64
	logger    *logging.Logger
}

// NewBus creates an event bus with the default subscriber buffer size.
func NewBus() *Bus {
	return NewBusWithBuffer(defaultSubscriberBuffer)
}

// NewBusWithBuffer creates an event bus with a custom per-subscriber buffer.
func NewBusWithBuffer(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{
		subscribers: make(map[*Subscription]struct{}),
		buffer:      buffer,
		logger:      logging.GetLogger("events"),
	}
}

// Subscribe registers a new subscriber. Returns nil when the bus is closed.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	sub := &Subscription{
		ch:  make(chan models.TranslationEvent, b.buffer),
		bus: b,
	}
	b.subscribers[sub] = struct{}{}
	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	if sub.closed.CompareAndSwap(false, true) {
		close(sub.ch)
	}
}

// Publish delivers the event to every subscriber without blocking. Events
// that do not fit a subscriber's buffer are dropped.
func (b *Bus) Publish(event models.TranslationEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	atomic.AddUint64(&b.published, 1)
	for sub := range b.subscribers {
		select {
		case sub.ch <- event:
		default:
			dropped := atomic.AddUint64(&b.dropped, 1)
			if dropped%100 == 1 {
				b.logger.Warn("slow event subscriber, dropped %d events so far", dropped)
			}
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subscribers {
		if sub.closed.CompareAndSwap(false, true) {
			close(sub.ch)
		}
	}
	b.subscribers = make(map[*Subscription]struct{})
}

// Stats returns the number of published and dropped events.
func (b *Bus) Stats() (published, dropped uint64) {
	return atomic.LoadUint64(&b.published), atomic.LoadUint64(&b.dropped)
}
