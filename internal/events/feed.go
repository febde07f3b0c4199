package events

import (
	"sync"
	"sync/atomic"

	"github.com/kelindar/event"
)

// Feed merges one or more event types from a Bus into a single buffered
// channel for a streaming client. When the buffer is full new events are
// counted and dropped; the publisher never waits on a slow client.
type Feed struct {
	c       chan any
	dropped atomic.Uint64

	mu     sync.Mutex
	unsubs []func()
}

// NewFeed returns an empty feed buffering up to size events.
func NewFeed(size int) *Feed {
	return &Feed{c: make(chan any, size)}
}

// Follow adds events of type T on bus to f and returns f.
func Follow[T Event](f *Feed, bus *Bus) *Feed {
	unsub := event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case f.c <- e:
		default:
			f.dropped.Add(1)
		}
	})

	f.mu.Lock()
	f.unsubs = append(f.unsubs, unsub)
	f.mu.Unlock()
	return f
}

// C is the receive side of the feed.
func (f *Feed) C() <-chan any { return f.c }

// Dropped returns how many events did not fit in the buffer.
func (f *Feed) Dropped() uint64 { return f.dropped.Load() }

// Close ends every subscription. The channel stays open so a reader blocked
// in select is not woken with a zero value.
func (f *Feed) Close() {
	f.mu.Lock()
	unsubs := f.unsubs
	f.unsubs = nil
	f.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}
