package capture

import (
	"context"
	"errors"
	"sync"
)

// ErrMailboxClosed is returned by Next after Close.
var ErrMailboxClosed = errors.New("capture: mailbox closed")

// Mailbox is a single-slot hand-off from the capture loop to any number of
// readers. Publish never blocks: a newer picture replaces the held one, and
// a replaced picture nobody read counts as a drop.
type Mailbox struct {
	mu     sync.Mutex
	pic    *Picture
	read   bool
	seq    uint64
	drops  uint64
	shut   bool
	notify chan struct{}
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{})}
}

// Publish stores pic, stamps its sequence number and wakes waiting readers.
// It reports whether an unread picture was replaced.
func (m *Mailbox) Publish(pic *Picture) (dropped bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shut {
		return false
	}
	if m.pic != nil && !m.read {
		m.drops++
		dropped = true
	}

	m.seq++
	pic.Seq = m.seq
	m.pic = pic
	m.read = false

	close(m.notify)
	m.notify = make(chan struct{})
	return dropped
}

// Latest returns the held picture without waiting, or nil.
func (m *Mailbox) Latest() *Picture {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pic != nil {
		m.read = true
	}
	return m.pic
}

// Next blocks until a picture newer than afterSeq is held and returns it.
// Pass 0 to take whatever is held.
func (m *Mailbox) Next(ctx context.Context, afterSeq uint64) (*Picture, error) {
	for {
		m.mu.Lock()
		if m.pic != nil && m.pic.Seq > afterSeq {
			m.read = true
			pic := m.pic
			m.mu.Unlock()
			return pic, nil
		}
		if m.shut {
			m.mu.Unlock()
			return nil, ErrMailboxClosed
		}
		wait := m.notify
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// Drops returns how many pictures were replaced unread.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}

// Close wakes every reader. Later Publish calls are ignored; the held picture
// stays readable through Latest.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shut {
		return
	}
	m.shut = true
	close(m.notify)
}

func (m *Mailbox) closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shut
}
