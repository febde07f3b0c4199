package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMailboxOverwriteCountsDrops(t *testing.T) {
	m := NewMailbox()

	if m.Publish(&Picture{Width: 1}) {
		t.Error("first publish should not drop")
	}
	if !m.Publish(&Picture{Width: 2}) {
		t.Error("replacing an unread picture should drop")
	}

	pic := m.Latest()
	if pic == nil || pic.Width != 2 || pic.Seq != 2 {
		t.Fatalf("Latest() = %+v, want the second picture with Seq 2", pic)
	}

	// The held picture was read, so replacing it is not a drop
	if m.Publish(&Picture{Width: 3}) {
		t.Error("replacing a read picture should not drop")
	}
	if m.Drops() != 1 {
		t.Errorf("Drops() = %d, want 1", m.Drops())
	}
}

func TestMailboxNextWaitsForNewer(t *testing.T) {
	m := NewMailbox()
	m.Publish(&Picture{Width: 1})

	got, err := m.Next(context.Background(), 0)
	if err != nil || got.Seq != 1 {
		t.Fatalf("Next(0) = %+v, %v", got, err)
	}

	result := make(chan *Picture, 1)
	go func() {
		pic, _ := m.Next(context.Background(), got.Seq)
		result <- pic
	}()

	select {
	case <-result:
		t.Fatal("Next returned before a newer picture was published")
	case <-time.After(20 * time.Millisecond):
	}

	m.Publish(&Picture{Width: 2})
	select {
	case pic := <-result:
		if pic.Seq != 2 || pic.Width != 2 {
			t.Errorf("Next() = %+v, want Seq 2", pic)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake on publish")
	}
}

func TestMailboxNextHonoursContext(t *testing.T) {
	m := NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := m.Next(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() error = %v, want deadline exceeded", err)
	}
}

func TestMailboxClose(t *testing.T) {
	m := NewMailbox()
	m.Publish(&Picture{Width: 1})

	done := make(chan error, 1)
	go func() {
		_, err := m.Next(context.Background(), 1)
		done <- err
	}()

	m.Close()
	m.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrMailboxClosed) {
			t.Errorf("Next() error = %v, want ErrMailboxClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the reader")
	}

	if m.Publish(&Picture{Width: 2}) || m.Latest().Width != 1 {
		t.Error("publish after Close must be ignored")
	}
}

func TestMailboxConcurrentReaders(t *testing.T) {
	m := NewMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const readers = 8
	var wg sync.WaitGroup
	for range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var seq uint64
			for seq < 50 {
				pic, err := m.Next(ctx, seq)
				if err != nil {
					t.Errorf("Next() error = %v", err)
					return
				}
				if pic.Seq <= seq {
					t.Errorf("sequence went from %d to %d", seq, pic.Seq)
					return
				}
				seq = pic.Seq
			}
		}()
	}

	for range 50 {
		m.Publish(&Picture{})
		time.Sleep(time.Millisecond)
	}
	wg.Wait()
}
