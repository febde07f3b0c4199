package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan FrameSizeChangedEvent, 1)

	unsub := bus.Subscribe(func(e FrameSizeChangedEvent) {
		received <- e
	})
	defer unsub()

	want := FrameSizeChangedEvent{DevicePath: "/dev/video0", Index: 1, Width: 320, Height: 240, FrameBytes: 153600}
	bus.Publish(want)

	select {
	case got := <-received:
		if got != want {
			t.Errorf("received %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan CaptureStateChangedEvent, 1)
	received2 := make(chan CaptureStateChangedEvent, 1)

	defer bus.Subscribe(func(e CaptureStateChangedEvent) { received1 <- e })()
	defer bus.Subscribe(func(e CaptureStateChangedEvent) { received2 <- e })()

	bus.Publish(CaptureStateChangedEvent{State: StateStreaming})

	for i, ch := range []chan CaptureStateChangedEvent{received1, received2} {
		select {
		case e := <-ch:
			if e.State != StateStreaming {
				t.Errorf("subscriber %d got state %q", i, e.State)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan CaptureErrorEvent, 1)

	unsub := bus.Subscribe(func(e CaptureErrorEvent) {
		received <- e
	})

	bus.Publish(CaptureErrorEvent{DevicePath: "/dev/video0"})
	<-received

	unsub()

	bus.Publish(CaptureErrorEvent{DevicePath: "/dev/video1"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	errorsReceived := make(chan bool, 1)
	sizesReceived := make(chan bool, 1)

	defer bus.Subscribe(func(CaptureErrorEvent) { errorsReceived <- true })()
	defer bus.Subscribe(func(FrameSizeChangedEvent) { sizesReceived <- true })()

	bus.Publish(CaptureErrorEvent{DevicePath: "/dev/video0"})
	<-errorsReceived

	select {
	case <-sizesReceived:
		t.Fatal("frame size subscriber received a CaptureErrorEvent")
	case <-time.After(10 * time.Millisecond):
	}

	bus.Publish(FrameSizeChangedEvent{Index: 2})
	<-sizesReceived

	select {
	case <-errorsReceived:
		t.Fatal("error subscriber received a FrameSizeChangedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandlerIsNoop(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("Subscribe() returned nil for an unknown handler")
	}
	unsub()
}

func TestBus_ThreadSafety(t *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(FrameStatsEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range eventsPerGoroutine {
				bus.Publish(FrameStatsEvent{Frames: uint64(i)})
			}
		}()
	}

	wg.Wait()

	for range expected {
		select {
		case <-receivedCh:
		case <-time.After(2 * time.Second):
			t.Fatal("not every event was delivered")
		}
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name      string
		event     Event
		subscribe func(chan<- Event) func()
	}{
		{"CaptureStateChanged", CaptureStateChangedEvent{State: StateStopped},
			func(ch chan<- Event) func() { return bus.Subscribe(func(e CaptureStateChangedEvent) { ch <- e }) }},
		{"CaptureError", CaptureErrorEvent{Code: "STREAM_STATE"},
			func(ch chan<- Event) func() { return bus.Subscribe(func(e CaptureErrorEvent) { ch <- e }) }},
		{"FrameSizeChanged", FrameSizeChangedEvent{Index: 1},
			func(ch chan<- Event) func() { return bus.Subscribe(func(e FrameSizeChangedEvent) { ch <- e }) }},
		{"FrameStats", FrameStatsEvent{Frames: 10},
			func(ch chan<- Event) func() { return bus.Subscribe(func(e FrameStatsEvent) { ch <- e }) }},
		{"LogEntry", LogEntryEvent{Seq: 1},
			func(ch chan<- Event) func() { return bus.Subscribe(func(e LogEntryEvent) { ch <- e }) }},
		{"ConfigReloaded", ConfigReloadedEvent{Path: "config.toml"},
			func(ch chan<- Event) func() { return bus.Subscribe(func(e ConfigReloadedEvent) { ch <- e }) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			received := make(chan Event, 1)
			unsub := tt.subscribe(received)
			defer unsub()

			bus.Publish(tt.event)
			select {
			case got := <-received:
				if got.Type() != tt.event.Type() {
					t.Errorf("received type %d, want %d", got.Type(), tt.event.Type())
				}
			case <-time.After(time.Second):
				t.Fatal("event not delivered")
			}
		})
	}
}

func TestEventTypesAreDistinct(t *testing.T) {
	seen := make(map[uint32]string)
	for _, e := range []Event{
		CaptureStateChangedEvent{}, CaptureErrorEvent{}, FrameSizeChangedEvent{},
		FrameStatsEvent{}, LogEntryEvent{}, ConfigReloadedEvent{},
	} {
		if prev, dup := seen[e.Type()]; dup {
			t.Errorf("%T shares type %d with %s", e, e.Type(), prev)
		}
		seen[e.Type()] = fmt.Sprintf("%T", e)
	}
}

func TestCaptureErrorEventJSON(t *testing.T) {
	data, err := json.Marshal(CaptureErrorEvent{
		DevicePath: "/dev/video0",
		Code:       "CONTROL_CALL_FAILED",
		Error:      "VIDIOC_DQBUF failed",
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{`"device_path":"/dev/video0"`, `"code":"CONTROL_CALL_FAILED"`, `"error":"VIDIOC_DQBUF failed"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("JSON %s missing %s", data, key)
		}
	}
}

func TestFeedMergesTypes(t *testing.T) {
	bus := New()
	feed := NewFeed(4)
	Follow[FrameSizeChangedEvent](feed, bus)
	Follow[ConfigReloadedEvent](feed, bus)
	defer feed.Close()

	bus.Publish(FrameSizeChangedEvent{Index: 2})
	bus.Publish(ConfigReloadedEvent{FrameSize: 1})
	bus.Publish(CaptureStateChangedEvent{State: StateStreaming})

	var got []any
	for len(got) < 2 {
		select {
		case ev := <-feed.C():
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatalf("received %d events, want 2", len(got))
		}
	}
	// delivery order across types is not fixed
	var sizes, reloads int
	for _, ev := range got {
		switch e := ev.(type) {
		case FrameSizeChangedEvent:
			if e.Index == 2 {
				sizes++
			}
		case ConfigReloadedEvent:
			if e.FrameSize == 1 {
				reloads++
			}
		default:
			t.Errorf("unfollowed type forwarded: %#v", ev)
		}
	}
	if sizes != 1 || reloads != 1 {
		t.Errorf("received %#v", got)
	}
}

func TestFeedDropsWhenFull(t *testing.T) {
	bus := New()
	feed := Follow[CaptureStateChangedEvent](NewFeed(1), bus)
	defer feed.Close()

	done := make(chan bool, 1)
	go func() {
		for range 3 {
			bus.Publish(CaptureStateChangedEvent{State: StateStreaming})
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full feed")
	}
	deadline := time.Now().Add(time.Second)
	for feed.Dropped() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if feed.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", feed.Dropped())
	}
}

func TestFeedClose(t *testing.T) {
	bus := New()
	feed := Follow[FrameStatsEvent](NewFeed(1), bus)
	feed.Close()
	feed.Close()

	bus.Publish(FrameStatsEvent{Frames: 1})
	select {
	case ev := <-feed.C():
		t.Errorf("event after Close: %#v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}
