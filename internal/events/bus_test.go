package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestEventBusDeliversToSubscriber(t *testing.T) {
	bus := NewEventBus(16)
	defer bus.Stop()

	received := make(chan Event, 1)
	bus.Subscribe(EventTypeAlertTriggered, func(ev Event) {
		received <- ev
	})

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bus.Publish(NewAlertTriggeredEvent("id-1", "Aria Stone", "r1", "local", 42.5, "direct:BitBlt(clientDC)", at))

	select {
	case ev := <-received:
		if ev.Type != EventTypeAlertTriggered {
			t.Errorf("Expected alert.triggered, got %s", ev.Type)
		}
		if ev.Data["character"] != "Aria Stone" {
			t.Errorf("Expected character in event data, got %v", ev.Data["character"])
		}
		if ev.Data["score"] != 42.5 {
			t.Errorf("Expected score in event data, got %v", ev.Data["score"])
		}
		if !ev.Timestamp.Equal(at) {
			t.Errorf("Expected event timestamp preserved, got %v", ev.Timestamp)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event delivery")
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	bus := NewEventBus(16)
	defer bus.Stop()

	var wg sync.WaitGroup
	var count int64
	wg.Add(3)
	for i := 0; i < 3; i++ {
		bus.Subscribe(EventTypeTargetFound, func(Event) {
			atomic.AddInt64(&count, 1)
			wg.Done()
		})
	}
	if got := bus.GetSubscriberCount(EventTypeTargetFound); got != 3 {
		t.Fatalf("Expected 3 subscribers, got %d", got)
	}

	bus.Publish(NewTargetFoundEvent("Aria Stone", "EVE - Aria Stone", 0x1001))

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for all subscribers")
	}
	if atomic.LoadInt64(&count) != 3 {
		t.Errorf("Expected 3 deliveries, got %d", count)
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(16)
	defer bus.Stop()

	id := bus.Subscribe(EventTypeTargetLost, func(Event) {})
	if got := bus.GetSubscriberCount(EventTypeTargetLost); got != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", got)
	}

	bus.Unsubscribe(id)
	if got := bus.GetSubscriberCount(EventTypeTargetLost); got != 0 {
		t.Errorf("Expected 0 subscribers after unsubscribe, got %d", got)
	}
}

func TestEventBusRecoversFromHandlerPanic(t *testing.T) {
	bus := NewEventBus(16)
	defer bus.Stop()

	received := make(chan struct{}, 1)
	bus.Subscribe(EventTypeError, func(Event) {
		panic("handler exploded")
	})
	bus.Subscribe(EventTypeError, func(Event) {
		received <- struct{}{}
	})

	bus.Publish(Event{Type: EventTypeError})

	select {
	case <-received:
		// The panicking handler must not take down delivery to others.
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for surviving handler")
	}
}

func TestEventBusDrainsOnStop(t *testing.T) {
	bus := NewEventBus(16)

	var count int64
	var wg sync.WaitGroup
	wg.Add(4)
	bus.Subscribe(EventTypeConfigReloaded, func(Event) {
		atomic.AddInt64(&count, 1)
		wg.Done()
	})

	for i := 0; i < 4; i++ {
		bus.Publish(NewConfigReloadedEvent("rules.yaml", i))
	}
	bus.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for queued events to drain")
	}
	if atomic.LoadInt64(&count) != 4 {
		t.Errorf("Expected all queued events delivered, got %d", count)
	}
}
