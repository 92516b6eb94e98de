package events

import (
	"testing"

	"blockmarket/core/types"
)

type testEvent struct {
	evt *types.Event
}

func (e testEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e testEvent) Event() *types.Event { return e.evt }

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(8)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Emit(testEvent{evt: &types.Event{Type: "first"}})
	bus.Emit(testEvent{evt: &types.Event{Type: "second"}})

	env := <-ch
	if env.Event.Type != "first" || env.Sequence != 1 {
		t.Fatalf("unexpected first delivery: %+v", env)
	}
	if env.ID == "" {
		t.Fatal("expected envelope id")
	}
	env = <-ch
	if env.Event.Type != "second" || env.Sequence != 2 {
		t.Fatalf("unexpected second delivery: %+v", env)
	}
}

func TestBusDropsOldestWhenFull(t *testing.T) {
	bus := NewBus(1)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Emit(testEvent{evt: &types.Event{Type: "stale"}})
	bus.Emit(testEvent{evt: &types.Event{Type: "fresh"}})

	env := <-ch
	if env.Event.Type != "fresh" {
		t.Fatalf("expected oldest delivery dropped, got %q", env.Event.Type)
	}
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus(1)
	ch, cancel := bus.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after cancel")
	}
	// A second cancel must be safe.
	cancel()
	// Emitting after cancel must not panic.
	bus.Emit(testEvent{evt: &types.Event{Type: "late"}})
}

func TestBusIgnoresPayloadlessEvents(t *testing.T) {
	bus := NewBus(1)
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Emit(testEvent{})
	bus.Emit(testEvent{evt: &types.Event{Type: "real"}})
	env := <-ch
	if env.Sequence != 1 || env.Event.Type != "real" {
		t.Fatalf("payload-less event consumed a sequence number: %+v", env)
	}
}
