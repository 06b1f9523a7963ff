package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan ExecStartedEvent, 1)

	unsub := bus.Subscribe(func(e ExecStartedEvent) {
		received <- e
	})
	defer unsub()

	ev := ExecStartedEvent{
		ID:        "exec-1",
		Job:       "build",
		Command:   []string{"make", "all"},
		Pid:       100,
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(ev)

	got := <-received
	if got.ID != ev.ID || got.Pid != ev.Pid {
		t.Errorf("Expected %+v, got %+v", ev, got)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan ExecFinishedEvent, 1)
	received2 := make(chan ExecFinishedEvent, 1)

	unsub1 := bus.Subscribe(func(e ExecFinishedEvent) { received1 <- e })
	defer unsub1()
	unsub2 := bus.Subscribe(func(e ExecFinishedEvent) { received2 <- e })
	defer unsub2()

	bus.Publish(ExecFinishedEvent{ID: "exec-1", Outcome: OutcomeSuccess})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan ExecKilledEvent, 1)

	unsub := bus.Subscribe(func(e ExecKilledEvent) { received <- e })

	bus.Publish(ExecKilledEvent{ID: "a", Reason: "timeout"})
	<-received

	unsub()

	bus.Publish(ExecKilledEvent{ID: "b", Reason: "timeout"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	startedReceived := make(chan bool, 1)
	finishedReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ ExecStartedEvent) { startedReceived <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ ExecFinishedEvent) { finishedReceived <- true })
	defer unsub2()

	bus.Publish(ExecStartedEvent{ID: "x"})
	<-startedReceived

	select {
	case <-finishedReceived:
		t.Fatal("Finished subscriber should NOT have received ExecStartedEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)
	unsub := bus.Subscribe(func(_ ExecStateChangedEvent) { receivedCh <- true })
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(ExecStateChangedEvent{From: "running", To: "joining"})
			}
		}()
	}
	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_NilPublishAndUnknownHandler(_ *testing.T) {
	var nilBus *Bus
	nilBus.Publish(ExecStartedEvent{ID: "ignored"})

	unsub := New().Subscribe(func(string) {})
	unsub()
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	unsub := SubscribeToChannel[LogEntryEvent](bus, ch)
	defer unsub()

	bus.Publish(LogEntryEvent{Module: "api", Message: "hello"})

	select {
	case got := <-ch:
		entry, ok := got.(LogEntryEvent)
		if !ok || entry.Message != "hello" {
			t.Errorf("unexpected event %#v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for bridged event")
	}
}

func TestSubscribeFiltered(t *testing.T) {
	bus := New()
	ch := make(chan any, 2)
	unsub := SubscribeFiltered(bus, ch, func(e LogEntryEvent) bool {
		return e.Module == "jobs"
	})
	defer unsub()

	bus.Publish(LogEntryEvent{Module: "api", Message: "skipped"})
	bus.Publish(LogEntryEvent{Module: "jobs", Message: "kept"})

	select {
	case got := <-ch:
		if entry := got.(LogEntryEvent); entry.Message != "kept" {
			t.Errorf("expected only the jobs entry, got %#v", entry)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for filtered event")
	}
}

func TestEventJSON(t *testing.T) {
	data, err := json.Marshal(ExecFinishedEvent{
		ID:          "exec-1",
		Job:         "lint",
		ExitCode:    -1,
		Outcome:     OutcomeTimeout,
		ErrorCode:   "TIMEOUT",
		DurationSec: 1.5,
	})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["outcome"] != "timeout" || decoded["error_code"] != "TIMEOUT" {
		t.Errorf("unexpected JSON: %s", data)
	}
	if _, present := decoded["error"]; present {
		t.Errorf("empty error should be omitted: %s", data)
	}
}
