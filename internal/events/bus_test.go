package events

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPublish_StampsSessionAndTime(t *testing.T) {
	b := NewBus("session-1")
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	var got Event
	b.Subscribe("capture", ObserverFunc(func(e Event) { got = e }))

	b.Publish(Event{Type: PortSelected, Port: 8085})

	if got.Session != "session-1" {
		t.Errorf("Session = %q, want session-1", got.Session)
	}
	if !got.Time.Equal(fixed) {
		t.Errorf("Time = %v, want %v", got.Time, fixed)
	}
	if got.Port != 8085 {
		t.Errorf("Port = %d, want 8085", got.Port)
	}
}

func TestPublish_KeepsExplicitFields(t *testing.T) {
	b := NewBus("default")
	at := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	var got Event
	b.Subscribe("capture", ObserverFunc(func(e Event) { got = e }))
	b.Publish(Event{Type: BackendStarted, Session: "other", Time: at})

	if got.Session != "other" || !got.Time.Equal(at) {
		t.Errorf("got %+v, explicit session/time overwritten", got)
	}
}

func TestPublish_OrderAndUnsubscribe(t *testing.T) {
	b := NewBus("s")
	var order []string

	b.Subscribe("first", ObserverFunc(func(Event) { order = append(order, "first") }))
	unsub := b.Subscribe("second", ObserverFunc(func(Event) { order = append(order, "second") }))
	b.Subscribe("third", ObserverFunc(func(Event) { order = append(order, "third") }))

	b.Publish(Event{Type: HealthChecked})
	if strings.Join(order, ",") != "first,second,third" {
		t.Fatalf("order = %v", order)
	}

	unsub()
	unsub()
	order = nil
	b.Publish(Event{Type: HealthChecked})

	if strings.Join(order, ",") != "first,third" {
		t.Errorf("order after unsubscribe = %v", order)
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
}

func TestPublish_PanickingObserverIsIsolated(t *testing.T) {
	b := NewBus("s")
	delivered := false

	b.Subscribe("bad", ObserverFunc(func(Event) { panic("boom") }))
	b.Subscribe("good", ObserverFunc(func(Event) { delivered = true }))

	b.Publish(Event{Type: BackendStopped})

	if !delivered {
		t.Error("observer after a panicking one was not called")
	}
}

func TestEvent_JSON(t *testing.T) {
	e := Event{
		Type:     BackendStopped,
		Session:  "abc",
		Time:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		PID:      1234,
		Outcome:  "terminated",
		ExitCode: IntPtr(0),
	}

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	s := string(data)

	for _, want := range []string{`"type":"backend_stopped"`, `"exit_code":0`, `"pid":1234`} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
	if strings.Contains(s, `"port"`) {
		t.Errorf("JSON %s should omit zero port", s)
	}
}
