package events

import (
	"encoding/json"
	"testing"
)

func TestMakeEvent(t *testing.T) {
	raw := MakeEvent("req-1", TypeUploadDone, 1, map[string]int{"records": 3})

	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != TypeUploadDone || e.RequestID != "req-1" || e.Version != 1 {
		t.Fatalf("event = %+v", e)
	}
	if e.ID == "" {
		t.Fatal("missing event id")
	}
	if string(e.Data) != `{"records":3}` {
		t.Fatalf("data = %s", e.Data)
	}
}

func TestHubFanOutAndDrop(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	if h.Clients() != 2 {
		t.Fatalf("clients = %d", h.Clients())
	}

	h.Publish("hello")
	if got := <-a; got != "hello" {
		t.Fatalf("a got %q", got)
	}
	if got := <-b; got != "hello" {
		t.Fatalf("b got %q", got)
	}

	// a full buffer drops instead of blocking
	for i := 0; i < 100; i++ {
		h.Publish("spam")
	}

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	if h.Clients() != 1 {
		t.Fatalf("clients = %d", h.Clients())
	}
	for range a {
		// drains to the close
	}
}
