package httpapi

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSSEHubPublishReachesSubscribers(t *testing.T) {
	t.Parallel()
	hub := NewSSEHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	hub.PublishJSON(map[string]string{"type": "ticket_update", "ticket_id": "TKT-1"})

	select {
	case msg := <-ch:
		var got map[string]string
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got["ticket_id"] != "TKT-1" {
			t.Fatalf("got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestSSEHubDropsSlowSubscriber(t *testing.T) {
	t.Parallel()
	hub := NewSSEHub()
	ch := hub.Subscribe()
	defer hub.Unsubscribe(ch)

	// Fill the buffer without draining; publishes past capacity must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			hub.PublishJSON(map[string]int{"n": i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}

func TestSSEHubUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	hub := NewSSEHub()
	ch := hub.Subscribe()
	hub.Unsubscribe(ch)
	// A second unsubscribe of the same channel is a no-op.
	hub.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Fatal("channel not closed")
	}
}
