package broadcast

import "testing"

func TestSubscribeReceivesOnlyEventsAfterJoin(t *testing.T) {
	h := NewHub()
	h.Publish(Event{Type: EventNewMessage, MessageID: "before"})

	sub := h.Subscribe()
	h.Publish(Event{Type: EventNewMessage, MessageID: "after"})
	sub.Close()

	got := drain(sub)
	if len(got) != 1 || got[0].MessageID != "after" {
		t.Fatalf("expected exactly the post-join event, got %+v", got)
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()

	for i := 0; i < 10; i++ {
		h.Publish(Event{Type: EventNewMessage, MessageID: string(rune('a' + i))})
	}
	h.Close()

	got := drain(sub)
	if len(got) != 10 {
		t.Fatalf("expected 10 events, got %d", len(got))
	}
	for i, ev := range got {
		if ev.MessageID != string(rune('a'+i)) {
			t.Errorf("event %d out of order: got %q", i, ev.MessageID)
		}
	}
}

func TestSlowSubscriberIsEvictedWithLaggedEvent(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe()

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Publish(Event{Type: EventNewMessage})
	}

	got := drain(sub)
	if len(got) == 0 {
		t.Fatal("expected some buffered events before eviction")
	}
	last := got[len(got)-1]
	if last.Type != EventLagged {
		t.Errorf("expected final event to be EventLagged, got %v", last.Type)
	}
}

func TestCrossSubscriberIsolation(t *testing.T) {
	h := NewHub()
	slow := h.Subscribe() // never drained, will overflow and be evicted
	fast := h.Subscribe()

	fastCount := make(chan int, 1)
	go func() {
		n := 0
		for range fast.Events() {
			n++
		}
		fastCount <- n
	}()

	total := subscriberBuffer + 10
	for i := 0; i < total; i++ {
		h.Publish(Event{Type: EventNewMessage})
	}
	_ = slow
	h.Close()

	if n := <-fastCount; n != total {
		t.Errorf("expected fast subscriber to receive all %d events despite slow one's eviction, got %d", total, n)
	}
}

func drain(sub *Subscription) []Event {
	var out []Event
	for ev := range sub.Events() {
		out = append(out, ev)
	}
	return out
}
