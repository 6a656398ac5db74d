package events

import (
	"testing"
	"time"
)

func TestHub_PublishDelivers(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(Event{Type: TypeExportState, SessionID: "s1", State: "exporting"})

	select {
	case ev := <-ch:
		if ev.Type != TypeExportState || ev.SessionID != "s1" || ev.State != "exporting" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub(nil)
	ch1, cancel1 := hub.Subscribe()
	defer cancel1()
	ch2, cancel2 := hub.Subscribe()
	defer cancel2()

	hub.Publish(Event{Type: TypeExportProgress, Progress: 50})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Progress != 50 {
				t.Errorf("subscriber %d: progress = %d, want 50", i, ev.Progress)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestHub_SlowSubscriberDropsEvents(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe()
	defer cancel()

	// Overfill the buffer; Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer+10; i++ {
			hub.Publish(Event{Type: TypeExportProgress, Progress: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered events = %d, want %d", got, subscriberBuffer)
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe()

	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Second cancel and later publishes are harmless.
	cancel()
	hub.Publish(Event{Type: TypeThumbnailReady})
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	_, cancel1 := hub.Subscribe()
	ch2, cancel2 := hub.Subscribe()
	defer cancel2()

	cancel1()
	hub.Publish(Event{Type: TypeExportState, State: "complete"})

	select {
	case ev := <-ch2:
		if ev.State != "complete" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber did not receive event")
	}
}

func TestHub_NotifierShapes(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.ThumbnailReady("s1", "clip-1", "/thumbs/clip-1.jpg")
	hub.ExportState("s1", "error", "render service unavailable")
	hub.ExportProgress("s1", 75)
	hub.SessionsChanged(3)

	ev := <-ch
	if ev.Type != TypeThumbnailReady || ev.ClipID != "clip-1" || ev.Thumbnail != "/thumbs/clip-1.jpg" {
		t.Errorf("thumbnail event = %+v", ev)
	}
	ev = <-ch
	if ev.Type != TypeExportState || ev.State != "error" || ev.Error != "render service unavailable" {
		t.Errorf("state event = %+v", ev)
	}
	ev = <-ch
	if ev.Type != TypeExportProgress || ev.Progress != 75 {
		t.Errorf("progress event = %+v", ev)
	}
	ev = <-ch
	if ev.Type != TypeSessionCount || ev.Sessions != 3 {
		t.Errorf("session count event = %+v", ev)
	}
}
