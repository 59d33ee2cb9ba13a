package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if b.ClientCount("") != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe("s1")
	other := b.Subscribe("s2")
	if b.ClientCount("s1") != 1 || b.ClientCount("") != 2 {
		t.Fatalf("counts = %d/%d", b.ClientCount("s1"), b.ClientCount(""))
	}
	b.Unsubscribe(ch)
	b.Unsubscribe(other)
	if b.ClientCount("") != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishOnlyReachesOwnSurface(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	mine := b.Subscribe("s1")
	defer b.Unsubscribe(mine)
	theirs := b.Subscribe("s2")
	defer b.Unsubscribe(theirs)

	b.PublishState("s1", "loaded", map[string]string{"resource": "avatar"})

	select {
	case msg := <-mine:
		s := string(msg)
		if !strings.Contains(s, "event: resource.loaded") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"resource":"avatar"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	select {
	case msg := <-theirs:
		t.Errorf("other surface received %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseSurfaceDisconnectsSubscribers(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe("s1")
	keep := b.Subscribe("s2")
	defer b.Unsubscribe(keep)

	b.CloseSurface("s1")

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if b.ClientCount("s2") != 1 {
		t.Errorf("unrelated surface lost its subscriber")
	}
	// Unsubscribing an already-closed channel is a no-op.
	b.Unsubscribe(ch)
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events?surface=s1", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount("s1") != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishState("s1", "failed", map[string]string{"class": "TIMEOUT"})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: resource.failed") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount("") != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestSSEHandlerRequiresSurface(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe("s1")
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Surface: "s1", Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1")
	if b.ClientCount("") != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount("") != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishState("s1", "loaded", nil)
	b.CloseSurface("s1")
	b.Close()
}
