package sync

import (
	"testing"

	"github.com/nhle/campusnotify/internal/feed"
	"github.com/nhle/campusnotify/tests/testutil"
)

func TestListenerPumpsEvents(t *testing.T) {
	t.Parallel()

	backend := testutil.NewFakeBackend()
	backend.Seed("u1", testutil.Notification("a", "first", 100, false))
	sub, err := backend.Subscribe(t.Context(), "u1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	l := NewListener()
	if l.WaitForNext() != nil {
		t.Fatal("WaitForNext with nothing attached should return nil")
	}

	cmd := l.Attach(sub)
	msg, ok := cmd().(EventMsg)
	if !ok {
		t.Fatalf("first message is %T, want EventMsg", msg)
	}
	if msg.Event.Kind != feed.EventAdded || msg.Event.ID != "a" {
		t.Errorf("event = %v %q, want added a", msg.Event.Kind, msg.Event.ID)
	}
	if msg.Gen != l.Gen() {
		t.Errorf("Gen = %d, want %d", msg.Gen, l.Gen())
	}

	backend.LastSubscription().Emit(feed.Removed("a"))
	next, ok := l.WaitForNext()().(EventMsg)
	if !ok || next.Event.Kind != feed.EventRemoved {
		t.Fatalf("second message = %#v, want removed event", next)
	}

	status := l.Status()
	if status.State != ListenerStreaming {
		t.Errorf("State = %v, want %v", status.State, ListenerStreaming)
	}
	if status.Received != 2 {
		t.Errorf("Received = %d, want 2", status.Received)
	}
	if !l.Live() {
		t.Error("Live() = false, want true")
	}
}

func TestListenerReportsClosedStream(t *testing.T) {
	t.Parallel()

	backend := testutil.NewFakeBackend()
	sub, _ := backend.Subscribe(t.Context(), "u1")

	l := NewListener()
	cmd := l.Attach(sub)
	sub.Close()

	msg, ok := cmd().(ClosedMsg)
	if !ok {
		t.Fatalf("message is %T, want ClosedMsg", msg)
	}
	if msg.Gen != l.Gen() {
		t.Errorf("Gen = %d, want %d", msg.Gen, l.Gen())
	}
	if got := l.Status().State; got != ListenerClosed {
		t.Errorf("State = %v, want %v", got, ListenerClosed)
	}
	if l.Live() {
		t.Error("Live() = true after stream closed")
	}
}

func TestListenerAttachReplacesSubscription(t *testing.T) {
	t.Parallel()

	backend := testutil.NewFakeBackend()
	first, _ := backend.Subscribe(t.Context(), "u1")
	second, _ := backend.Subscribe(t.Context(), "u1")

	l := NewListener()
	l.Attach(first)
	oldGen := l.Gen()
	l.Attach(second)

	if !first.(*testutil.FakeSubscription).Closed() {
		t.Error("first subscription not closed on replace")
	}
	if l.Gen() == oldGen {
		t.Error("Gen unchanged after Attach")
	}

	l.Stop()
	if !second.(*testutil.FakeSubscription).Closed() {
		t.Error("second subscription not closed on Stop")
	}
	if l.WaitForNext() != nil {
		t.Error("WaitForNext after Stop should return nil")
	}
	if got := l.Status().State; got != ListenerClosed {
		t.Errorf("State = %v, want %v", got, ListenerClosed)
	}
}
