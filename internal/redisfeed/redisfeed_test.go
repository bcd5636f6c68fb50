package redisfeed

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nhle/campusnotify/internal/feed"
	"github.com/nhle/campusnotify/internal/model"
)

func newTestBackend(t *testing.T) (*Backend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, "test", zerolog.Nop()), mr
}

func nextEvent(t *testing.T, sub feed.Subscription) feed.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return feed.Event{}
}

func TestCreateAndList(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	for i, title := range []string{"old", "new", "mid"} {
		ts := []int64{1000, 3000, 2000}[i]
		if _, err := b.Create(ctx, "u1", model.Notification{Title: title, Timestamp: ts, Type: model.TypeSafety}); err != nil {
			t.Fatalf("Create(%q): %v", title, err)
		}
	}
	if _, err := b.Create(ctx, "u2", model.Notification{Title: "other"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := b.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"new", "mid", "old"}
	if len(got) != len(want) {
		t.Fatalf("List returned %d notifications, want %d", len(got), len(want))
	}
	for i, n := range got {
		if n.Title != want[i] {
			t.Errorf("got[%d].Title = %q, want %q", i, n.Title, want[i])
		}
		if n.Type != model.TypeSafety {
			t.Errorf("got[%d].Type = %q, want %q", i, n.Type, model.TypeSafety)
		}
	}
}

func TestListSkipsMalformedDocuments(t *testing.T) {
	b, mr := newTestBackend(t)
	ctx := context.Background()

	if _, err := b.Create(ctx, "u1", model.Notification{Title: "good", Timestamp: 1000}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	mr.HSet(b.docsKey(), "bad", `{"id":"bad","type":"party"}`)
	mr.ZAdd(b.indexKey("u1"), 2000, "bad")
	mr.ZAdd(b.indexKey("u1"), 3000, "dangling")

	got, err := b.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Title != "good" {
		t.Errorf("List = %+v, want only the well-formed record", got)
	}
}

func TestMarkReadAndDelete(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	n, err := b.Create(ctx, "u1", model.Notification{Title: "hello"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := b.MarkRead(ctx, n.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	got, _ := b.List(ctx, "u1")
	if len(got) != 1 || !got[0].IsRead {
		t.Fatalf("after MarkRead, List = %+v", got)
	}

	if err := b.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, _ = b.List(ctx, "u1")
	if len(got) != 0 {
		t.Errorf("after Delete, List returned %d notifications", len(got))
	}

	if err := b.MarkRead(ctx, n.ID); !errors.Is(err, feed.ErrNotFound) {
		t.Errorf("MarkRead(deleted) error = %v, want ErrNotFound", err)
	}
	if err := b.Delete(ctx, "missing"); !errors.Is(err, feed.ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentMarkReadAndDeleteLeaveNoDocument(t *testing.T) {
	b, mr := newTestBackend(t)
	ctx := context.Background()

	for round := 0; round < 100; round++ {
		n, err := b.Create(ctx, "u1", model.Notification{Title: "race", Timestamp: int64(round + 1)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		var (
			wg      gosync.WaitGroup
			markErr error
			delErr  error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			markErr = b.MarkRead(ctx, n.ID)
		}()
		go func() {
			defer wg.Done()
			delErr = b.Delete(ctx, n.ID)
		}()
		wg.Wait()

		if delErr != nil {
			t.Fatalf("round %d: Delete: %v", round, delErr)
		}
		if markErr != nil && !errors.Is(markErr, feed.ErrNotFound) {
			t.Fatalf("round %d: MarkRead error = %v, want nil or ErrNotFound", round, markErr)
		}
		if mr.HGet("test:notifications", n.ID) != "" {
			t.Fatalf("round %d: document %s still stored after Delete", round, n.ID)
		}
		if err := b.MarkRead(ctx, n.ID); !errors.Is(err, feed.ErrNotFound) {
			t.Fatalf("round %d: MarkRead after Delete error = %v, want ErrNotFound", round, err)
		}
	}

	got, err := b.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List returned %d notifications, want 0", len(got))
	}
}

func TestMarkReadScriptSkipsMissingDocument(t *testing.T) {
	b, mr := newTestBackend(t)
	ctx := context.Background()

	written, err := markReadScript.Run(ctx, b.client, []string{b.docsKey()}, "gone", `{"id":"gone"}`).Int()
	if err != nil {
		t.Fatalf("running script: %v", err)
	}
	if written != 0 {
		t.Errorf("script wrote %d documents, want 0", written)
	}
	if mr.Exists("test:notifications") {
		t.Error("script created the documents hash for a missing id")
	}
}

func TestDeleteTwiceReportsNotFound(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	n, err := b.Create(ctx, "u1", model.Notification{Title: "once"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := b.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := b.Delete(ctx, n.ID); !errors.Is(err, feed.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
}

func TestSubscribeReplaysThenStreams(t *testing.T) {
	b, _ := newTestBackend(t)
	ctx := context.Background()

	first, err := b.Create(ctx, "u1", model.Notification{Title: "first", Timestamp: 1000})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	sub, err := b.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	ev := nextEvent(t, sub)
	if ev.Kind != feed.EventAdded || ev.ID != first.ID {
		t.Fatalf("replayed event = %v %s, want added %s", ev.Kind, ev.ID, first.ID)
	}

	second, err := b.Create(ctx, "u1", model.Notification{Title: "second", SenderName: strPtr("Ana")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	ev = nextEvent(t, sub)
	if ev.Kind != feed.EventAdded || ev.Notification.Title != "second" {
		t.Fatalf("live event = %v %q, want added second", ev.Kind, ev.Notification.Title)
	}
	if ev.Notification.SenderName == nil || *ev.Notification.SenderName != "Ana" {
		t.Errorf("SenderName = %v, want Ana", ev.Notification.SenderName)
	}
	if ev.Notification.Timestamp != second.Timestamp {
		t.Errorf("Timestamp = %d, want %d", ev.Notification.Timestamp, second.Timestamp)
	}

	if err := b.MarkRead(ctx, second.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	ev = nextEvent(t, sub)
	if ev.Kind != feed.EventModified || !ev.Notification.IsRead {
		t.Fatalf("event = %v read=%v, want modified read", ev.Kind, ev.Notification.IsRead)
	}

	if err := b.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ev = nextEvent(t, sub)
	if ev.Kind != feed.EventRemoved || ev.ID != first.ID {
		t.Fatalf("event = %v %s, want removed %s", ev.Kind, ev.ID, first.ID)
	}
}

func TestSubscriptionCloseEndsStream(t *testing.T) {
	b, _ := newTestBackend(t)

	sub, err := b.Subscribe(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("received event after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed")
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		kind    feed.EventKind
		wantErr bool
	}{
		{"added", `{"kind":"added","id":"a","doc":{"id":"a","title":"t","timestamp":5}}`, feed.EventAdded, false},
		{"modified", `{"kind":"modified","id":"a","doc":{"id":"a","isRead":true}}`, feed.EventModified, false},
		{"removed", `{"kind":"removed","id":"a"}`, feed.EventRemoved, false},
		{"removed without id", `{"kind":"removed"}`, 0, true},
		{"bad doc", `{"kind":"added","id":"a","doc":{"id":"a","type":"party"}}`, 0, true},
		{"unknown kind", `{"kind":"renamed","id":"a"}`, 0, true},
		{"not json", `nope`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := decodeEnvelope([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Errorf("decodeEnvelope(%s) = %v, want error", tt.payload, ev)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeEnvelope(%s): %v", tt.payload, err)
			}
			if ev.Kind != tt.kind || ev.ID != "a" {
				t.Errorf("event = %v %q, want %v %q", ev.Kind, ev.ID, tt.kind, "a")
			}
		})
	}
}

func strPtr(s string) *string { return &s }
