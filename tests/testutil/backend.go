package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/nhle/campusnotify/internal/feed"
	"github.com/nhle/campusnotify/internal/model"
	"github.com/nhle/campusnotify/internal/session"
)

// FakeBackend is an in-memory feed.Backend whose failures are programmable
// and whose subscription is driven by the test through Emit.
type FakeBackend struct {
	mu      sync.Mutex
	records map[string]model.Notification
	owners  map[string]string
	nextID  int

	// ListErr, SubscribeErr and CreateErr fail the matching call.
	ListErr      error
	SubscribeErr error
	CreateErr    error

	// FailMarkRead and FailDelete fail calls for the listed ids.
	FailMarkRead map[string]error
	FailDelete   map[string]error

	// Calls records each method invocation as "Method:arg".
	Calls []string

	subs []*FakeSubscription
}

var _ feed.Backend = (*FakeBackend)(nil)

// NewFakeBackend returns an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		records:      make(map[string]model.Notification),
		owners:       make(map[string]string),
		FailMarkRead: make(map[string]error),
		FailDelete:   make(map[string]error),
	}
}

// Seed stores n for userID without emitting anything.
func (f *FakeBackend) Seed(userID string, n model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[n.ID] = n
	f.owners[n.ID] = userID
}

// Get returns the stored record for id.
func (f *FakeBackend) Get(id string) (model.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	return n, ok
}

// CallCount returns how many recorded calls equal call.
func (f *FakeBackend) CallCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, c := range f.Calls {
		if c == call {
			count++
		}
	}
	return count
}

// LastSubscription returns the most recent subscription, or nil.
func (f *FakeBackend) LastSubscription() *FakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

func (f *FakeBackend) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *FakeBackend) List(_ context.Context, userID string) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("List:" + userID)
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return f.listLocked(userID), nil
}

func (f *FakeBackend) listLocked(userID string) []model.Notification {
	out := []model.Notification{}
	for id, n := range f.records {
		if f.owners[id] == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	return out
}

// Subscribe returns a FakeSubscription preloaded with the snapshot.
func (f *FakeBackend) Subscribe(_ context.Context, userID string) (feed.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Subscribe:" + userID)
	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}

	snapshot := f.listLocked(userID)
	sub := &FakeSubscription{ch: make(chan feed.Event, len(snapshot)+64)}
	for _, n := range snapshot {
		sub.ch <- feed.Added(n)
	}
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *FakeBackend) MarkRead(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MarkRead:" + id)
	if err := f.FailMarkRead[id]; err != nil {
		return err
	}
	n, ok := f.records[id]
	if !ok {
		return fmt.Errorf("marking %s: %w", id, feed.ErrNotFound)
	}
	n.IsRead = true
	f.records[id] = n
	return nil
}

func (f *FakeBackend) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Delete:" + id)
	if err := f.FailDelete[id]; err != nil {
		return err
	}
	if _, ok := f.records[id]; !ok {
		return fmt.Errorf("deleting %s: %w", id, feed.ErrNotFound)
	}
	delete(f.records, id)
	delete(f.owners, id)
	return nil
}

func (f *FakeBackend) Create(_ context.Context, userID string, n model.Notification) (model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Create:" + userID)
	if f.CreateErr != nil {
		return model.Notification{}, f.CreateErr
	}
	f.nextID++
	n.ID = fmt.Sprintf("fake-%d", f.nextID)
	if n.Timestamp == 0 {
		n.Timestamp = model.NowMillis()
	}
	if n.Type == "" {
		n.Type = model.TypeGeneral
	}
	f.records[n.ID] = n
	f.owners[n.ID] = userID
	return n, nil
}

// FakeSubscription is a buffered subscription the test feeds with Emit.
type FakeSubscription struct {
	mu     sync.Mutex
	ch     chan feed.Event
	closed bool
}

// Emit delivers ev unless the subscription is closed.
func (s *FakeSubscription) Emit(ev feed.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.ch <- ev
	}
}

// Closed reports whether Close was called.
func (s *FakeSubscription) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *FakeSubscription) Events() <-chan feed.Event {
	return s.ch
}

func (s *FakeSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Notification builds a test record.
func Notification(id, title string, ts int64, read bool) model.Notification {
	return model.Notification{
		ID:        id,
		Title:     title,
		Message:   title + " body",
		Type:      model.TypeGeneral,
		Timestamp: ts,
		IsRead:    read,
	}
}

// TestSession returns a signed-in session for userID.
func TestSession(userID string) session.Session {
	return session.Session{UserID: userID, Email: userID + "@campus.edu"}
}

// IssueToken signs a non-expiring token for userID with secret.
func IssueToken(t *testing.T, secret, userID string) string {
	t.Helper()
	token, err := session.NewManager(secret).Issue(userID, userID+"@campus.edu", 0)
	if err != nil {
		t.Fatalf("issuing token: %v", err)
	}
	return token
}
