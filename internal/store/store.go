package store

import (
	gosync "sync"

	"github.com/nhle/campusnotify/internal/feed"
)

// hubBuffer is the per-subscriber channel capacity.
const hubBuffer = 64

// Hub fans change events out to in-process subscribers grouped by user.
type Hub struct {
	mu          gosync.Mutex
	subscribers map[string]map[chan feed.Event]struct{}
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan feed.Event]struct{})}
}

// Subscribe registers a channel for userID. The returned function
// unregisters and closes it; it is safe to call more than once.
func (h *Hub) Subscribe(userID string) (<-chan feed.Event, func()) {
	ch := make(chan feed.Event, hubBuffer)

	h.mu.Lock()
	set, ok := h.subscribers[userID]
	if !ok {
		set = make(map[chan feed.Event]struct{})
		h.subscribers[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.remove(userID, set, ch)
	}
	return ch, unsubscribe
}

// remove unregisters and closes ch if it is still registered. Callers
// hold h.mu.
func (h *Hub) remove(userID string, set map[chan feed.Event]struct{}, ch chan feed.Event) {
	if _, ok := set[ch]; !ok {
		return
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(h.subscribers, userID)
	}
}

// Publish sends ev to every subscriber of userID. A subscriber whose
// buffer is full has fallen behind: it is unregistered and its channel
// closed, so the consumer sees the stream end instead of a silent gap.
// Publish reports how many subscribers were evicted.
func (h *Hub) Publish(userID string, ev feed.Event) (evicted int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subscribers[userID]
	for ch := range set {
		select {
		case ch <- ev:
		default:
			h.remove(userID, set, ch)
			evicted++
		}
	}
	return evicted
}

// subscription replays a snapshot and then forwards live hub events.
type subscription struct {
	out         chan feed.Event
	done        chan struct{}
	unsubscribe func()
	closeOnce   gosync.Once
}

func newSubscription(snapshot []feed.Event, live <-chan feed.Event, unsubscribe func()) *subscription {
	s := &subscription{
		out:         make(chan feed.Event),
		done:        make(chan struct{}),
		unsubscribe: unsubscribe,
	}
	go s.run(snapshot, live)
	return s
}

func (s *subscription) run(snapshot []feed.Event, live <-chan feed.Event) {
	defer close(s.out)

	for _, ev := range snapshot {
		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}

	for {
		select {
		case ev, ok := <-live:
			if !ok {
				return
			}
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

// Events returns the event stream.
func (s *subscription) Events() <-chan feed.Event {
	return s.out
}

// Close stops the stream and releases the hub registration.
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.unsubscribe()
	})
	return nil
}
