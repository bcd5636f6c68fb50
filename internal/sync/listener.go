package sync

import (
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/campusnotify/internal/feed"
)

// ListenerState represents the current state of the change stream.
type ListenerState int

const (
	ListenerIdle ListenerState = iota
	ListenerStreaming
	ListenerClosed
)

func (s ListenerState) String() string {
	switch s {
	case ListenerStreaming:
		return "live"
	case ListenerClosed:
		return "disconnected"
	default:
		return "idle"
	}
}

// ListenerStatus holds the state of the attached subscription.
type ListenerStatus struct {
	State     ListenerState
	Received  int
	LastEvent time.Time
}

// EventMsg is a tea.Msg carrying one change event. Gen identifies the
// subscription it came from so events from a replaced one can be ignored.
type EventMsg struct {
	Event feed.Event
	Gen   uint64
}

// ClosedMsg is a tea.Msg sent when a subscription's stream ends.
type ClosedMsg struct {
	Gen uint64
}

// Listener pumps a feed.Subscription into the Bubble Tea runtime one event
// at a time. Only one subscription is attached at once.
type Listener struct {
	mu     gosync.Mutex
	sub    feed.Subscription
	gen    uint64
	status ListenerStatus
}

// NewListener creates a Listener with nothing attached.
func NewListener() *Listener {
	return &Listener{}
}

// Attach replaces the current subscription with sub and returns the
// command that waits for its first event.
func (l *Listener) Attach(sub feed.Subscription) tea.Cmd {
	l.mu.Lock()
	if l.sub != nil {
		l.sub.Close()
	}
	l.sub = sub
	l.gen++
	l.status = ListenerStatus{State: ListenerStreaming}
	l.mu.Unlock()

	return l.WaitForNext()
}

// Stop closes the attached subscription, if any.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sub == nil {
		return
	}
	l.sub.Close()
	l.sub = nil
	l.gen++
	l.status.State = ListenerClosed
}

// Gen returns the generation of the attached subscription.
func (l *Listener) Gen() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// Status returns a copy of the listener status.
func (l *Listener) Status() ListenerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Live reports whether a subscription is attached and still streaming.
func (l *Listener) Live() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub != nil && l.status.State == ListenerStreaming
}

// WaitForNext returns a tea.Cmd that blocks until the next event of the
// attached subscription. It should be called again after each EventMsg
// to keep listening.
func (l *Listener) WaitForNext() tea.Cmd {
	l.mu.Lock()
	sub, gen := l.sub, l.gen
	l.mu.Unlock()

	if sub == nil {
		return nil
	}

	events := sub.Events()
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			l.markClosed(gen)
			return ClosedMsg{Gen: gen}
		}
		l.markReceived(gen)
		return EventMsg{Event: ev, Gen: gen}
	}
}

func (l *Listener) markReceived(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	l.status.Received++
	l.status.LastEvent = time.Now()
}

func (l *Listener) markClosed(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	l.status.State = ListenerClosed
}
