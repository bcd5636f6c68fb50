package notify

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/campusnotify/internal/model"
)

// DefaultToastDuration is how long a toast stays visible.
const DefaultToastDuration = 4 * time.Second

// toastExpiredMsg fires when a toast's timer runs out. Gen ties it to the
// Show call that started the timer.
type toastExpiredMsg struct {
	gen uint64
}

// Toast is a single display slot that clears itself after a fixed
// duration. Every Show or Dismiss bumps the generation, which invalidates
// the timer of whatever was shown before.
type Toast struct {
	current  *model.Notification
	gen      uint64
	duration time.Duration
}

// NewToast returns an empty slot with the given display duration.
func NewToast(d time.Duration) Toast {
	if d <= 0 {
		d = DefaultToastDuration
	}
	return Toast{duration: d}
}

// Show puts n in the slot, overwriting anything displayed, and returns the
// command for a fresh expiry timer.
func (t Toast) Show(n model.Notification) (Toast, tea.Cmd) {
	t.gen++
	t.current = &n
	gen := t.gen
	return t, tea.Tick(t.duration, func(time.Time) tea.Msg {
		return toastExpiredMsg{gen: gen}
	})
}

// Dismiss clears the slot and cancels the pending timer.
func (t Toast) Dismiss() Toast {
	t.gen++
	t.current = nil
	return t
}

// expire clears the slot if msg belongs to the toast currently shown.
func (t Toast) expire(msg toastExpiredMsg) (Toast, bool) {
	if t.current == nil || msg.gen != t.gen {
		return t, false
	}
	t.current = nil
	return t, true
}

// Current returns the displayed notification.
func (t Toast) Current() (model.Notification, bool) {
	if t.current == nil {
		return model.Notification{}, false
	}
	return *t.current, true
}

// Visible reports whether the slot holds a notification.
func (t Toast) Visible() bool {
	return t.current != nil
}

// Duration returns the display duration.
func (t Toast) Duration() time.Duration {
	return t.duration
}
