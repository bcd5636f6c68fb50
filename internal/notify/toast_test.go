package notify

import (
	"testing"
	"time"

	"github.com/nhle/campusnotify/tests/testutil"
)

func TestToastExpires(t *testing.T) {
	t.Parallel()

	toast, cmd := NewToast(5 * time.Millisecond).Show(testutil.Notification("a", "a", 1, false))
	if !toast.Visible() {
		t.Fatal("toast not visible after Show")
	}

	msg, ok := cmd().(toastExpiredMsg)
	if !ok {
		t.Fatalf("timer produced %T, want toastExpiredMsg", msg)
	}
	toast, cleared := toast.expire(msg)
	if !cleared || toast.Visible() {
		t.Error("toast still visible after its timer fired")
	}
}

func TestToastNewArrivalRestartsTimer(t *testing.T) {
	t.Parallel()

	toast := NewToast(5 * time.Millisecond)
	toast, first := toast.Show(testutil.Notification("a", "a", 1, false))
	toast, second := toast.Show(testutil.Notification("b", "b", 2, false))

	current, _ := toast.Current()
	if current.ID != "b" {
		t.Fatalf("Current().ID = %q, want %q", current.ID, "b")
	}

	toast, cleared := toast.expire(first().(toastExpiredMsg))
	if cleared {
		t.Error("timer of the replaced toast cleared the new one")
	}
	if current, ok := toast.Current(); !ok || current.ID != "b" {
		t.Errorf("Current() = %q, %v, want b, true", current.ID, ok)
	}

	toast, cleared = toast.expire(second().(toastExpiredMsg))
	if !cleared || toast.Visible() {
		t.Error("new toast not cleared by its own timer")
	}
}

func TestToastDismissCancelsTimer(t *testing.T) {
	t.Parallel()

	toast, cmd := NewToast(5 * time.Millisecond).Show(testutil.Notification("a", "a", 1, false))
	toast = toast.Dismiss()
	if toast.Visible() {
		t.Fatal("toast visible after Dismiss")
	}

	toast, second := toast.Show(testutil.Notification("b", "b", 2, false))
	_ = second
	if _, cleared := toast.expire(cmd().(toastExpiredMsg)); cleared {
		t.Error("timer from before Dismiss cleared a later toast")
	}
}

func TestNewToastDefaultDuration(t *testing.T) {
	t.Parallel()

	if got := NewToast(0).Duration(); got != DefaultToastDuration {
		t.Errorf("Duration() = %v, want %v", got, DefaultToastDuration)
	}
}
