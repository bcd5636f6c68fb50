package notify

import (
	"testing"

	"github.com/nhle/campusnotify/internal/model"
	"github.com/nhle/campusnotify/tests/testutil"
)

func ids(items []model.Notification) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.ID
	}
	return out
}

func equalIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestStoreReplaceKeepsOrderAndDropsDuplicates(t *testing.T) {
	t.Parallel()

	s := Store{}.Replace([]model.Notification{
		testutil.Notification("c", "c", 300, false),
		testutil.Notification("b", "b", 200, true),
		testutil.Notification("c", "dup", 100, true),
		testutil.Notification("a", "a", 100, false),
	})

	if got, want := ids(s.Items()), []string{"c", "b", "a"}; !equalIDs(got, want) {
		t.Errorf("Items() = %v, want %v", got, want)
	}
	if got, _ := s.Get("c"); got.Title != "c" {
		t.Errorf("kept duplicate %q, want first occurrence", got.Title)
	}
	if s.UnreadCount() != 2 {
		t.Errorf("UnreadCount() = %d, want 2", s.UnreadCount())
	}
}

func TestStorePrependIsIdempotent(t *testing.T) {
	t.Parallel()

	s := Store{}.Replace([]model.Notification{testutil.Notification("a", "a", 100, false)})

	s, changed := s.Prepend(testutil.Notification("b", "b", 200, false))
	if !changed {
		t.Fatal("Prepend(b) reported no change")
	}
	s, changed = s.Prepend(testutil.Notification("a", "again", 500, true))
	if changed {
		t.Error("Prepend of existing id reported a change")
	}

	if got, want := ids(s.Items()), []string{"b", "a"}; !equalIDs(got, want) {
		t.Errorf("Items() = %v, want %v", got, want)
	}
	if got, _ := s.Get("a"); got.Title != "a" || got.IsRead {
		t.Errorf("existing record was modified: %+v", got)
	}
}

func TestStoreMutationsDoNotAlias(t *testing.T) {
	t.Parallel()

	before := Store{}.Replace([]model.Notification{
		testutil.Notification("a", "a", 200, false),
		testutil.Notification("b", "b", 100, false),
	})

	after, changed := before.SetRead("a")
	if !changed {
		t.Fatal("SetRead(a) reported no change")
	}
	if got, _ := before.Get("a"); got.IsRead {
		t.Error("SetRead modified the previous store")
	}
	if got, _ := after.Get("a"); !got.IsRead {
		t.Error("SetRead did not mark a read")
	}

	all, flipped := before.MarkAllRead()
	if !equalIDs(flipped, []string{"a", "b"}) {
		t.Errorf("MarkAllRead flipped %v, want [a b]", flipped)
	}
	if before.UnreadCount() != 2 || all.UnreadCount() != 0 {
		t.Errorf("unread before=%d after=%d, want 2 and 0", before.UnreadCount(), all.UnreadCount())
	}
}

func TestStoreSetReadPreservesFields(t *testing.T) {
	t.Parallel()

	post := "post-1"
	n := testutil.Notification("a", "Liked your post", 100, false)
	n.Type = model.TypeMarketplace
	n.RelatedPostID = &post

	s, _ := Store{}.Replace([]model.Notification{n}).SetRead("a")
	got, _ := s.Get("a")
	want := n
	want.IsRead = true
	if got.Title != want.Title || got.Message != want.Message || got.Type != want.Type ||
		got.Timestamp != want.Timestamp || got.RelatedPostID != want.RelatedPostID || !got.IsRead {
		t.Errorf("SetRead result = %+v, want %+v", got, want)
	}

	if _, changed := s.SetRead("a"); changed {
		t.Error("SetRead on read record reported a change")
	}
	if _, changed := s.SetRead("missing"); changed {
		t.Error("SetRead on missing id reported a change")
	}
}

func TestStoreUpdateAndRemove(t *testing.T) {
	t.Parallel()

	s := Store{}.Replace([]model.Notification{
		testutil.Notification("a", "a", 300, false),
		testutil.Notification("b", "b", 200, false),
		testutil.Notification("c", "c", 100, true),
	})

	s, changed := s.Update(testutil.Notification("b", "edited", 200, true))
	if !changed {
		t.Fatal("Update(b) reported no change")
	}
	if got, want := ids(s.Items()), []string{"a", "b", "c"}; !equalIDs(got, want) {
		t.Errorf("order after Update = %v, want %v", got, want)
	}
	if got, _ := s.Get("b"); got.Title != "edited" {
		t.Errorf("Title = %q, want %q", got.Title, "edited")
	}
	if _, changed := s.Update(testutil.Notification("z", "z", 1, false)); changed {
		t.Error("Update of missing id reported a change")
	}

	s, changed = s.Remove("a")
	if !changed {
		t.Fatal("Remove(a) reported no change")
	}
	if got, want := ids(s.Items()), []string{"b", "c"}; !equalIDs(got, want) {
		t.Errorf("Items() after Remove = %v, want %v", got, want)
	}
	if _, changed := s.Remove("a"); changed {
		t.Error("second Remove(a) reported a change")
	}
	if s.UnreadCount() != 0 {
		t.Errorf("UnreadCount() = %d, want 0", s.UnreadCount())
	}
}
