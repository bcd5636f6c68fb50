package notify

import "github.com/nhle/campusnotify/internal/model"

// Store is the ordered notification collection for the signed-in user.
// Records are unique by id and kept in delivery order. Mutations never
// write into a slice that a previous copy of the Store can still see.
type Store struct {
	items []model.Notification
}

// Items returns the records in display order.
func (s Store) Items() []model.Notification {
	out := make([]model.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of records.
func (s Store) Len() int {
	return len(s.items)
}

// UnreadCount counts records with IsRead false.
func (s Store) UnreadCount() int {
	n := 0
	for _, item := range s.items {
		if !item.IsRead {
			n++
		}
	}
	return n
}

// Get returns the record with id.
func (s Store) Get(id string) (model.Notification, bool) {
	if i := s.index(id); i >= 0 {
		return s.items[i], true
	}
	return model.Notification{}, false
}

// Contains reports whether a record with id is present.
func (s Store) Contains(id string) bool {
	return s.index(id) >= 0
}

// UnreadIDs returns the ids of unread records in display order.
func (s Store) UnreadIDs() []string {
	var ids []string
	for _, item := range s.items {
		if !item.IsRead {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// Replace swaps the whole collection for items, keeping their order and
// the first occurrence of any repeated id.
func (s Store) Replace(items []model.Notification) Store {
	seen := make(map[string]struct{}, len(items))
	out := make([]model.Notification, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return Store{items: out}
}

// Prepend puts n in front unless its id is already present. The second
// result reports whether the store changed.
func (s Store) Prepend(n model.Notification) (Store, bool) {
	if s.Contains(n.ID) {
		return s, false
	}
	out := make([]model.Notification, 0, len(s.items)+1)
	out = append(out, n)
	out = append(out, s.items...)
	return Store{items: out}, true
}

// Update replaces the record sharing n's id in place.
func (s Store) Update(n model.Notification) (Store, bool) {
	i := s.index(n.ID)
	if i < 0 {
		return s, false
	}
	out := s.Items()
	out[i] = n
	return Store{items: out}, true
}

// SetRead marks the record with id as read, leaving other fields alone.
func (s Store) SetRead(id string) (Store, bool) {
	i := s.index(id)
	if i < 0 || s.items[i].IsRead {
		return s, false
	}
	out := s.Items()
	out[i].IsRead = true
	return Store{items: out}, true
}

// MarkAllRead marks every record read and returns the ids that flipped.
func (s Store) MarkAllRead() (Store, []string) {
	ids := s.UnreadIDs()
	if len(ids) == 0 {
		return s, nil
	}
	out := s.Items()
	for i := range out {
		out[i].IsRead = true
	}
	return Store{items: out}, ids
}

// Remove drops the record with id.
func (s Store) Remove(id string) (Store, bool) {
	i := s.index(id)
	if i < 0 {
		return s, false
	}
	out := make([]model.Notification, 0, len(s.items)-1)
	out = append(out, s.items[:i]...)
	out = append(out, s.items[i+1:]...)
	return Store{items: out}, true
}

func (s Store) index(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}
