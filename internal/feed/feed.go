// Package feed defines the contract between the notification synchronizer
// and whatever backend stores notifications: a point-in-time query, a live
// change subscription, and per-id mutations.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/campusnotify/internal/model"
)

// ErrNotFound is returned by MarkRead and Delete for an unknown id.
var ErrNotFound = errors.New("notification not found")

// EventKind tags a change event.
type EventKind int

const (
	EventAdded EventKind = iota
	EventModified
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one change delivered by a subscription. Added and Modified
// carry the full record; Removed only carries ID.
type Event struct {
	Kind         EventKind
	Notification model.Notification
	ID           string
}

// Added builds an EventAdded for n.
func Added(n model.Notification) Event {
	return Event{Kind: EventAdded, Notification: n, ID: n.ID}
}

// Modified builds an EventModified for n.
func Modified(n model.Notification) Event {
	return Event{Kind: EventModified, Notification: n, ID: n.ID}
}

// Removed builds an EventRemoved for id.
func Removed(id string) Event {
	return Event{Kind: EventRemoved, ID: id}
}

// Subscription is a live, non-restartable stream of change events. The
// Events channel is closed after Close or when the backend gives up.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Backend is a notification store scoped by user id.
type Backend interface {
	// List returns every notification for userID, newest first.
	List(ctx context.Context, userID string) ([]model.Notification, error)

	// Subscribe opens a change stream for userID. The stream first
	// replays the current snapshot as Added events, newest first.
	Subscribe(ctx context.Context, userID string) (Subscription, error)

	// MarkRead sets isRead on a single record.
	MarkRead(ctx context.Context, id string) error

	// Delete removes a single record.
	Delete(ctx context.Context, id string) error

	// Create stores n for userID, assigning ID (and Timestamp when zero),
	// and returns the stored record.
	Create(ctx context.Context, userID string, n model.Notification) (model.Notification, error)
}
