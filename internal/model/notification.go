package model

import (
	"fmt"
	"strings"
	"time"
)

// NotificationType is the category of a notification. It only drives the
// icon and color a notification is rendered with.
type NotificationType string

const (
	TypeMarketplace  NotificationType = "marketplace"
	TypeLostAndFound NotificationType = "lost_and_found"
	TypeSafety       NotificationType = "safety"
	TypeMessage      NotificationType = "message"
	TypeGeneral      NotificationType = "general"
)

// NotificationTypes lists the closed set of types in display order.
var NotificationTypes = []NotificationType{
	TypeMarketplace,
	TypeLostAndFound,
	TypeSafety,
	TypeMessage,
	TypeGeneral,
}

// ParseNotificationType resolves a stored type name case-insensitively,
// so both "lost_and_found" and "LOST_AND_FOUND" are accepted.
func ParseNotificationType(s string) (NotificationType, error) {
	want := NotificationType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range NotificationTypes {
		if t == want {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown notification type %q", s)
}

// Label returns the human-readable category name.
func (t NotificationType) Label() string {
	switch t {
	case TypeMarketplace:
		return "Marketplace"
	case TypeLostAndFound:
		return "Lost & Found"
	case TypeSafety:
		return "Safety"
	case TypeMessage:
		return "Message"
	default:
		return "General"
	}
}

// Notification is a single notification addressed to the signed-in user.
type Notification struct {
	// ID is assigned by the backend on creation and never changes.
	ID string `json:"id"`

	// Title is a short human-readable headline.
	Title string `json:"title"`

	// Message is the notification body.
	Message string `json:"message"`

	// Type selects icon and color.
	Type NotificationType `json:"type"`

	// Timestamp is milliseconds since the Unix epoch, set at creation.
	// It is the only sort key.
	Timestamp int64 `json:"timestamp"`

	// IsRead flips from false to true when the user opens the
	// notification or marks everything read.
	IsRead bool `json:"isRead"`

	// RelatedPostID optionally points at a post. It is not validated.
	RelatedPostID *string `json:"relatedPostId,omitempty"`

	// SenderName is an optional display name of whoever caused it.
	SenderName *string `json:"senderName,omitempty"`
}

// CreatedAt converts Timestamp into a time.Time.
func (n Notification) CreatedAt() time.Time {
	return time.UnixMilli(n.Timestamp)
}

// NowMillis returns the current time in epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
