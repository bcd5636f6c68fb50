package feed

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/nhle/campusnotify/internal/model"
)

// Decode builds a Notification from a stored document. The document id is
// required. Type defaults to general but must be a known type when present,
// and a missing timestamp becomes now. Title and message default to empty.
func Decode(doc map[string]any) (model.Notification, error) {
	var n model.Notification

	id, ok := doc["id"].(string)
	if !ok || id == "" {
		return n, fmt.Errorf("document has no id")
	}
	n.ID = id

	if n.Title, ok = optionalString(doc, "title"); !ok {
		return n, fmt.Errorf("document %s: title is not a string", id)
	}
	if n.Message, ok = optionalString(doc, "message"); !ok {
		return n, fmt.Errorf("document %s: message is not a string", id)
	}

	n.Type = model.TypeGeneral
	if raw, present := doc["type"]; present && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return n, fmt.Errorf("document %s: type is not a string", id)
		}
		t, err := model.ParseNotificationType(s)
		if err != nil {
			return n, fmt.Errorf("document %s: %w", id, err)
		}
		n.Type = t
	}

	n.Timestamp = model.NowMillis()
	if raw, present := doc["timestamp"]; present && raw != nil {
		ts, err := toMillis(raw)
		if err != nil {
			return n, fmt.Errorf("document %s: %w", id, err)
		}
		n.Timestamp = ts
	}

	if raw, present := doc["isRead"]; present && raw != nil {
		b, ok := raw.(bool)
		if !ok {
			return n, fmt.Errorf("document %s: isRead is not a bool", id)
		}
		n.IsRead = b
	}

	if s, present := nullableString(doc, "relatedPostId"); present {
		n.RelatedPostID = s
	}
	if s, present := nullableString(doc, "senderName"); present {
		n.SenderName = s
	}

	return n, nil
}

// DecodeAll decodes docs in order and drops every document that does not
// decode, so a batch with malformed entries yields a shorter list.
func DecodeAll(docs []map[string]any) []model.Notification {
	out := make([]model.Notification, 0, len(docs))
	for _, doc := range docs {
		n, err := Decode(doc)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Encode is the inverse of Decode. userID is stored alongside the record
// so backends can filter by owner.
func Encode(userID string, n model.Notification) map[string]any {
	doc := map[string]any{
		"id":        n.ID,
		"userId":    userID,
		"title":     n.Title,
		"message":   n.Message,
		"type":      string(n.Type),
		"timestamp": n.Timestamp,
		"isRead":    n.IsRead,
	}
	if n.RelatedPostID != nil {
		doc["relatedPostId"] = *n.RelatedPostID
	}
	if n.SenderName != nil {
		doc["senderName"] = *n.SenderName
	}
	return doc
}

// optionalString returns "" for an absent or null key, and false when
// the value is present but not a string.
func optionalString(doc map[string]any, key string) (string, bool) {
	raw, present := doc[key]
	if !present || raw == nil {
		return "", true
	}
	s, ok := raw.(string)
	return s, ok
}

// nullableString keeps absent, null and non-string values apart from
// real strings; anything but a string is treated as absent.
func nullableString(doc map[string]any, key string) (*string, bool) {
	s, ok := doc[key].(string)
	if !ok {
		return nil, false
	}
	return &s, true
}

// toMillis accepts the integer shapes a timestamp can take after a JSON
// or driver round trip.
func toMillis(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, fmt.Errorf("timestamp %v is not an integer", v)
		}
		// 2^63 is exactly representable; anything at or past it overflows.
		if v < math.MinInt64 || v >= -math.MinInt64 {
			return 0, fmt.Errorf("timestamp %v is out of range", v)
		}
		return int64(v), nil
	case json.Number:
		ts, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("timestamp %q is not an integer", v.String())
		}
		return ts, nil
	default:
		return 0, fmt.Errorf("timestamp has type %T", raw)
	}
}
