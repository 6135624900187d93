package model

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the severity class of a message.
type Priority string

const (
	PriorityInfo         Priority = "info"
	PriorityNormal       Priority = "normal"
	PriorityWarning      Priority = "warning"
	PriorityCritical     Priority = "critical"
	PriorityAnnouncement Priority = "announcement"
)

// Priorities lists every known priority from most to least urgent.
var Priorities = []Priority{
	PriorityCritical,
	PriorityAnnouncement,
	PriorityWarning,
	PriorityNormal,
	PriorityInfo,
}

// ParsePriority normalizes a stored priority string. "general" and "high"
// are accepted as aliases; anything unrecognized is treated as info.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical
	case "announcement":
		return PriorityAnnouncement
	case "warning", "high":
		return PriorityWarning
	case "normal", "general":
		return PriorityNormal
	default:
		return PriorityInfo
	}
}

// Rank orders priorities for alert selection (higher wins):
// critical > announcement > warning > normal = info.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityAnnouncement:
		return 3
	case PriorityWarning:
		return 2
	default:
		return 1
	}
}

// IsImportant reports whether the priority may override a global mute.
func (p Priority) IsImportant() bool {
	return p == PriorityCritical || p == PriorityWarning
}

// IsInformational reports whether a read message of this priority may be
// hidden by the hide-read filter.
func (p Priority) IsInformational() bool {
	return p == PriorityInfo || p == PriorityNormal || p == PriorityAnnouncement
}

// Message is a remote-authored notification in the race feed.
type Message struct {
	// ID is the stable document key.
	ID string `json:"id"`

	Title   string `json:"title"`
	Content string `json:"content"`

	// Priority drives alert volume and mute-override behavior.
	Priority Priority `json:"priority"`

	// CreatedAt is the server creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// MessageFromFields decodes a message document. createdAt may be a
// time.Time, an RFC3339 string, or epoch milliseconds.
func MessageFromFields(id string, fields map[string]any) (Message, error) {
	if id == "" {
		return Message{}, fmt.Errorf("decoding message: empty id")
	}

	m := Message{
		ID:       id,
		Title:    stringField(fields, "title"),
		Content:  stringField(fields, "content"),
		Priority: ParsePriority(stringField(fields, "priority")),
	}

	createdAt, err := TimeField(fields, "createdAt")
	if err != nil {
		return Message{}, fmt.Errorf("decoding message %s: %w", id, err)
	}
	m.CreatedAt = createdAt

	return m, nil
}

// Fields encodes the message as a document field map.
func (m Message) Fields() map[string]any {
	return map[string]any{
		"title":     m.Title,
		"content":   m.Content,
		"priority":  string(m.Priority),
		"createdAt": m.CreatedAt.UTC(),
	}
}

// FeedItem is a message decorated with the current user's state.
type FeedItem struct {
	Message
	Read      bool
	Dismissed bool
}

// TimeField reads a timestamp field. A missing field yields the zero time.
func TimeField(fields map[string]any, key string) (time.Time, error) {
	switch v := fields[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return *v, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing %s: %w", key, err)
		}
		return t, nil
	case int64:
		return time.UnixMilli(v), nil
	case int:
		return time.UnixMilli(int64(v)), nil
	case float64:
		return time.UnixMilli(int64(v)), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported %s type %T", key, v)
	}
}

func stringField(fields map[string]any, key string) string {
	if v, ok := fields[key].(string); ok {
		return v
	}
	return ""
}

func stringSliceField(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
