package model

import (
	"time"

	"github.com/google/uuid"
)

// OperationKind identifies the remote mutation a pending operation replays.
type OperationKind string

const (
	OpMarkRead  OperationKind = "markRead"
	OpDismiss   OperationKind = "dismiss"
	OpUndismiss OperationKind = "undismiss"
)

// ReadState records that a user opened a message. It is stored remotely
// under StatusKey(UserID, MessageID).
type ReadState struct {
	UserID    string    `json:"userId"`
	MessageID string    `json:"messageId"`
	Opened    bool      `json:"opened"`
	OpenedAt  time.Time `json:"openedAt"`
}

// Fields encodes the read state as a document field map.
func (r ReadState) Fields() map[string]any {
	return map[string]any{
		"userId":    r.UserID,
		"messageId": r.MessageID,
		"opened":    r.Opened,
		"openedAt":  r.OpenedAt.UTC(),
	}
}

// StatusKey is the composite document key for a user's read state. Writes
// keyed this way overwrite each other, which makes replay idempotent.
func StatusKey(userID, messageID string) string {
	return userID + "_" + messageID
}

// PendingOperation is a mutation waiting for connectivity.
type PendingOperation struct {
	// ID uniquely identifies the queued operation.
	ID string `json:"id"`

	MessageID string        `json:"messageId"`
	UserID    string        `json:"userId"`
	Kind      OperationKind `json:"kind"`

	// EnqueuedAt is when the user performed the action. Replays write this
	// timestamp rather than the replay time.
	EnqueuedAt time.Time `json:"enqueuedAt"`

	// Attempts counts failed replays.
	Attempts int `json:"attempts"`

	// LastError holds the most recent replay failure.
	LastError string `json:"lastError,omitempty"`
}

// NewPendingOperation creates an operation stamped with a fresh ID.
func NewPendingOperation(kind OperationKind, userID, messageID string, at time.Time) PendingOperation {
	return PendingOperation{
		ID:         uuid.New().String(),
		MessageID:  messageID,
		UserID:     userID,
		Kind:       kind,
		EnqueuedAt: at,
	}
}
