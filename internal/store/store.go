package store

import "errors"

// Well-known cache keys.
const (
	KeySeenMessages        = "ra_seenMessageIds"
	KeyPendingOperations   = "ra_pendingReadOperations"
	KeyFailedOperations    = "ra_failedOperations"
	KeyReadMessages        = "ra_readMessages"
	KeyMuted               = "runalert-muted"
	KeyAlwaysPlayImportant = "runalert-always-play-important"
	KeyPendingSounds       = "runalert-pending-sounds"
	KeyWelcomed            = "runalert-welcomed"
	keyFilterOptions       = "ra_filterOptions"
)

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache is closed")

// FilterOptionsKey returns the per-user filter preference key.
func FilterOptionsKey(userID string) string {
	if userID == "" {
		return keyFilterOptions
	}
	return keyFilterOptions + ":" + userID
}

// Cache is a durable key/value store. Calls are synchronous and each write
// is atomic: readers never observe a partial value.
type Cache interface {
	// Get returns the stored value and whether the key exists.
	Get(key string) (string, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}
