package model

// User is the signed-in identity together with its profile state.
type User struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`

	// DismissedMessageIDs mirrors the dismissedMessages set on the
	// remote profile document.
	DismissedMessageIDs []string `json:"dismissedMessages,omitempty"`
}

// UserFromFields decodes a profile document.
func UserFromFields(uid string, fields map[string]any) User {
	return User{
		UID:                 uid,
		Email:               stringField(fields, "email"),
		DisplayName:         stringField(fields, "displayName"),
		DismissedMessageIDs: stringSliceField(fields, "dismissedMessages"),
	}
}

// HasDismissed reports whether the message is in the dismissed set.
func (u *User) HasDismissed(messageID string) bool {
	if u == nil {
		return false
	}
	for _, id := range u.DismissedMessageIDs {
		if id == messageID {
			return true
		}
	}
	return false
}
