package model

import "time"

// Race flag states.
const (
	RaceGreen  = "green"
	RaceYellow = "yellow"
	RaceRed    = "red"
)

// RaceStatus is the latest course status for an event edition.
type RaceStatus struct {
	EventEditionID string    `json:"eventEditionId"`
	Status         string    `json:"status"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Title          string    `json:"title,omitempty"`
	Content        string    `json:"content,omitempty"`
}

// RaceStatusFromFields decodes a race status document. A missing
// updatedAt falls back to now.
func RaceStatusFromFields(fields map[string]any, now time.Time) RaceStatus {
	updatedAt, err := TimeField(fields, "updatedAt")
	if err != nil || updatedAt.IsZero() {
		updatedAt = now
	}
	return RaceStatus{
		EventEditionID: stringField(fields, "eventEditionId"),
		Status:         stringField(fields, "status"),
		UpdatedAt:      updatedAt,
		Title:          stringField(fields, "title"),
		Content:        stringField(fields, "content"),
	}
}
