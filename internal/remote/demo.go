package remote

import (
	"context"
	"fmt"
	"time"
)

type demoMessage struct {
	id       string
	title    string
	content  string
	priority string
	age      time.Duration
}

var demoMessages = []demoMessage{
	{"1", "Race Start Delayed", "The race start has been delayed by 30 minutes due to weather conditions. Please stay in the starting area for updates.", "critical", 5 * time.Minute},
	{"2", "Water Station Update", "Water station at kilometer 15 is now operational. Additional electrolyte drinks have been added.", "normal", time.Hour},
	{"3", "Parking Information", "Limited parking available at the main venue. Consider using public transportation or carpooling.", "info", 3 * time.Hour},
	{"4", "Course Modification", "Due to construction, the course has been slightly modified between kilometers 8 and 9. Follow the new signage.", "high", 26 * time.Hour},
	{"5", "Welcome to RunAlert!", "Thank you for using RunAlert for your race updates. You will receive important notifications here during the event.", "info", 48 * time.Hour},
	{"6", "Emergency Evacuation Plan", "In case of emergency, follow the instructions of race officials and proceed to the nearest assembly point marked on your race bib.", "critical", 10 * time.Minute},
	{"7", "Post-Race Party", "Join us at the finish line area for live music, food trucks, and awards ceremony starting at 2 PM.", "info", 2 * time.Hour},
}

// SeedDemo fills s with the bundled demo feed and a green race status for
// editionID.
func SeedDemo(ctx context.Context, s Store, messages, raceStatus, editionID string, now time.Time) error {
	for _, m := range demoMessages {
		err := s.Set(ctx, messages, m.id, map[string]any{
			"title":     m.title,
			"content":   m.content,
			"priority":  m.priority,
			"createdAt": now.Add(-m.age).UTC(),
		})
		if err != nil {
			return fmt.Errorf("seeding demo message %s: %w", m.id, err)
		}
	}

	err := s.Set(ctx, raceStatus, editionID, map[string]any{
		"eventEditionId": editionID,
		"status":         "green",
		"title":          "Course open",
		"content":        "All sections of the course are open.",
		"updatedAt":      now.UTC(),
	})
	if err != nil {
		return fmt.Errorf("seeding demo race status: %w", err)
	}
	return nil
}
