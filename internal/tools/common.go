package tools

import (
	"fmt"
	"time"
)

const maxOutputBytes = 10_000

func truncate(b []byte) string {
	if len(b) > maxOutputBytes {
		return string(b[:maxOutputBytes]) + "\n... (truncated)"
	}
	return string(b)
}

// Participant is one member of the mock team roster.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

var availableParticipants = []Participant{
	{ID: "1", Name: "Alice Chen", Email: "alice@example.com"},
	{ID: "2", Name: "Bob Smith", Email: "bob@example.com"},
	{ID: "3", Name: "Carol White", Email: "carol@example.com"},
	{ID: "4", Name: "David Brown", Email: "david@example.com"},
}

func participantNames() []string {
	names := make([]string, len(availableParticipants))
	for i, p := range availableParticipants {
		names[i] = p.Name
	}
	return names
}

var durationOptions = []string{
	"15 minutes",
	"30 minutes",
	"45 minutes",
	"1 hour",
	"1.5 hours",
	"2 hours",
}

// availableTimeSlots generates up to count human-readable slots over the
// next three days, business hours only.
func availableTimeSlots(now time.Time, count int) []string {
	var slots []string
	for dayOffset := 0; dayOffset < 3; dayOffset++ {
		day := now.AddDate(0, 0, dayOffset)
		for _, hour := range []int{9, 10, 11, 14, 15, 16} {
			slot := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, now.Location())
			if !slot.After(now) {
				continue
			}
			slots = append(slots, fmt.Sprintf("%s %s", slot.Weekday(), slot.Format("03:04 PM")))
			if len(slots) >= count {
				return slots
			}
		}
	}
	return slots
}
