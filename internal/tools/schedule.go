package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parley/internal/elicit"
)

// MeetingResult is the scheduling outcome fed back to the model and the
// stream consumer.
type MeetingResult struct {
	Success       bool     `json:"success"`
	MeetingID     string   `json:"meeting_id,omitempty"`
	Title         string   `json:"title"`
	Participants  []string `json:"participants"`
	Duration      string   `json:"duration"`
	ScheduledTime string   `json:"scheduled_time"`
	Message       string   `json:"message"`
}

// Scheduler books a meeting, asking the user for whatever the model did
// not supply: title as free text, participants as a multi-choice pick
// from the roster, duration and time slot as single choices.
type Scheduler struct {
	now func() time.Time
}

func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Now}
}

func (s *Scheduler) Name() string { return "schedule_meeting" }

func (s *Scheduler) Description() string {
	return "Schedule a meeting with participants. Missing details are gathered from the user directly; pass empty values for anything the user did not specify."
}

func (s *Scheduler) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Meeting title, empty if not specified",
			},
			"participants": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Participant names, empty if not specified",
			},
			"duration": map[string]any{
				"type":        "string",
				"description": "Meeting duration, empty if not specified",
			},
			"preferred_time": map[string]any{
				"type":        "string",
				"description": "Preferred time slot, empty if not specified",
			},
		},
		"required":             []string{"title", "participants", "duration", "preferred_time"},
		"additionalProperties": false,
	}
}

func (s *Scheduler) Execute(ctx context.Context, input string, ask elicit.AskFunc) (string, error) {
	var args struct {
		Title         string   `json:"title"`
		Participants  []string `json:"participants"`
		Duration      string   `json:"duration"`
		PreferredTime string   `json:"preferred_time"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing schedule_meeting input: %w", err)
	}

	if args.Title == "" {
		ans, err := ask(ctx, "What should the meeting be called?", elicit.KindText, nil)
		if err != nil {
			return s.unanswered(err, args.Title, args.Participants, args.Duration, args.PreferredTime)
		}
		args.Title = ans.Text
		if args.Title == "" {
			args.Title = "Untitled Meeting"
		}
	}

	if len(args.Participants) == 0 {
		ans, err := ask(ctx, "Who should attend this meeting?", elicit.KindMultiChoice, participantNames())
		if err != nil {
			return s.unanswered(err, args.Title, args.Participants, args.Duration, args.PreferredTime)
		}
		args.Participants = ans.Selected
	}

	if args.Duration == "" {
		ans, err := ask(ctx, "How long should the meeting be?", elicit.KindSingleChoice, durationOptions)
		if err != nil {
			return s.unanswered(err, args.Title, args.Participants, args.Duration, args.PreferredTime)
		}
		args.Duration = ans.Selected[0]
	}

	if args.PreferredTime == "" {
		slots := availableTimeSlots(s.now(), 6)
		ans, err := ask(ctx, "When would you like to schedule this meeting?", elicit.KindSingleChoice, slots)
		if err != nil {
			return s.unanswered(err, args.Title, args.Participants, args.Duration, args.PreferredTime)
		}
		args.PreferredTime = ans.Selected[0]
	}

	result := MeetingResult{
		Success:       true,
		MeetingID:     "MTG-" + s.now().Format("20060102150405"),
		Title:         args.Title,
		Participants:  args.Participants,
		Duration:      args.Duration,
		ScheduledTime: args.PreferredTime,
		Message: fmt.Sprintf("Meeting %q scheduled successfully for %s with %d participant(s).",
			args.Title, args.PreferredTime, len(args.Participants)),
	}

	slog.Debug("meeting scheduled", "meeting_id", result.MeetingID, "participants", len(result.Participants))
	return marshalResult(result)
}

// unanswered turns an expired elicitation into a distinguishable "no
// answer received" outcome the model can react to. Cancellation aborts
// the tool instead.
func (s *Scheduler) unanswered(err error, title string, participants []string, duration, scheduledTime string) (string, error) {
	if !errors.Is(err, elicit.ErrExpired) {
		return "", err
	}
	if participants == nil {
		participants = []string{}
	}
	return marshalResult(MeetingResult{
		Success:       false,
		Title:         title,
		Participants:  participants,
		Duration:      duration,
		ScheduledTime: scheduledTime,
		Message:       "No answer received from the user; the meeting was not scheduled.",
	})
}

func marshalResult(result MeetingResult) (string, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
