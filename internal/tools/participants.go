package tools

import (
	"context"
	"encoding/json"

	"parley/internal/elicit"
)

// Participants lists the team members available for meetings. It never
// elicits; it exists so the model can present the roster unprompted.
type Participants struct{}

func NewParticipants() *Participants { return &Participants{} }

func (p *Participants) Name() string { return "list_participants" }

func (p *Participants) Description() string {
	return "List all available participants for meetings"
}

func (p *Participants) InputSchema() any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"required":             []string{},
		"additionalProperties": false,
	}
}

func (p *Participants) Execute(ctx context.Context, input string, ask elicit.AskFunc) (string, error) {
	b, err := json.Marshal(availableParticipants)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
