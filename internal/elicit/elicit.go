// Package elicit correlates questions raised by in-flight tool executions
// with answers that arrive later on an unrelated HTTP request. The tool
// side suspends on a one-shot channel; the intake side completes it.
package elicit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindText         Kind = "text"
	KindNumber       Kind = "number"
	KindBoolean      Kind = "boolean"
	KindSingleChoice Kind = "single_choice"
	KindMultiChoice  Kind = "multi_choice"
)

// IsChoice reports whether answers to this kind are picked from options.
func (k Kind) IsChoice() bool {
	return k == KindSingleChoice || k == KindMultiChoice
}

type State string

const (
	StatePending   State = "pending"
	StateAnswered  State = "answered"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
)

var (
	ErrNotFound        = errors.New("elicitation not found")
	ErrAlreadyResolved = errors.New("elicitation already resolved")
	ErrExpired         = errors.New("elicitation expired")
	ErrCancelled       = errors.New("elicitation cancelled")
)

// Request is one outstanding question raised by a tool.
type Request struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Prompt    string    `json:"prompt"`
	Kind      Kind      `json:"kind"`
	Choices   []string  `json:"choices,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Deadline  time.Time `json:"deadline,omitempty"`
}

// Answer carries the value a human supplied for one elicitation.
//
// On the wire an answer is a single JSON scalar (string, number, boolean)
// or, for choice kinds, an array of selected labels. Selected keeps the
// order the user picked, never the canonical option order.
type Answer struct {
	Text     string   `json:"text,omitempty"`
	Number   float64  `json:"number,omitempty"`
	Bool     bool     `json:"bool,omitempty"`
	Selected []string `json:"selected,omitempty"`
}

// ParseAnswer decodes the wire form of an answer against the kind of the
// question it resolves. A bare string submitted for a choice question is
// treated as a one-element selection.
func ParseAnswer(kind Kind, raw json.RawMessage) (Answer, error) {
	switch kind {
	case KindText:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Answer{}, fmt.Errorf("expected a string answer: %w", err)
		}
		return Answer{Text: s}, nil

	case KindNumber:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return Answer{}, fmt.Errorf("expected a numeric answer: %w", err)
		}
		return Answer{Number: n}, nil

	case KindBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Answer{}, fmt.Errorf("expected a boolean answer: %w", err)
		}
		return Answer{Bool: b}, nil

	case KindSingleChoice, KindMultiChoice:
		var labels []string
		if err := json.Unmarshal(raw, &labels); err != nil {
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				return Answer{}, fmt.Errorf("expected a label or array of labels: %w", err)
			}
			labels = []string{s}
		}
		if len(labels) == 0 {
			return Answer{}, errors.New("expected at least one selected label")
		}
		if kind == KindSingleChoice && len(labels) > 1 {
			return Answer{}, fmt.Errorf("expected exactly one label, got %d", len(labels))
		}
		return Answer{Selected: labels}, nil

	default:
		return Answer{}, fmt.Errorf("unknown elicitation kind %q", kind)
	}
}

// AskFunc is the single operation a tool body calls to ask the user a
// question and block until the answer arrives, the deadline passes
// (ErrExpired) or the session is torn down (ErrCancelled).
type AskFunc func(ctx context.Context, prompt string, kind Kind, choices []string) (Answer, error)

// Recorder observes registry transitions, typically for an audit journal.
// Implementations must not call back into the registry.
type Recorder interface {
	RequestCreated(ctx context.Context, req Request) error
	RequestClosed(ctx context.Context, id string, state State, answer *Answer) error
}
