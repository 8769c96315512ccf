package stream

import "encoding/json"

type EventType string

const (
	EventTextDelta            EventType = "text_delta"
	EventToolStarted          EventType = "tool_started"
	EventToolFinished         EventType = "tool_finished"
	EventElicitationRequested EventType = "elicitation_requested"
	EventStreamEnd            EventType = "stream_end"
)

// Event is the tagged union carried to the stream consumer. Only the
// fields belonging to the variant named by Type are set.
type Event struct {
	Type EventType `json:"type"`

	// text_delta
	Text string `json:"text,omitempty"`

	// tool_started / tool_finished
	CallID string          `json:"call_id,omitempty"`
	Name   string          `json:"name,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`

	// elicitation_requested
	ElicitationID string   `json:"elicitation_id,omitempty"`
	Prompt        string   `json:"prompt,omitempty"`
	Kind          string   `json:"kind,omitempty"`
	Choices       []string `json:"choices,omitempty"`

	// tool_finished / stream_end
	Error string `json:"error,omitempty"`
}

func TextDelta(text string) Event {
	return Event{Type: EventTextDelta, Text: text}
}

func ToolStarted(callID, name string, args json.RawMessage) Event {
	return Event{Type: EventToolStarted, CallID: callID, Name: name, Args: args}
}

func ToolFinished(callID, name string, result json.RawMessage, errMsg string) Event {
	return Event{Type: EventToolFinished, CallID: callID, Name: name, Result: result, Error: errMsg}
}

func ElicitationRequested(id, prompt, kind string, choices []string) Event {
	return Event{Type: EventElicitationRequested, ElicitationID: id, Prompt: prompt, Kind: kind, Choices: choices}
}
