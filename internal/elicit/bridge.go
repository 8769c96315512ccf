package elicit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"parley/internal/stream"
)

// Bridge is the side of the registry handed to tool executions. Ask
// registers the question, pushes an elicitation_requested event onto the
// session stream and parks the goroutine until the answer shows up.
type Bridge struct {
	sessionID string
	registry  *Registry
	mux       *stream.Mux
	timeout   time.Duration
}

// NewBridge binds a bridge to one session's registry entries and output
// stream. A zero timeout means questions never expire on their own.
func NewBridge(sessionID string, registry *Registry, mux *stream.Mux, timeout time.Duration) *Bridge {
	return &Bridge{sessionID: sessionID, registry: registry, mux: mux, timeout: timeout}
}

// Ask implements AskFunc for this bridge's session.
func (b *Bridge) Ask(ctx context.Context, prompt string, kind Kind, choices []string) (Answer, error) {
	if kind.IsChoice() && len(choices) == 0 {
		return Answer{}, fmt.Errorf("%s elicitation %q needs at least one choice", kind, prompt)
	}
	if !kind.IsChoice() && len(choices) > 0 {
		return Answer{}, fmt.Errorf("%s elicitation %q cannot carry choices", kind, prompt)
	}

	var deadline time.Time
	if b.timeout > 0 {
		deadline = time.Now().Add(b.timeout)
	}

	req, err := b.registry.Register(b.sessionID, prompt, kind, choices, deadline)
	if err != nil {
		return Answer{}, err
	}

	if err := b.mux.Emit(stream.ElicitationRequested(req.ID, prompt, string(kind), choices)); err != nil {
		// Nobody can ever see the question; release the slot instead of
		// waiting out the deadline.
		b.registry.Cancel(req.ID)
		return Answer{}, fmt.Errorf("emitting elicitation request: %w", ErrCancelled)
	}

	ans, err := b.registry.Await(ctx, req.ID)
	if errors.Is(err, ErrNotFound) {
		// The session was torn down between register and await and the
		// registry already forgot the entry.
		return Answer{}, ErrCancelled
	}
	return ans, err
}
