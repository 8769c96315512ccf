package agent

import (
	"context"

	"parley/internal/elicit"
)

// Tool is one callable exposed to the model. Execute receives the raw
// JSON arguments and an ask callback it may use any number of times to
// suspend and gather missing information from the human.
type Tool interface {
	Name() string
	Description() string
	InputSchema() any
	Execute(ctx context.Context, input string, ask elicit.AskFunc) (string, error)
}

type Registry struct {
	tools map[string]Tool
}

func NewToolRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	return out
}
