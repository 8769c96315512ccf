package llm

import (
	"context"

	"github.com/openai/openai-go/v3/responses"
)

// Provider streams one model turn, pushing text deltas through onToken as
// they arrive and returning the completed response.
type Provider interface {
	ChatStream(ctx context.Context, input []responses.ResponseInputItemUnionParam, tools []responses.ToolUnionParam, onToken func(string)) (*responses.Response, error)
}
