package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/responses"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"parley/internal/elicit"
	"parley/internal/llm"
	"parley/internal/stream"
	"parley/internal/trace"
)

const defaultSystemPrompt = "You are a meeting scheduling assistant. " +
	"When the user wants to schedule a meeting, IMMEDIATELY call the schedule_meeting tool. " +
	"Do NOT ask the user for details - the tool will gather missing information itself. " +
	"Always call the tool first, never ask clarifying questions yourself."

// Message is one role-tagged record of the inbound conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Runner drives one conversational turn, producing events into mux until
// the stream ends. Implementations must end the stream on every exit path.
type Runner interface {
	Run(ctx context.Context, sessionID string, history []Message, mux *stream.Mux) error
}

type Option func(*Orchestrator)

func WithSystemPrompt(s string) Option {
	return func(o *Orchestrator) { o.systemPrompt = s }
}

// WithAskTimeout bounds how long a tool waits for a human answer.
func WithAskTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.askTimeout = d }
}

// Orchestrator runs the model/tool loop for a session turn: stream model
// output, execute requested tools (which may suspend on elicitations),
// feed results back, repeat until the model stops calling tools.
type Orchestrator struct {
	provider     llm.Provider
	tools        *Registry
	elicits      *elicit.Registry
	schemas      []responses.ToolUnionParam
	systemPrompt string
	askTimeout   time.Duration
}

func NewOrchestrator(provider llm.Provider, tools *Registry, elicits *elicit.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:     provider,
		tools:        tools,
		elicits:      elicits,
		systemPrompt: defaultSystemPrompt,
		askTimeout:   5 * time.Minute,
	}

	for _, opt := range opts {
		opt(o)
	}

	for _, t := range tools.All() {
		schema, _ := t.InputSchema().(map[string]any)
		o.schemas = append(o.schemas, responses.ToolUnionParam{
			OfFunction: &responses.FunctionToolParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters:  schema,
				Strict:      openai.Bool(true),
			},
		})
	}

	return o
}

// Run executes one turn. Whatever happens, the session's pending
// elicitations are cancelled and mux receives its single stream_end.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, history []Message, mux *stream.Mux) (err error) {
	o.elicits.StartSession(sessionID)
	defer func() {
		o.elicits.EndSession(sessionID)
		mux.End(err)
	}()

	ctx, span := trace.Tracer().Start(ctx, "orchestrator.run",
		oteltrace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	input := []responses.ResponseInputItemUnionParam{
		responses.ResponseInputItemParamOfMessage(o.systemPrompt, "developer"),
	}
	for _, msg := range history {
		switch msg.Role {
		case "assistant":
			input = append(input, responses.ResponseInputItemParamOfMessage(msg.Content, "assistant"))
		default:
			input = append(input, responses.ResponseInputItemParamOfMessage(msg.Content, "user"))
		}
	}

	bridge := elicit.NewBridge(sessionID, o.elicits, mux, o.askTimeout)

	if err = o.loop(ctx, input, bridge.Ask, mux); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// loop is one model/tool cycle per iteration. It exits when the model
// returns no tool calls, the context is cancelled, or the stream dies.
func (o *Orchestrator) loop(ctx context.Context, input []responses.ResponseInputItemUnionParam, ask elicit.AskFunc, mux *stream.Mux) error {
	iteration := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		llmCtx, llmSpan := trace.Tracer().Start(ctx, "llm.turn",
			oteltrace.WithAttributes(attribute.Int("llm.iteration", iteration)),
		)
		llmCtx, cancelStream := context.WithCancel(llmCtx)

		var (
			text    strings.Builder
			emitErr error
		)
		resp, err := o.provider.ChatStream(llmCtx, input, o.schemas, func(token string) {
			text.WriteString(token)
			if emitErr != nil {
				return
			}
			if eerr := mux.Emit(stream.TextDelta(token)); eerr != nil {
				emitErr = eerr
				cancelStream()
			}
		})
		cancelStream()
		if emitErr != nil {
			llmSpan.End()
			return emitErr
		}
		if err != nil {
			llmSpan.RecordError(err)
			llmSpan.SetStatus(codes.Error, err.Error())
			llmSpan.End()
			return err
		}

		llmSpan.SetAttributes(
			attribute.String("llm.model", string(resp.Model)),
			attribute.Int64("llm.input_tokens", resp.Usage.InputTokens),
			attribute.Int64("llm.output_tokens", resp.Usage.OutputTokens),
		)
		llmSpan.End()
		iteration++

		// Feed the assistant's own output back into context for the
		// next iteration.
		if text.Len() > 0 {
			input = append(input, responses.ResponseInputItemParamOfMessage(text.String(), "assistant"))
		}

		var calls []responses.ResponseOutputItemUnion
		for _, item := range resp.Output {
			if item.Type == "function_call" {
				calls = append(calls, item)
				input = append(input, responses.ResponseInputItemUnionParam{
					OfFunctionCall: &responses.ResponseFunctionToolCallParam{
						CallID:    item.CallID,
						Name:      item.Name,
						Arguments: item.Arguments,
					},
				})
			}
		}

		// No tool calls: the model is done with this turn.
		if len(calls) == 0 {
			return nil
		}

		results, err := o.act(ctx, calls, ask, mux)
		input = append(input, results...)
		if err != nil {
			return err
		}
	}
}

// act executes tool calls in parallel. Every call gets a tool_started
// before execution and a tool_finished after, carrying either the result
// or an error payload. A tool error never aborts the turn; a dead stream
// or a cancelled elicitation does.
func (o *Orchestrator) act(ctx context.Context, calls []responses.ResponseOutputItemUnion, ask elicit.AskFunc, mux *stream.Mux) ([]responses.ResponseInputItemUnionParam, error) {
	for _, call := range calls {
		if err := mux.Emit(stream.ToolStarted(call.CallID, call.Name, json.RawMessage(call.Arguments))); err != nil {
			return nil, err
		}
	}

	var wg sync.WaitGroup
	results := make([]responses.ResponseInputItemUnionParam, len(calls))
	failures := make([]error, len(calls))

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call responses.ResponseOutputItemUnion) {
			defer wg.Done()

			output, err := o.invoke(ctx, call.Name, call.Arguments, ask)
			if err != nil {
				slog.Warn("tool execution failed", "name", call.Name, "call_id", call.CallID, "error", err)
				results[i] = responses.ResponseInputItemParamOfFunctionCallOutput(call.CallID, "error: "+err.Error())
				if errors.Is(err, elicit.ErrCancelled) {
					failures[i] = err
				}
				if eerr := mux.Emit(stream.ToolFinished(call.CallID, call.Name, nil, err.Error())); eerr != nil && failures[i] == nil {
					failures[i] = eerr
				}
				return
			}

			results[i] = responses.ResponseInputItemParamOfFunctionCallOutput(call.CallID, output)
			if eerr := mux.Emit(stream.ToolFinished(call.CallID, call.Name, resultJSON(output), "")); eerr != nil {
				failures[i] = eerr
			}
		}(i, call)
	}

	wg.Wait()

	for _, err := range failures {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// invoke runs one tool call, converting a panic into an ordinary tool
// error so the turn always reaches its terminal event.
func (o *Orchestrator) invoke(ctx context.Context, name, args string, ask elicit.AskFunc) (output string, err error) {
	tool, ok := o.tools.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("tool %s panicked: %v", name, v)
		}
	}()

	return tool.Execute(ctx, args, ask)
}

// resultJSON passes JSON tool output through untouched and quotes
// anything else so the stream payload is always valid JSON.
func resultJSON(output string) json.RawMessage {
	if json.Valid([]byte(output)) {
		return json.RawMessage(output)
	}
	b, _ := json.Marshal(output)
	return b
}
