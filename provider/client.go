package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"tether/model"
)

// Client drives the tool loop over a Transport.
type Client struct {
	transport Transport
	logger    *slog.Logger
}

// New creates a Client. A nil logger discards.
func New(transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		transport: transport,
		logger:    logger.With("component", "provider"),
	}
}

// Stream runs one turn over history and returns its events lazily. Nothing is
// sent until the sequence is ranged over, and it can be ranged over once:
// later ranges yield nothing.
//
// A non-success status ends the sequence with a single error event. Any other
// transport failure is yielded once as a non-nil error.
func (c *Client) Stream(ctx context.Context, history []model.Message, tools []model.ToolDefinition) iter.Seq2[model.Event, error] {
	var started atomic.Bool
	return func(yield func(model.Event, error) bool) {
		if started.Swap(true) {
			return
		}
		c.run(ctx, model.CloneMessages(history), tools, yield)
	}
}

func (c *Client) run(ctx context.Context, messages []model.Message, tools []model.ToolDefinition, yield func(model.Event, error) bool) {
	stopped := false
	emit := func(ev model.Event) bool {
		if !yield(ev, nil) {
			stopped = true
			return false
		}
		return true
	}

	for round := 1; ; round++ {
		res, err := c.transport.Round(ctx, messages, tools, emit)
		if stopped {
			return
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			c.logger.Warn("endpoint returned an error status", "status", statusErr.StatusCode, "round", round)
			yield(model.ErrorEvent(statusErr.Error()), nil)
			return
		}
		if err != nil {
			yield(model.Event{}, err)
			return
		}

		if len(res.ToolCalls) == 0 {
			yield(model.Event{Type: model.EventTurnEnd}, nil)
			return
		}

		c.logger.Debug("executing tool calls", "round", round, "count", len(res.ToolCalls))

		calls := make([]model.ToolCall, 0, len(res.ToolCalls))
		for _, raw := range res.ToolCalls {
			call := model.ToolCall{
				ID:        raw.ID,
				Name:      raw.Name,
				Arguments: ParseToolArguments(raw.Arguments),
			}
			if call.ID == "" {
				call.ID = "call_" + uuid.NewString()
			}

			start := call
			if !yield(model.Event{Type: model.EventToolCallStart, ToolCall: &start}, nil) {
				return
			}

			result := c.execute(ctx, tools, call)
			call.Result = &result

			end := call
			if !yield(model.Event{Type: model.EventToolCallEnd, ToolCall: &end}, nil) {
				return
			}
			calls = append(calls, call)
		}

		loopMessages := make([]model.Message, 0, len(calls)+1)
		loopMessages = append(loopMessages, model.Message{Role: model.RoleAssistant, ToolCalls: calls})
		for _, call := range calls {
			loopMessages = append(loopMessages, model.Message{
				Role:       model.RoleTool,
				ToolCallID: call.ID,
				Content:    call.Result.Content,
			})
		}

		for i := range loopMessages {
			msg := loopMessages[i]
			if !yield(model.Event{Type: model.EventToolLoopMessage, Message: &msg}, nil) {
				return
			}
		}
		messages = append(messages, loopMessages...)
	}
}

// execute dispatches a call to the first tool with a matching name. Errors and
// panics become error-flagged results.
func (c *Client) execute(ctx context.Context, tools []model.ToolDefinition, call model.ToolCall) (result model.ToolResult) {
	def, ok := model.FindTool(tools, call.Name)
	if !ok {
		return model.ErrorResult("Unknown tool: " + call.Name)
	}
	if def.Execute == nil {
		return model.ErrorResult(fmt.Sprintf("Tool %s has no implementation", call.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("tool panicked", "tool", call.Name, "panic", r)
			result = model.ErrorResult(fmt.Sprintf("Tool %s failed: %v", call.Name, r))
		}
	}()

	out, err := def.Execute(ctx, call.Arguments)
	if err != nil {
		c.logger.Debug("tool returned an error", "tool", call.Name, "err", err)
		return model.ErrorResult(err.Error())
	}
	return out
}
