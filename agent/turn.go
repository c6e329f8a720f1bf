package agent

import (
	"context"
	"iter"
	"strings"

	"tether/model"
)

// Result is the outcome of a completed turn.
type Result struct {
	// Text is the assistant text accumulated across all rounds.
	Text string
	// ToolCalls holds every tool call of the turn with its result, in the
	// order the calls were started.
	ToolCalls []model.ToolCall
}

// Turn is one call to Prompt. Nothing runs until Events is ranged over or
// Wait is called.
type Turn struct {
	agent *Agent
	ctx   context.Context
	input string

	started bool
	done    bool
	result  Result
	err     error
}

// Prompt starts a turn for the given user input. A /name input matching a
// prompt template is expanded first; anything else is sent as typed.
func (a *Agent) Prompt(ctx context.Context, input string) *Turn {
	return &Turn{agent: a, ctx: ctx, input: input}
}

// Events runs the turn, yielding each event as it happens. A failure is
// yielded last as a non-nil error. The sequence can be consumed once; ranging
// it again yields nothing. Breaking out of the loop cancels the turn.
func (t *Turn) Events() iter.Seq2[model.Event, error] {
	return func(yield func(model.Event, error) bool) {
		if t.started {
			return
		}
		t.started = true
		t.result, t.err = t.agent.run(t.ctx, t.input, yield)
		t.done = true
	}
}

// Wait consumes any events not yet consumed and returns the turn's result.
func (t *Turn) Wait() (Result, error) {
	if !t.started {
		for range t.Events() {
		}
	}
	return t.Result()
}

// Result returns the outcome of a turn whose events have been consumed. It
// fails with ErrTurnNotConsumed before that.
func (t *Turn) Result() (Result, error) {
	if !t.done {
		return Result{}, ErrTurnNotConsumed
	}
	return t.result, t.err
}

// turnState accumulates what a turn produced.
type turnState struct {
	text     strings.Builder
	calls    []model.ToolCall
	toolLoop bool
}

func (s *turnState) observe(ev model.Event) {
	switch ev.Type {
	case model.EventTextDelta:
		s.text.WriteString(ev.Delta)
	case model.EventToolCallStart, model.EventToolCallEnd:
		if ev.ToolCall == nil {
			return
		}
		for i := range s.calls {
			if s.calls[i].ID == ev.ToolCall.ID {
				s.calls[i] = *ev.ToolCall
				return
			}
		}
		s.calls = append(s.calls, *ev.ToolCall)
	case model.EventToolLoopMessage:
		s.toolLoop = true
	}
}

func (a *Agent) run(parent context.Context, input string, yield func(model.Event, error) bool) (Result, error) {
	ctx, done := a.beginTurn(parent)
	defer done()

	text := input
	if expanded, ok := a.prompts.Expand(input); ok {
		text = expanded
	}

	before := len(a.messages)
	renamed, previousName := a.renameOnFirstMessage(input)
	a.messages = append(a.messages, model.UserMessage(text))
	a.messages[0] = model.SystemMessage(a.systemPrompt())

	tools := a.Tools()
	a.logger.Debug("turn started", "thread", a.active, "tools", len(tools))

	var (
		state   turnState
		err     error
		stopped bool
	)
	for ev, streamErr := range a.client.Stream(ctx, a.messages, tools) {
		if streamErr != nil {
			err = streamErr
			break
		}
		state.observe(ev)
		if ev.Type == model.EventToolLoopMessage && ev.Message != nil {
			a.messages = append(a.messages, *ev.Message)
		}
		if ev.Type == model.EventError {
			a.logger.Warn("turn ended with an error event", "error", ev.Error)
		}

		a.extensions.Emit(ev)
		if !yield(ev, nil) {
			stopped = true
			break
		}
	}
	if stopped {
		done()
		err = context.Canceled
	}

	if err != nil {
		if state.text.Len() == 0 && !state.toolLoop {
			a.messages = a.messages[:before]
			if renamed {
				a.setThreadName(a.active, previousName)
			}
			a.logger.Debug("turn rolled back", "err", err)
		} else if perr := a.persist(ctx); perr != nil {
			a.logger.Warn("failed to persist after failed turn", "err", perr)
		}
		if !stopped {
			yield(model.Event{}, err)
		}
		return Result{}, err
	}

	if state.text.Len() > 0 {
		a.messages = append(a.messages, model.Message{Role: model.RoleAssistant, Content: state.text.String()})
	}
	if perr := a.persist(ctx); perr != nil {
		a.logger.Warn("failed to persist turn", "err", perr)
	}
	return Result{Text: state.text.String(), ToolCalls: state.calls}, nil
}

// renameOnFirstMessage names the active thread after its first user message.
func (a *Agent) renameOnFirstMessage(text string) (bool, string) {
	if a.hasUserMessage() {
		return false, ""
	}
	i := a.threadIndex(a.active)
	if i < 0 {
		return false, ""
	}
	previous := a.threads[i].Name
	a.setThreadName(a.active, threadName(text))
	return true, previous
}
