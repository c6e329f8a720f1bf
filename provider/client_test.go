package provider_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tether/model"
	"tether/provider"
	"tether/provider/testutil"
)

// collect ranges a stream to the end and returns its events and the first
// error yielded.
func collect(t *testing.T, c *provider.Client, history []model.Message, tools []model.ToolDefinition) ([]model.Event, error) {
	t.Helper()
	var events []model.Event
	for ev, err := range c.Stream(context.Background(), history, tools) {
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}

func eventTypes(events []model.Event) []model.EventType {
	types := make([]model.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func equalTypes(a, b []model.EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStreamTextOnly(t *testing.T) {
	c := provider.New(testutil.TextReply("Hel", "lo"), nil)

	events, err := collect(t, c, testutil.SingleUserMessage("hi"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.EventType{model.EventTextDelta, model.EventTextDelta, model.EventTurnEnd}
	if got := eventTypes(events); !equalTypes(got, want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	if events[0].Delta+events[1].Delta != "Hello" {
		t.Errorf("deltas = %q %q", events[0].Delta, events[1].Delta)
	}
}

func TestStreamToolLoop(t *testing.T) {
	transport := testutil.NewMockTransport(
		testutil.MockRound{ToolCalls: []provider.RawToolCall{
			{ID: "call_1", Name: "echo", Arguments: `{"text":"hi"}`},
			{ID: "call_2", Name: "upper", Arguments: `{"text":"yo"}`},
		}},
		testutil.MockRound{Deltas: []string{"done"}},
	)
	c := provider.New(transport, nil)
	tools := []model.ToolDefinition{testutil.EchoTool(), testutil.UpperTool()}

	events, err := collect(t, c, testutil.SingleUserMessage("go"), tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.EventType{
		model.EventToolCallStart, model.EventToolCallEnd,
		model.EventToolCallStart, model.EventToolCallEnd,
		model.EventToolLoopMessage, model.EventToolLoopMessage, model.EventToolLoopMessage,
		model.EventTextDelta, model.EventTurnEnd,
	}
	if got := eventTypes(events); !equalTypes(got, want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}

	if events[0].ToolCall.Result != nil {
		t.Error("tool_call_start must not carry a result")
	}
	if r := events[1].ToolCall.Result; r == nil || r.Content != "hi" || r.IsError {
		t.Errorf("echo result = %+v", r)
	}
	if r := events[3].ToolCall.Result; r == nil || r.Content != "YO" {
		t.Errorf("upper result = %+v", r)
	}

	assistant := events[4].Message
	if assistant.Role != model.RoleAssistant || len(assistant.ToolCalls) != 2 || assistant.ToolCalls[0].ID != "call_1" {
		t.Errorf("assistant loop message = %+v", assistant)
	}
	if m := events[5].Message; m.Role != model.RoleTool || m.ToolCallID != "call_1" || m.Content != "hi" {
		t.Errorf("first tool message = %+v", m)
	}
	if m := events[6].Message; m.ToolCallID != "call_2" || m.Content != "YO" {
		t.Errorf("second tool message = %+v", m)
	}

	requests := transport.Requests()
	if len(requests) != 2 {
		t.Fatalf("rounds = %d, want 2", len(requests))
	}
	if len(requests[0]) != 2 || len(requests[1]) != 5 {
		t.Errorf("history lengths = %d, %d; want 2, 5", len(requests[0]), len(requests[1]))
	}
	if requests[1][3].ToolCallID != "call_1" {
		t.Errorf("second round history = %+v", requests[1])
	}
}

func TestStreamDoesNotMutateHistory(t *testing.T) {
	transport := testutil.NewMockTransport(
		testutil.MockRound{ToolCalls: []provider.RawToolCall{{ID: "c", Name: "echo", Arguments: `{}`}}},
	)
	history := testutil.SingleUserMessage("go")
	if _, err := collect(t, provider.New(transport, nil), history, []model.ToolDefinition{testutil.EchoTool()}); err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Errorf("caller history grew to %d messages", len(history))
	}
}

func TestStreamToolFailures(t *testing.T) {
	tests := []struct {
		name      string
		call      provider.RawToolCall
		tools     []model.ToolDefinition
		wantArgs  int
		wantError string
	}{
		{
			name:      "unknown tool",
			call:      provider.RawToolCall{ID: "1", Name: "nope", Arguments: `{}`},
			tools:     []model.ToolDefinition{testutil.EchoTool()},
			wantError: "Unknown tool: nope",
		},
		{
			name:      "tool returns error",
			call:      provider.RawToolCall{ID: "1", Name: "bad", Arguments: `{}`},
			tools:     []model.ToolDefinition{testutil.FailingTool("bad", errors.New("disk full"))},
			wantError: "disk full",
		},
		{
			name:      "tool panics",
			call:      provider.RawToolCall{ID: "1", Name: "boom", Arguments: `{}`},
			tools:     []model.ToolDefinition{testutil.PanickingTool("boom")},
			wantError: "boom exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := testutil.NewMockTransport(
				testutil.MockRound{ToolCalls: []provider.RawToolCall{tt.call}},
				testutil.MockRound{Deltas: []string{"recovered"}},
			)
			events, err := collect(t, provider.New(transport, nil), testutil.SingleUserMessage("x"), tt.tools)
			if err != nil {
				t.Fatalf("tool failure must not end the stream: %v", err)
			}

			end := events[1]
			if end.Type != model.EventToolCallEnd || end.ToolCall.Result == nil {
				t.Fatalf("second event = %+v", end)
			}
			if !end.ToolCall.Result.IsError || !strings.Contains(end.ToolCall.Result.Content, tt.wantError) {
				t.Errorf("result = %+v, want error containing %q", end.ToolCall.Result, tt.wantError)
			}
			if last := events[len(events)-1]; last.Type != model.EventTurnEnd {
				t.Errorf("last event = %v, want turn_end", last.Type)
			}
		})
	}
}

func TestStreamMalformedArgumentsBecomeEmptyObject(t *testing.T) {
	var got map[string]any
	probe := model.ToolDefinition{
		Name: "probe",
		Execute: func(_ context.Context, args map[string]any) (model.ToolResult, error) {
			got = args
			return model.TextResult("ok"), nil
		},
	}
	transport := testutil.NewMockTransport(
		testutil.MockRound{ToolCalls: []provider.RawToolCall{{ID: "1", Name: "probe", Arguments: `{"a": 1`}}},
	)

	events, err := collect(t, provider.New(transport, nil), testutil.SingleUserMessage("x"), []model.ToolDefinition{probe})
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("tool received %v, want empty map", got)
	}
	if args := events[0].ToolCall.Arguments; args == nil || len(args) != 0 {
		t.Errorf("start event arguments = %v", args)
	}
}

func TestStreamFirstMatchingToolWins(t *testing.T) {
	first := testutil.EchoTool()
	second := testutil.EchoTool()
	second.Execute = func(context.Context, map[string]any) (model.ToolResult, error) {
		return model.TextResult("second"), nil
	}
	transport := testutil.NewMockTransport(
		testutil.MockRound{ToolCalls: []provider.RawToolCall{{ID: "1", Name: "echo", Arguments: `{"text":"first"}`}}},
	)

	events, err := collect(t, provider.New(transport, nil), testutil.SingleUserMessage("x"), []model.ToolDefinition{first, second})
	if err != nil {
		t.Fatal(err)
	}
	if r := events[1].ToolCall.Result; r.Content != "first" {
		t.Errorf("dispatched to %q", r.Content)
	}
	if n := len(transport.Tools()[0]); n != 2 {
		t.Errorf("offered %d tools, want both duplicates", n)
	}
}

func TestStreamSynthesizesMissingIDs(t *testing.T) {
	transport := testutil.NewMockTransport(
		testutil.MockRound{ToolCalls: []provider.RawToolCall{{Name: "echo", Arguments: `{}`}}},
	)
	events, err := collect(t, provider.New(transport, nil), testutil.SingleUserMessage("x"), []model.ToolDefinition{testutil.EchoTool()})
	if err != nil {
		t.Fatal(err)
	}
	id := events[0].ToolCall.ID
	if id == "" || events[1].ToolCall.ID != id || events[3].Message.ToolCallID != id {
		t.Errorf("tool call ids not consistent: %q", id)
	}
}

func TestStreamStatusErrorBecomesErrorEvent(t *testing.T) {
	transport := testutil.NewMockTransport(
		testutil.MockRound{Err: &provider.StatusError{StatusCode: 429, Body: "slow down"}},
	)

	events, err := collect(t, provider.New(transport, nil), testutil.SingleUserMessage("x"), nil)
	if err != nil {
		t.Fatalf("status errors must not be returned: %v", err)
	}
	if len(events) != 1 || events[0].Type != model.EventError {
		t.Fatalf("events = %+v", events)
	}
	if !strings.Contains(events[0].Error, "429") || !strings.Contains(events[0].Error, "slow down") {
		t.Errorf("error text = %q", events[0].Error)
	}
}

func TestStreamTransportErrorIsYielded(t *testing.T) {
	boom := errors.New("connection reset")
	transport := testutil.NewMockTransport(testutil.MockRound{Deltas: []string{"par"}, Err: boom})

	events, err := collect(t, provider.New(transport, nil), testutil.SingleUserMessage("x"), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if len(events) != 1 || events[0].Delta != "par" {
		t.Errorf("events before the error = %+v", events)
	}
}

func TestStreamIsNotRestartable(t *testing.T) {
	transport := testutil.TextReply("once")
	seq := provider.New(transport, nil).Stream(context.Background(), testutil.SingleUserMessage("x"), nil)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}

	if first != 2 || second != 0 {
		t.Errorf("first range = %d events, second = %d; want 2, 0", first, second)
	}
	if n := len(transport.Requests()); n != 1 {
		t.Errorf("transport called %d times", n)
	}
}

func TestStreamEarlyBreakStopsTransport(t *testing.T) {
	transport := testutil.NewMockTransport(
		testutil.MockRound{Deltas: []string{"a", "b", "c"}},
	)
	seq := provider.New(transport, nil).Stream(context.Background(), testutil.SingleUserMessage("x"), nil)

	seen := 0
	for range seq {
		seen++
		break
	}
	if seen != 1 {
		t.Errorf("saw %d events", seen)
	}
	if n := len(transport.Requests()); n != 1 {
		t.Errorf("transport called %d times after break", n)
	}
}
