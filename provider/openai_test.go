package provider_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"

	"tether/model"
	"tether/provider"
	"tether/provider/testutil"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

// oneByteClient serves the given SSE bodies in order, one byte per Read.
func oneByteClient(bodies ...string) (*http.Client, func() []map[string]any) {
	var mu sync.Mutex
	var requests []map[string]any
	client := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)

		mu.Lock()
		i := len(requests)
		requests = append(requests, body)
		mu.Unlock()

		stream := testutil.DoneFrame()
		if i < len(bodies) {
			stream = bodies[i]
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
			Body:       io.NopCloser(iotest.OneByteReader(strings.NewReader(stream))),
			Request:    r,
		}, nil
	})}
	return client, func() []map[string]any {
		mu.Lock()
		defer mu.Unlock()
		return requests
	}
}

func TestOpenAITransportReassemblesSplitFrames(t *testing.T) {
	stream := ": keep-alive\n" +
		testutil.TextChunk("Hel") +
		"data: {not json\n\n" +
		testutil.SSEFrame(`{"id":"c","object":"chat.completion.chunk","created":1,"model":"m","choices":[]}`) +
		testutil.TextChunk("lo") +
		testutil.DoneFrame() +
		testutil.TextChunk("after done")

	httpClient, _ := oneByteClient(stream)
	c := provider.New(provider.NewOpenAITransport(provider.Config{Model: "m", HTTPClient: httpClient}), nil)

	events, err := collect(t, c, testutil.SingleUserMessage("hi"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var text strings.Builder
	for _, ev := range events {
		text.WriteString(ev.Delta)
	}
	if text.String() != "Hello" {
		t.Errorf("text = %q, want %q", text.String(), "Hello")
	}
	if last := events[len(events)-1]; last.Type != model.EventTurnEnd {
		t.Errorf("last event = %v", last.Type)
	}
}

func TestOpenAITransportIgnoresTrailingPartialLine(t *testing.T) {
	stream := testutil.TextChunk("a") + `data: {"choices":[{"index":0,"delta":{"content":"lost"}}]}`

	httpClient, _ := oneByteClient(stream)
	c := provider.New(provider.NewOpenAITransport(provider.Config{HTTPClient: httpClient}), nil)

	events, err := collect(t, c, testutil.SingleUserMessage("hi"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Delta != "a" || events[1].Type != model.EventTurnEnd {
		t.Errorf("events = %+v", events)
	}
}

func TestOpenAITransportFragmentedToolCalls(t *testing.T) {
	round1 := testutil.ToolChunk(0, "call_a", "echo", `{"te`) +
		testutil.ToolChunk(1, "call_b", "upper", `{"text"`) +
		testutil.ToolChunk(0, "", "", `xt":"hi"}`) +
		testutil.ToolChunk(1, "", "", `:"yo"}`) +
		testutil.DoneFrame()
	round2 := testutil.TextChunk("finished") + testutil.DoneFrame()

	httpClient, requests := oneByteClient(round1, round2)
	c := provider.New(provider.NewOpenAITransport(provider.Config{Model: "m", APIKey: "k", HTTPClient: httpClient}), nil)
	tools := []model.ToolDefinition{testutil.EchoTool(), testutil.UpperTool()}

	events, err := collect(t, c, testutil.SingleUserMessage("go"), tools)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var results []string
	for _, ev := range events {
		if ev.Type == model.EventToolCallEnd {
			results = append(results, ev.ToolCall.ID+"="+ev.ToolCall.Result.Content)
		}
	}
	if strings.Join(results, ",") != "call_a=hi,call_b=YO" {
		t.Errorf("tool results = %v", results)
	}

	reqs := requests()
	if len(reqs) != 2 {
		t.Fatalf("requests = %d, want 2", len(reqs))
	}
	if _, ok := reqs[0]["tools"]; !ok {
		t.Error("tools missing from request")
	}

	msgs := reqs[1]["messages"].([]any)
	assistant := msgs[2].(map[string]any)
	if content, ok := assistant["content"]; !ok || content != nil {
		t.Errorf("assistant tool-call content = %v (present=%v), want null", content, ok)
	}
	calls := assistant["tool_calls"].([]any)
	fn := calls[0].(map[string]any)["function"].(map[string]any)
	if fn["name"] != "echo" || fn["arguments"] != `{"text":"hi"}` {
		t.Errorf("tool call function = %v", fn)
	}
	toolMsg := msgs[3].(map[string]any)
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "call_a" || toolMsg["content"] != "hi" {
		t.Errorf("tool message = %v", toolMsg)
	}
}

func TestOpenAITransportRequestShape(t *testing.T) {
	var got map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, testutil.TextChunk("ok")+testutil.DoneFrame())
	}))
	defer server.Close()

	c := provider.New(provider.NewOpenAITransport(provider.Config{
		BaseURL: server.URL + "/v1/",
		Model:   "gpt-test",
		APIKey:  "secret",
	}), nil)

	if _, err := collect(t, c, testutil.SingleUserMessage("hi"), nil); err != nil {
		t.Fatal(err)
	}

	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if got["model"] != "gpt-test" || got["stream"] != true {
		t.Errorf("request = %v", got)
	}
	if _, ok := got["tools"]; ok {
		t.Error("tools must be omitted when none are offered")
	}
	msgs := got["messages"].([]any)
	if user := msgs[1].(map[string]any); user["role"] != "user" || user["content"] != "hi" {
		t.Errorf("user message = %v", user)
	}
}

func TestOpenAITransportNoAuthWithoutKey(t *testing.T) {
	var auth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Values("Authorization")
		io.WriteString(w, testutil.DoneFrame())
	}))
	defer server.Close()

	c := provider.New(provider.NewOpenAITransport(provider.Config{BaseURL: server.URL}), nil)
	if _, err := collect(t, c, testutil.SingleUserMessage("hi"), nil); err != nil {
		t.Fatal(err)
	}
	if len(auth) != 0 {
		t.Errorf("Authorization sent without a key: %v", auth)
	}
}

func TestOpenAITransportErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "upstream exploded")
	}))
	defer server.Close()

	c := provider.New(provider.NewOpenAITransport(provider.Config{BaseURL: server.URL}), nil)
	events, err := collect(t, c, testutil.SingleUserMessage("hi"), nil)
	if err != nil {
		t.Fatalf("status error must be an event, got %v", err)
	}
	if len(events) != 1 || events[0].Type != model.EventError {
		t.Fatalf("events = %+v", events)
	}
	if !strings.Contains(events[0].Error, "500") || !strings.Contains(events[0].Error, "upstream exploded") {
		t.Errorf("error = %q", events[0].Error)
	}
}

func TestOpenRouterTransportHeaders(t *testing.T) {
	var title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("X-Title")
		io.WriteString(w, testutil.DoneFrame())
	}))
	defer server.Close()

	c := provider.New(provider.NewOpenRouterTransport(provider.Config{BaseURL: server.URL}), nil)
	if _, err := collect(t, c, testutil.SingleUserMessage("hi"), nil); err != nil {
		t.Fatal(err)
	}
	if title != "tether" {
		t.Errorf("X-Title = %q", title)
	}
}

func TestConvertToWireMessages(t *testing.T) {
	msgs := provider.ConvertToWireMessages([]model.Message{
		model.SystemMessage("sys"),
		{Role: model.RoleAssistant, Content: "", ToolCalls: []model.ToolCall{{ID: "1", Name: "echo"}}},
		{Role: model.RoleTool, ToolCallID: "1", Content: "out"},
	})
	data, err := json.Marshal(msgs)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"role":"system","content":"sys"},` +
		`{"role":"assistant","content":null,"tool_calls":[{"id":"1","type":"function","function":{"name":"echo","arguments":"{}"}}]},` +
		`{"role":"tool","content":"out","tool_call_id":"1"}]`
	if string(data) != want {
		t.Errorf("wire messages:\n got %s\nwant %s", data, want)
	}
}

func TestParseToolArguments(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{`{"a":1,"b":"x"}`, 2},
		{`{"a":`, 0},
		{``, 0},
		{`null`, 0},
		{`[1,2]`, 0},
	}
	for _, tt := range tests {
		got := provider.ParseToolArguments(tt.input)
		if got == nil || len(got) != tt.want {
			t.Errorf("ParseToolArguments(%q) = %v", tt.input, got)
		}
	}
}
