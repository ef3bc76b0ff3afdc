package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fernwell/reasonloop/internal/orchestrator"
	"github.com/fernwell/reasonloop/internal/provider"
	"github.com/fernwell/reasonloop/memory"
	"github.com/fernwell/reasonloop/tools"
)

// fakeProvider replays a script of responses, one per request, and records
// the requests it saw.
type fakeProvider struct {
	script []*provider.Response
	err    error
	reqs   []provider.Request
}

func (f *fakeProvider) CreateTurn(_ context.Context, req provider.Request) (*provider.Response, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	i := len(f.reqs) - 1
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	return f.script[i], nil
}

func toolCall(callID, name, args string) memory.Item {
	return memory.Item{
		Kind:      memory.KindToolCall,
		ID:        "fc-" + callID,
		CallID:    callID,
		Name:      name,
		Arguments: json.RawMessage(args),
	}
}

func assistant(text string) memory.Item {
	return memory.Item{Kind: memory.KindAssistantMessage, ID: "msg-1", Text: text}
}

func reasoning(id string) memory.Item {
	return memory.Item{Kind: memory.KindReasoning, ID: id, Text: "thinking", Opaque: "blob-" + id}
}

func TestAdvanceTurn_ToolCall_AppendsPairedResult(t *testing.T) {
	// Log = [user("get id for city X")]; response = one get_city_uuid call.
	fake := &fakeProvider{script: []*provider.Response{
		{Items: []memory.Item{toolCall("c1", "get_city_uuid", `{"city":"X"}`)}},
	}}
	o := orchestrator.New(fake, tools.Registry(), 0)
	log := memory.NewLog(memory.NewUserMessage("get id for city X"))

	res, err := o.AdvanceTurn(context.Background(), log)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Done {
		t.Fatal("expected Done=false while tool calls are outstanding")
	}
	if res.FinalText != "" {
		t.Fatalf("expected empty final text, got %q", res.FinalText)
	}

	items := log.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items (user, call, result), got %d", len(items))
	}
	call, result := items[1], items[2]
	if call.Kind != memory.KindToolCall || call.CallID != "c1" {
		t.Fatalf("unexpected call item: %+v", call)
	}
	if result.Kind != memory.KindToolResult || result.CallID != "c1" {
		t.Fatalf("unexpected result item: %+v", result)
	}
	if result.IsError {
		t.Fatalf("expected success result, got error: %q", result.Output)
	}
	if !strings.Contains(result.Output, "X ID: ") {
		t.Fatalf("expected city ID output, got %q", result.Output)
	}
	if open := log.OpenCalls(); len(open) != 0 {
		t.Fatalf("expected no open calls before next request, got %v", open)
	}
}

func TestAdvanceTurn_MessageOnly_Completes(t *testing.T) {
	fake := &fakeProvider{script: []*provider.Response{
		{Items: []memory.Item{assistant("done")}},
	}}
	o := orchestrator.New(fake, tools.Registry(), 0)
	log := memory.NewLog(memory.NewUserMessage("hello"))

	res, err := o.AdvanceTurn(context.Background(), log)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Done {
		t.Fatal("expected Done=true with no tool calls")
	}
	if res.FinalText != "done" {
		t.Fatalf("final text: got %q want %q", res.FinalText, "done")
	}
}

func TestAdvanceTurn_UnknownTool_FoldsErrorResult(t *testing.T) {
	fake := &fakeProvider{script: []*provider.Response{
		{Items: []memory.Item{toolCall("c9", "unknown_tool", `{}`)}},
	}}
	o := orchestrator.New(fake, tools.Registry(), 0)
	log := memory.NewLog(memory.NewUserMessage("use the mystery tool"))

	_, err := o.AdvanceTurn(context.Background(), log)
	if err != nil {
		t.Fatalf("unknown tool must not surface as an error, got %v", err)
	}

	items := log.Items()
	result := items[len(items)-1]
	if result.Kind != memory.KindToolResult || result.CallID != "c9" {
		t.Fatalf("unexpected trailing item: %+v", result)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(result.Output, "no tool registered") {
		t.Fatalf("expected 'no tool registered' marker, got %q", result.Output)
	}
}

func TestAdvanceTurn_ToolError_FoldsAndContinues(t *testing.T) {
	boom := tools.ToolDefinition{
		Name:        "boom",
		Description: "always errors",
		InputSchema: tools.GenerateSchema[struct{}](),
		Function: func(json.RawMessage) (string, error) {
			return "", fmt.Errorf("boom failed")
		},
	}
	fake := &fakeProvider{script: []*provider.Response{
		{Items: []memory.Item{toolCall("c1", "boom", `{}`)}},
		{Items: []memory.Item{assistant("recovered")}},
	}}
	o := orchestrator.New(fake, []tools.ToolDefinition{boom}, 0)
	log := memory.NewLog(memory.NewUserMessage("go"))

	final, _, err := o.RunTurn(context.Background(), log, "trigger boom")
	if err != nil {
		t.Fatalf("tool error must not abort the loop, got %v", err)
	}
	if final != "recovered" {
		t.Fatalf("final text: got %q want %q", final, "recovered")
	}

	var result *memory.Item
	for _, it := range log.Items() {
		if it.Kind == memory.KindToolResult && it.CallID == "c1" {
			cp := it
			result = &cp
		}
	}
	if result == nil {
		t.Fatal("no tool result appended for c1")
	}
	if !result.IsError || !strings.Contains(result.Output, "boom failed") {
		t.Fatalf("expected folded error result, got %+v", result)
	}
}

func TestAdvanceTurn_MalformedArguments_FoldsErrorResult(t *testing.T) {
	fake := &fakeProvider{script: []*provider.Response{
		{Items: []memory.Item{toolCall("c1", "get_weather", `{"city":`)}},
	}}
	o := orchestrator.New(fake, tools.Registry(), 0)
	log := memory.NewLog(memory.NewUserMessage("weather"))

	if _, err := o.AdvanceTurn(context.Background(), log); err != nil {
		t.Fatalf("malformed arguments must not surface as an error, got %v", err)
	}
	items := log.Items()
	result := items[len(items)-1]
	if !result.IsError || !strings.Contains(result.Output, "invalid arguments") {
		t.Fatalf("expected invalid-arguments result, got %+v", result)
	}
}

func TestAdvanceTurn_AppendOnly_OrderedGroups(t *testing.T) {
	// Response interleaving: the orchestrator must append reasoning first,
	// then (call, result) pairs in call order, then messages.
	fake := &fakeProvider{script: []*provider.Response{
		{Items: []memory.Item{
			reasoning("r1"),
			toolCall("c1", "get_city_uuid", `{"city":"Oslo"}`),
			toolCall("c2", "get_weather", `{"city":"Oslo"}`),
			reasoning("r2"),
		}},
	}}
	o := orchestrator.New(fake, tools.Registry(), 0)
	log := memory.NewLog(memory.NewUserMessage("Oslo please"))
	before := log.Items()

	if _, err := o.AdvanceTurn(context.Background(), log); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	items := log.Items()
	// Existing items untouched, in place.
	for i := range before {
		if items[i].Kind != before[i].Kind || items[i].Text != before[i].Text {
			t.Fatalf("existing item %d changed: %+v", i, items[i])
		}
	}
	wantKinds := []memory.Kind{
		memory.KindReasoning, memory.KindReasoning,
		memory.KindToolCall, memory.KindToolResult,
		memory.KindToolCall, memory.KindToolResult,
	}
	appended := items[len(before):]
	if len(appended) != len(wantKinds) {
		t.Fatalf("appended %d items, want %d: %+v", len(appended), len(wantKinds), appended)
	}
	for i, k := range wantKinds {
		if appended[i].Kind != k {
			t.Errorf("appended item %d: got kind %q want %q", i, appended[i].Kind, k)
		}
	}
	// Pairs keep original call order.
	if appended[2].CallID != "c1" || appended[3].CallID != "c1" {
		t.Errorf("first pair should be c1: %+v %+v", appended[2], appended[3])
	}
	if appended[4].CallID != "c2" || appended[5].CallID != "c2" {
		t.Errorf("second pair should be c2: %+v %+v", appended[4], appended[5])
	}
	if err := log.Validate(); err != nil {
		t.Fatalf("log invariants violated: %v", err)
	}
}

func TestAdvanceTurn_EmptyResponse_SurfacesNoProgress(t *testing.T) {
	fake := &fakeProvider{script: []*provider.Response{{}}}
	o := orchestrator.New(fake, tools.Registry(), 0)
	log := memory.NewLog(memory.NewUserMessage("hi"))

	_, err := o.AdvanceTurn(context.Background(), log)
	if !errors.Is(err, orchestrator.ErrNoProgress) {
		t.Fatalf("expected ErrNoProgress, got %v", err)
	}
	if log.Len() != 1 {
		t.Fatalf("no-progress round must not grow the log, got %d items", log.Len())
	}
}

func TestAdvanceTurn_ProviderFailure_Propagates(t *testing.T) {
	fake := &fakeProvider{err: provider.ErrUnavailable}
	o := orchestrator.New(fake, tools.Registry(), 0)
	log := memory.NewLog(memory.NewUserMessage("hi"))

	_, err := o.AdvanceTurn(context.Background(), log)
	if !errors.Is(err, provider.ErrUnavailable) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestRunTurn_RoundLimit(t *testing.T) {
	// Provider that always asks for another tool call.
	fake := &fakeProvider{script: []*provider.Response{
		{Items: []memory.Item{toolCall("c1", "get_city_uuid", `{"city":"X"}`)}},
	}}
	o := orchestrator.New(fake, tools.Registry(), 3)
	log := memory.NewLog()

	_, _, err := o.RunTurn(context.Background(), log, "loop forever")
	if !errors.Is(err, orchestrator.ErrRoundLimit) {
		t.Fatalf("expected ErrRoundLimit, got %v", err)
	}
	if got := len(fake.reqs); got != 3 {
		t.Fatalf("expected exactly 3 requests, got %d", got)
	}
}

func TestRunTurn_AccumulatesUsageAcrossRounds(t *testing.T) {
	fake := &fakeProvider{script: []*provider.Response{
		{
			Items: []memory.Item{toolCall("c1", "get_city_uuid", `{"city":"X"}`)},
			Usage: provider.Usage{InputTokens: 10, OutputTokens: 5, ReasoningTokens: 3},
		},
		{
			Items: []memory.Item{assistant("done")},
			Usage: provider.Usage{InputTokens: 20, OutputTokens: 7, CachedTokens: 4},
		},
	}}
	o := orchestrator.New(fake, tools.Registry(), 0)
	log := memory.NewLog()

	final, usage, err := o.RunTurn(context.Background(), log, "go")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if final != "done" {
		t.Fatalf("final: got %q", final)
	}
	want := provider.Usage{InputTokens: 30, OutputTokens: 12, ReasoningTokens: 3, CachedTokens: 4}
	if usage != want {
		t.Fatalf("usage: got %+v want %+v", usage, want)
	}
}

func TestRunTurn_SendsFullLogEachRound(t *testing.T) {
	fake := &fakeProvider{script: []*provider.Response{
		{Items: []memory.Item{toolCall("c1", "get_city_uuid", `{"city":"X"}`)}},
		{Items: []memory.Item{assistant("done")}},
	}}
	o := orchestrator.New(fake, tools.Registry(), 0)
	log := memory.NewLog()

	if _, _, err := o.RunTurn(context.Background(), log, "go"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(fake.reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(fake.reqs))
	}
	// Second request must include the user message, the call, and its result.
	second := fake.reqs[1].Items
	if len(second) != 3 {
		t.Fatalf("second request items: got %d want 3 (%+v)", len(second), second)
	}
	if second[1].Kind != memory.KindToolCall || second[2].Kind != memory.KindToolResult {
		t.Fatalf("second request missing paired call/result: %+v", second)
	}
	// Tool schemas advertised on every request.
	for i, req := range fake.reqs {
		if len(req.Tools) != len(tools.Registry()) {
			t.Errorf("request %d: advertised %d tools, want %d", i, len(req.Tools), len(tools.Registry()))
		}
	}
}

func TestAdvanceTurn_DeterministicGivenFixedResponse(t *testing.T) {
	response := &provider.Response{Items: []memory.Item{
		reasoning("r1"),
		toolCall("c1", "get_weather", `{"city":"Oslo"}`),
		assistant("partial"),
	}}

	run := func() []memory.Item {
		fake := &fakeProvider{script: []*provider.Response{response}}
		o := orchestrator.New(fake, tools.Registry(), 0)
		log := memory.NewLog(memory.NewUserMessage("Oslo"))
		if _, err := o.AdvanceTurn(context.Background(), log); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		return log.Items()[1:] // drop the user item, its local ID differs per run
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("replay length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].CallID != b[i].CallID || a[i].Output != b[i].Output {
			t.Fatalf("replay diverged at %d:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}
