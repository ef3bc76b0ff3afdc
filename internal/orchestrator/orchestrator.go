package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/fernwell/reasonloop/internal/provider"
	"github.com/fernwell/reasonloop/internal/telemetry"
	"github.com/fernwell/reasonloop/memory"
	"github.com/fernwell/reasonloop/tools"
)

// DefaultMaxRounds bounds the tool-call loop for a single user message.
// The service normally terminates on its own; the bound turns a runaway
// exchange into an error instead of an unbounded spend.
const DefaultMaxRounds = 16

var (
	// ErrNoProgress reports a response with neither tool calls nor
	// message text; retrying the identical request would loop forever.
	ErrNoProgress = errors.New("response contained neither tool calls nor messages")

	// ErrRoundLimit reports that a user message exceeded the round bound.
	ErrRoundLimit = errors.New("tool-call round limit reached")
)

// TurnResult is the outcome of one request/response round.
type TurnResult struct {
	// FinalText is set when Done is true: the accumulated message text.
	FinalText string
	Done      bool
	Usage     provider.Usage
}

type Orchestrator struct {
	provider  provider.Provider
	tools     []tools.ToolDefinition
	maxRounds int
}

func New(p provider.Provider, toolDefs []tools.ToolDefinition, maxRounds int) *Orchestrator {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Orchestrator{provider: p, tools: toolDefs, maxRounds: maxRounds}
}

func (o *Orchestrator) toolSchemas() []provider.ToolSchema {
	out := make([]provider.ToolSchema, 0, len(o.tools))
	for _, t := range o.tools {
		out = append(out, t.Schema())
	}
	return out
}

// AdvanceTurn performs one round: it sends the full log, partitions the
// response, resolves every requested tool call, and appends reasoning
// items, (call, result) pairs in call order, and message items. Done is
// true when the service requested no tools this round.
//
// Tool failures are folded into the log as error results so the model can
// react to them; only a failed service request is returned as an error.
func (o *Orchestrator) AdvanceTurn(ctx context.Context, log *memory.Log) (TurnResult, error) {
	turnID, ok := telemetry.TurnIDFromContext(ctx)
	if !ok {
		turnID = fmt.Sprintf("turn-%d", time.Now().UnixNano())
		ctx = telemetry.WithTurnID(ctx, turnID)
	}

	telemetry.Emit("turn_request", map[string]any{
		"turn_id":   turnID,
		"log_items": log.Len(),
		"tools":     len(o.tools),
	})

	resp, err := o.provider.CreateTurn(ctx, provider.Request{
		Items: log.Items(),
		Tools: o.toolSchemas(),
	})
	if err != nil {
		return TurnResult{}, fmt.Errorf("provider request: %w", err)
	}

	// Partition by kind, preserving relative order within each group.
	var reasoning, calls, messages []memory.Item
	for _, it := range resp.Items {
		switch it.Kind {
		case memory.KindReasoning:
			reasoning = append(reasoning, it)
		case memory.KindToolCall:
			calls = append(calls, it)
		case memory.KindAssistantMessage:
			messages = append(messages, it)
		}
	}

	if len(calls) == 0 && len(messages) == 0 {
		return TurnResult{Usage: resp.Usage}, ErrNoProgress
	}

	log.Append(reasoning...)
	for _, call := range calls {
		log.Append(call)
		log.Append(o.execTool(ctx, call))
	}
	log.Append(messages...)

	if len(calls) > 0 {
		return TurnResult{Usage: resp.Usage}, nil
	}

	texts := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Text != "" {
			texts = append(texts, m.Text)
		}
	}
	return TurnResult{
		FinalText: strings.Join(texts, "\n"),
		Done:      true,
		Usage:     resp.Usage,
	}, nil
}

// RunTurn processes one user message to completion: it appends the message
// and repeats AdvanceTurn until the service stops requesting tools or the
// round bound trips. The returned usage is the sum over all rounds and is
// owned by the caller.
func (o *Orchestrator) RunTurn(ctx context.Context, log *memory.Log, userText string) (string, provider.Usage, error) {
	turnID, ok := telemetry.TurnIDFromContext(ctx)
	if !ok {
		turnID = fmt.Sprintf("turn-%d", time.Now().UnixNano())
		ctx = telemetry.WithTurnID(ctx, turnID)
	}

	log.Append(memory.NewUserMessage(userText))

	var usage provider.Usage
	for round := 1; round <= o.maxRounds; round++ {
		res, err := o.AdvanceTurn(ctx, log)
		usage.Add(res.Usage)
		if err != nil {
			return "", usage, err
		}
		if res.Done {
			telemetry.Emit("turn_complete", map[string]any{
				"turn_id":          turnID,
				"rounds":           round,
				"final_text_len":   len(res.FinalText),
				"input_tokens":     usage.InputTokens,
				"output_tokens":    usage.OutputTokens,
				"reasoning_tokens": usage.ReasoningTokens,
				"cached_tokens":    usage.CachedTokens,
			})
			return res.FinalText, usage, nil
		}
	}
	return "", usage, fmt.Errorf("%w after %d rounds", ErrRoundLimit, o.maxRounds)
}

// execTool resolves a single tool call into a result item. Lookup misses,
// malformed argument payloads, and handler errors all become error results
// surfaced back to the model; nothing here reaches the caller as an error.
func (o *Orchestrator) execTool(ctx context.Context, call memory.Item) memory.Item {
	var def *tools.ToolDefinition
	for i := range o.tools {
		if o.tools[i].Name == call.Name {
			def = &o.tools[i]
			break
		}
	}

	turnID, _ := telemetry.TurnIDFromContext(ctx)
	emit := func(durationMs int64, outputSize int, errStr string) {
		fields := map[string]any{
			"tool_name":   call.Name,
			"duration_ms": durationMs,
			"input_size":  len(call.Arguments),
			"output_size": outputSize,
			"turn_id":     turnID,
		}
		if errStr != "" {
			fields["error"] = errStr
		} else {
			fields["error"] = nil
		}
		telemetry.Emit("tool_exec", fields)
	}

	start := time.Now()

	if def == nil {
		emit(time.Since(start).Milliseconds(), 0, "tool not found")
		return memory.NewToolResult(call.CallID, fmt.Sprintf("no tool registered: %s", call.Name), true)
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if !gjson.ValidBytes(args) {
		emit(time.Since(start).Milliseconds(), 0, "invalid arguments")
		return memory.NewToolResult(call.CallID, fmt.Sprintf("invalid arguments for %s: not valid JSON", call.Name), true)
	}

	resp, err := def.Function(args)
	if err != nil {
		// Generic error string in telemetry to avoid leaking payloads;
		// the detailed message goes back to the model in the result.
		emit(time.Since(start).Milliseconds(), 0, "tool error")
		return memory.NewToolResult(call.CallID, err.Error(), true)
	}
	emit(time.Since(start).Milliseconds(), len(resp), "")
	return memory.NewToolResult(call.CallID, resp, false)
}
