// Package anthropic adapts the provider contract onto the Anthropic
// Messages API. Reasoning traces map to extended-thinking blocks; the
// block signature is the opaque replay payload.
package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fernwell/reasonloop/internal/provider"
	"github.com/fernwell/reasonloop/memory"
)

// answerTokens is the generation headroom on top of the thinking budget;
// max_tokens must exceed the budget or the API rejects the request.
const answerTokens = 4096

type Client struct {
	client *sdk.Client
	model  sdk.Model
	budget int64
}

// NewClient returns a Messages API adapter. An empty apiKey defers to the
// SDK's environment lookup. Extra request options are passed through to
// the SDK client (tests inject a transport this way).
func NewClient(apiKey, model, effort string, extra ...option.RequestOption) *Client {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	opts = append(opts, extra...)
	c := sdk.NewClient(opts...)
	return &Client{
		client: &c,
		model:  sdk.Model(model),
		budget: thinkingBudget(effort),
	}
}

// thinkingBudget maps a reasoning-effort level onto a thinking token
// budget, the closest control this API offers.
func thinkingBudget(effort string) int64 {
	switch strings.ToLower(strings.TrimSpace(effort)) {
	case "low":
		return 1024
	case "high":
		return 8192
	default:
		return 4096
	}
}

// CreateTurn sends the conversation and returns the classified output.
func (c *Client) CreateTurn(ctx context.Context, req provider.Request) (*provider.Response, error) {
	params := sdk.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.budget + answerTokens,
		Messages:  buildMessages(req.Items),
		Thinking:  sdk.ThinkingConfigParamOfEnabled(c.budget),
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}

	items := make([]memory.Item, 0, len(msg.Content))
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case sdk.ThinkingBlock:
			items = append(items, memory.Item{
				Kind:   memory.KindReasoning,
				ID:     msg.ID,
				Text:   v.Thinking,
				Opaque: v.Signature,
			})
		case sdk.ToolUseBlock:
			items = append(items, memory.Item{
				Kind:      memory.KindToolCall,
				ID:        v.ID,
				CallID:    v.ID,
				Name:      v.Name,
				Arguments: json.RawMessage(v.JSON.Input.Raw()),
			})
		case sdk.TextBlock:
			items = append(items, memory.Item{
				Kind: memory.KindAssistantMessage,
				ID:   msg.ID,
				Text: v.Text,
			})
		}
	}

	return &provider.Response{
		Items: items,
		Usage: provider.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
			CachedTokens: msg.Usage.CacheReadInputTokens,
			// Thinking tokens are not reported separately by this API.
		},
	}, nil
}

// buildMessages regroups the flat log into the role-alternating message
// shape this API expects: all items the service emitted in one response
// (thinking, tool_use, text) form a single assistant message, and the
// tool results answering it form a single user message. The log stores
// (call, result) pairs interleaved, so tool calls keep extending the
// current assistant message while their results buffer; a reasoning or
// text item after buffered results marks the next response and flushes
// the completed assistant/results pair.
func buildMessages(items []memory.Item) []sdk.MessageParam {
	var out []sdk.MessageParam
	var assistantBlocks []sdk.ContentBlockParamUnion
	var resultBlocks []sdk.ContentBlockParamUnion

	flushAssistant := func() {
		if len(assistantBlocks) > 0 {
			out = append(out, sdk.NewAssistantMessage(assistantBlocks...))
			assistantBlocks = nil
		}
	}
	flushResults := func() {
		if len(resultBlocks) > 0 {
			out = append(out, sdk.NewUserMessage(resultBlocks...))
			resultBlocks = nil
		}
	}
	startResponse := func() {
		if len(resultBlocks) > 0 {
			flushAssistant()
			flushResults()
		}
	}

	for _, it := range items {
		switch it.Kind {
		case memory.KindUserMessage:
			flushAssistant()
			flushResults()
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(it.Text)))
		case memory.KindReasoning:
			startResponse()
			assistantBlocks = append(assistantBlocks, sdk.ContentBlockParamUnion{
				OfThinking: &sdk.ThinkingBlockParam{
					Thinking:  it.Text,
					Signature: it.Opaque,
				},
			})
		case memory.KindAssistantMessage:
			startResponse()
			assistantBlocks = append(assistantBlocks, sdk.NewTextBlock(it.Text))
		case memory.KindToolCall:
			// Same response as the preceding thinking block even when
			// results for earlier calls are already buffered.
			assistantBlocks = append(assistantBlocks, sdk.ContentBlockParamUnion{
				OfToolUse: &sdk.ToolUseBlockParam{
					ID:    it.CallID,
					Name:  it.Name,
					Input: json.RawMessage(it.Arguments),
				},
			})
		case memory.KindToolResult:
			resultBlocks = append(resultBlocks, sdk.NewToolResultBlock(it.CallID, it.Output, it.IsError))
		}
	}
	flushAssistant()
	flushResults()
	return out
}

func buildTools(tools []provider.ToolSchema) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		out = append(out, sdk.ToolUnionParam{OfTool: &sdk.ToolParam{
			Name:        t.Name,
			Description: sdk.String(t.Description),
			InputSchema: sdk.ToolInputSchemaParam{Properties: t.InputSchema.Properties},
		}})
	}
	return out
}
