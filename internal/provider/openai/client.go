// Package openai implements the provider contract against the OpenAI
// Responses API. Reasoning items are round-tripped with their encrypted
// payloads so the service can resume its chain of thought across requests
// without server-side storage.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fernwell/reasonloop/internal/provider"
	"github.com/fernwell/reasonloop/memory"
)

const defaultBaseURL = "https://api.openai.com"

const (
	defaultReasoningEffort = "medium"
	maxErrorBodyBytes      = 2048
)

type responseEnvelope struct {
	Output []responseItem `json:"output"`
	Usage  usagePayload   `json:"usage"`
}

type responseItem struct {
	Type             string            `json:"type"`
	ID               string            `json:"id,omitempty"`
	Role             string            `json:"role,omitempty"`
	Content          []responseContent `json:"content,omitempty"`
	CallID           string            `json:"call_id,omitempty"`
	Name             string            `json:"name,omitempty"`
	Arguments        string            `json:"arguments,omitempty"`
	Summary          []summaryContent  `json:"summary,omitempty"`
	EncryptedContent string            `json:"encrypted_content,omitempty"`
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type summaryContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usagePayload struct {
	InputTokens        int64 `json:"input_tokens"`
	OutputTokens       int64 `json:"output_tokens"`
	InputTokensDetails struct {
		CachedTokens int64 `json:"cached_tokens"`
	} `json:"input_tokens_details"`
	OutputTokensDetails struct {
		ReasoningTokens int64 `json:"reasoning_tokens"`
	} `json:"output_tokens_details"`
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	effort  string
	client  *http.Client
}

// NewClient returns a Responses API client. An empty baseURL selects the
// public endpoint; an empty effort selects "medium".
func NewClient(apiKey, model, effort, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		effort:  normalizeReasoningEffort(effort),
		client:  &http.Client{Timeout: 600 * time.Second},
	}
}

func (c *Client) responsesEndpoint() string {
	return c.baseURL + "/v1/responses"
}

// CreateTurn sends the conversation and returns the classified output.
func (c *Client) CreateTurn(ctx context.Context, req provider.Request) (*provider.Response, error) {
	payload := c.buildRequestPayload(req)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.responsesEndpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status=%s body=%q", provider.ErrUnauthorized, resp.Status, readErrorBody(resp))
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: status=%s", provider.ErrRateLimited, resp.Status)
	case resp.StatusCode >= 500:
		return nil, provider.ErrUnavailable
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, c.requestError(resp, payload)
	}

	var envelope responseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	return &provider.Response{
		Items: convertOutput(envelope.Output),
		Usage: provider.Usage{
			InputTokens:     envelope.Usage.InputTokens,
			OutputTokens:    envelope.Usage.OutputTokens,
			ReasoningTokens: envelope.Usage.OutputTokensDetails.ReasoningTokens,
			CachedTokens:    envelope.Usage.InputTokensDetails.CachedTokens,
		},
	}, nil
}

func (c *Client) buildRequestPayload(req provider.Request) map[string]any {
	payload := map[string]any{
		"model":      c.model,
		"input":      buildInputItems(req.Items),
		"reasoning":  map[string]any{"effort": c.effort, "summary": "auto"},
		"include":    []string{"reasoning.encrypted_content"},
		"store":      false,
		"truncation": "disabled",
	}
	if len(req.Tools) > 0 {
		payload["tools"] = buildToolPayload(req.Tools)
		payload["tool_choice"] = "auto"
		payload["parallel_tool_calls"] = false
	}
	return payload
}

func buildInputItems(items []memory.Item) []map[string]any {
	input := make([]map[string]any, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case memory.KindUserMessage:
			input = append(input, map[string]any{
				"role":    "user",
				"content": it.Text,
			})
		case memory.KindAssistantMessage:
			input = append(input, map[string]any{
				"role":    "assistant",
				"content": it.Text,
			})
		case memory.KindReasoning:
			entry := map[string]any{
				"type":    "reasoning",
				"id":      it.ID,
				"summary": buildSummary(it.Text),
			}
			if it.Opaque != "" {
				entry["encrypted_content"] = it.Opaque
			}
			input = append(input, entry)
		case memory.KindToolCall:
			input = append(input, map[string]any{
				"type":      "function_call",
				"call_id":   it.CallID,
				"name":      it.Name,
				"arguments": string(it.Arguments),
			})
		case memory.KindToolResult:
			input = append(input, map[string]any{
				"type":    "function_call_output",
				"call_id": it.CallID,
				"output":  it.Output,
			})
		}
	}
	return input
}

// buildSummary re-encodes a stored reasoning summary. The service rejects
// replayed reasoning items whose summary shape differs from what it sent.
func buildSummary(text string) []map[string]any {
	if text == "" {
		return []map[string]any{}
	}
	return []map[string]any{{"type": "summary_text", "text": text}}
}

func buildToolPayload(tools []provider.ToolSchema) []map[string]any {
	payload := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		payload = append(payload, map[string]any{
			"type":        "function",
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  tool.InputSchema,
		})
	}
	return payload
}

func convertOutput(output []responseItem) []memory.Item {
	items := make([]memory.Item, 0, len(output))
	for _, item := range output {
		switch item.Type {
		case "message":
			var text strings.Builder
			for _, part := range item.Content {
				if part.Type == "output_text" || part.Type == "text" {
					text.WriteString(part.Text)
				}
			}
			items = append(items, memory.Item{
				Kind: memory.KindAssistantMessage,
				ID:   item.ID,
				Text: text.String(),
			})
		case "function_call":
			items = append(items, memory.Item{
				Kind:      memory.KindToolCall,
				ID:        item.ID,
				CallID:    item.CallID,
				Name:      item.Name,
				Arguments: json.RawMessage(item.Arguments),
			})
		case "reasoning":
			var summary strings.Builder
			for _, part := range item.Summary {
				if part.Type == "summary_text" {
					summary.WriteString(part.Text)
				}
			}
			items = append(items, memory.Item{
				Kind:   memory.KindReasoning,
				ID:     item.ID,
				Text:   summary.String(),
				Opaque: item.EncryptedContent,
			})
		}
	}
	return items
}

func (c *Client) requestError(resp *http.Response, payload map[string]any) error {
	return fmt.Errorf(
		"openai error: %s endpoint=%s diag={%s} - %s",
		resp.Status,
		c.responsesEndpoint(),
		summarizeRequestPayload(payload),
		readErrorBody(resp),
	)
}

func summarizeRequestPayload(payload map[string]any) string {
	inputItems := 0
	if items, ok := payload["input"].([]map[string]any); ok {
		inputItems = len(items)
	}
	hasTools := false
	if tools, ok := payload["tools"].([]map[string]any); ok {
		hasTools = len(tools) > 0
	}
	return fmt.Sprintf("input_items=%d has_tools=%t", inputItems, hasTools)
}

func normalizeReasoningEffort(effort string) string {
	switch strings.ToLower(strings.TrimSpace(effort)) {
	case "low":
		return "low"
	case "medium":
		return "medium"
	case "high":
		return "high"
	default:
		return defaultReasoningEffort
	}
}

func readErrorBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return strings.TrimSpace(string(body))
}
