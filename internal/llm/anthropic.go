package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// AnthropicClient implements Client against the Anthropic Messages API.
type AnthropicClient struct {
	api anthropic.Client
}

// NewAnthropicClient creates a client that reads ANTHROPIC_API_KEY from the
// environment.
func NewAnthropicClient() *AnthropicClient {
	return &AnthropicClient{api: anthropic.NewClient()}
}

// NewAnthropicClientWithKey creates a client with an explicit API key.
func NewAnthropicClientWithKey(apiKey string) *AnthropicClient {
	return &AnthropicClient{api: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

// Chat sends a blocking request and returns the complete response.
func (c *AnthropicClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	msg, err := c.api.Messages.New(ctx, requestParams(req))
	if err != nil {
		return nil, fmt.Errorf("llm: chat: %w", err)
	}

	resp := responseFrom(msg)
	for _, block := range msg.Content {
		if block.Type == "text" {
			resp.Content += block.Text
		}
	}
	return resp, nil
}

// ChatStream sends a streaming request. Text deltas arrive as "text" events
// as the model produces them; the terminal "done" event carries the full
// response with the assembled text, tool calls, usage, and stop reason.
func (c *AnthropicClient) ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	stream := c.api.Messages.NewStreaming(ctx, requestParams(req))

	ch := make(chan StreamEvent, 16)
	go func() {
		defer close(ch)

		// Tool inputs stream as JSON fragments, so tool calls and usage come
		// from the accumulated message; text is assembled from the deltas.
		var acc anthropic.Message
		var text strings.Builder

		for stream.Next() {
			event := stream.Current()
			if err := acc.Accumulate(event); err != nil {
				ch <- StreamEvent{Type: "error", Error: fmt.Errorf("llm: accumulate: %w", err)}
				return
			}
			if event.Type == "content_block_delta" && event.Delta.Type == "text_delta" {
				text.WriteString(event.Delta.Text)
				ch <- StreamEvent{Type: "text", Text: event.Delta.Text}
			}
		}
		if err := stream.Err(); err != nil {
			ch <- StreamEvent{Type: "error", Error: fmt.Errorf("llm: stream: %w", err)}
			return
		}

		resp := responseFrom(&acc)
		resp.Content = text.String()
		ch <- StreamEvent{Type: "done", Response: resp}
	}()

	return ch, nil
}

// requestParams converts a ChatRequest to Messages API parameters.
func requestParams(req ChatRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}

	for _, m := range req.Messages {
		params.Messages = append(params.Messages, messageParam(m))
	}

	for _, t := range req.Tools {
		schemaJSON, err := json.Marshal(t.InputSchema)
		if err != nil {
			// A tool whose schema cannot be serialized is not offered at all;
			// a half-described tool would only produce invalid calls.
			continue
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: json.RawMessage(schemaJSON),
				},
			},
		})
	}

	return params
}

// messageParam converts one conversation message to its wire form.
func messageParam(m Message) anthropic.MessageParam {
	if m.Role == RoleAssistant {
		var blocks []anthropic.ContentBlockParamUnion
		if m.Content != "" || len(m.ToolCalls) == 0 {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		for _, tc := range m.ToolCalls {
			blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Input, tc.Name))
		}
		return anthropic.NewAssistantMessage(blocks...)
	}

	if m.ToolResult != nil {
		return anthropic.NewUserMessage(
			anthropic.NewToolResultBlock(m.ToolResult.ToolUseID, m.ToolResult.Content, m.ToolResult.IsError),
		)
	}
	return anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content))
}

// responseFrom extracts tool calls, usage, and the stop reason from an API
// message. Content assembly is left to the caller because the streaming and
// blocking paths source text differently.
func responseFrom(msg *anthropic.Message) *ChatResponse {
	resp := &ChatResponse{
		StopReason: stopReasonFrom(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			CacheRead:    int(msg.Usage.CacheReadInputTokens),
			CacheWrite:   int(msg.Usage.CacheCreationInputTokens),
		},
	}

	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		input := make(map[string]interface{})
		if len(block.Input) > 0 {
			if err := json.Unmarshal(block.Input, &input); err != nil {
				input = map[string]interface{}{
					"_error": fmt.Sprintf("invalid tool input: %v", err),
				}
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:    block.ID,
			Name:  block.Name,
			Input: input,
		})
	}

	return resp
}

func stopReasonFrom(reason anthropic.StopReason) StopReason {
	switch reason {
	case anthropic.StopReasonMaxTokens:
		return StopMaxTokens
	case anthropic.StopReasonToolUse:
		return StopToolUse
	default:
		return StopEndTurn
	}
}
