package llm

import (
	"encoding/json"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

func TestRequestParams(t *testing.T) {
	req := ChatRequest{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 4096,
		Messages: []Message{
			{Role: RoleUser, Content: "list the files"},
			{Role: RoleAssistant, Content: "Running ls.", ToolCalls: []ToolCall{{
				ID:    "t1",
				Name:  "bash",
				Input: map[string]interface{}{"command": "ls"},
			}}},
			{Role: RoleUser, ToolResult: &ToolResult{ToolUseID: "t1", Content: "a.txt"}},
		},
		Tools: []ToolDefinition{{
			Name:        "bash",
			Description: "Run a shell command",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"command": map[string]interface{}{"type": "string"},
				},
			},
		}},
	}

	params := requestParams(req)

	if string(params.Model) != req.Model {
		t.Errorf("Model = %q, want %q", params.Model, req.Model)
	}
	if params.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", params.MaxTokens)
	}
	if len(params.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(params.Messages))
	}
	if params.Messages[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("message 1 role = %q, want assistant", params.Messages[1].Role)
	}
	if params.Messages[2].Role != anthropic.MessageParamRoleUser {
		t.Errorf("message 2 role = %q, want user", params.Messages[2].Role)
	}
	if len(params.Tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(params.Tools))
	}
	if params.Tools[0].OfTool == nil || params.Tools[0].OfTool.Name != "bash" {
		t.Errorf("tool param = %+v, want bash", params.Tools[0])
	}
}

func TestRequestParamsSkipsUnserializableSchema(t *testing.T) {
	req := ChatRequest{
		Model:     "claude-sonnet-4-20250514",
		MaxTokens: 1024,
		Tools: []ToolDefinition{
			{Name: "broken", InputSchema: map[string]interface{}{"bad": make(chan int)}},
			{Name: "fine", InputSchema: map[string]interface{}{"type": "object"}},
		},
	}

	params := requestParams(req)
	if len(params.Tools) != 1 {
		t.Fatalf("tools = %d, want 1", len(params.Tools))
	}
	if params.Tools[0].OfTool.Name != "fine" {
		t.Errorf("kept tool = %q, want fine", params.Tools[0].OfTool.Name)
	}
}

func TestResponseFrom(t *testing.T) {
	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "Let me run that."},
			{Type: "tool_use", ID: "t1", Name: "bash", Input: json.RawMessage(`{"command":"ls"}`)},
		},
		StopReason: anthropic.StopReasonToolUse,
		Usage: anthropic.Usage{
			InputTokens:  120,
			OutputTokens: 30,
		},
	}

	resp := responseFrom(msg)

	if resp.StopReason != StopToolUse {
		t.Errorf("StopReason = %q, want %q", resp.StopReason, StopToolUse)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.ToolCalls))
	}
	tc := resp.ToolCalls[0]
	if tc.ID != "t1" || tc.Name != "bash" {
		t.Errorf("tool call = %+v", tc)
	}
	if cmd, _ := tc.Input["command"].(string); cmd != "ls" {
		t.Errorf("tool input = %v", tc.Input)
	}
	if resp.Usage.InputTokens != 120 || resp.Usage.OutputTokens != 30 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	// Text assembly belongs to the caller; responseFrom leaves Content empty.
	if resp.Content != "" {
		t.Errorf("Content = %q, want empty", resp.Content)
	}
}

func TestStopReasonFrom(t *testing.T) {
	tests := []struct {
		in   anthropic.StopReason
		want StopReason
	}{
		{anthropic.StopReasonEndTurn, StopEndTurn},
		{anthropic.StopReasonMaxTokens, StopMaxTokens},
		{anthropic.StopReasonToolUse, StopToolUse},
		{anthropic.StopReasonStopSequence, StopEndTurn},
		{"", StopEndTurn},
	}
	for _, tt := range tests {
		if got := stopReasonFrom(tt.in); got != tt.want {
			t.Errorf("stopReasonFrom(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
