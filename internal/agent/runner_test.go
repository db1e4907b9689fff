package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kaodean/monco/internal/llm"
	"github.com/kaodean/monco/internal/memory"
)

func openGate() (bool, float64, float64)   { return true, 0, 50 }
func closedGate() (bool, float64, float64) { return false, 60.5, 50 }

func testClient(t *testing.T, mock *llm.MockClient, gate Gate, onComplete func(float64)) *Client {
	t.Helper()

	rt := &Runtime{
		LLM:      mock,
		Model:    "claude-sonnet-4-20250514",
		MaxTurns: 10,
		History:  memory.NewHistory(0),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c := NewClient(rt, "uuid-1", t.TempDir(), gate, onComplete)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c
}

func TestExecuteSimpleResponse(t *testing.T) {
	mock := &llm.MockClient{Responses: []*llm.ChatResponse{
		{Content: "Hello from the workspace", StopReason: llm.StopEndTurn,
			Usage: llm.TokenUsage{InputTokens: 100, OutputTokens: 20}},
	}}
	var gotCost float64
	c := testClient(t, mock, openGate, func(cost float64) { gotCost = cost })

	result := c.Execute(context.Background(), "say hello", false)

	if !result.Success {
		t.Fatalf("Success = false, errors: %v", result.Errors)
	}
	if result.Metadata.Status != "success" {
		t.Errorf("Status = %q", result.Metadata.Status)
	}
	if result.Metadata.Turns != 1 {
		t.Errorf("Turns = %d, want 1", result.Metadata.Turns)
	}
	if !strings.Contains(result.Output, "Hello from the workspace") {
		t.Errorf("Output = %q, missing model text", result.Output)
	}
	if result.Metadata.InvocationID == "" || result.Metadata.SessionUUID != "uuid-1" {
		t.Errorf("bad metadata: %+v", result.Metadata)
	}
	if gotCost <= 0 {
		t.Errorf("onComplete cost = %f, want > 0", gotCost)
	}

	// The exchange is persisted for the next task.
	if msgs := c.rt.History.Load("uuid-1"); len(msgs) != 2 {
		t.Errorf("history = %d messages, want 2", len(msgs))
	}
}

func TestExecuteToolLoop(t *testing.T) {
	mock := &llm.MockClient{Responses: []*llm.ChatResponse{
		{
			ToolCalls: []llm.ToolCall{{
				ID:   "t1",
				Name: "write_file",
				Input: map[string]interface{}{
					"path":    "hello.txt",
					"content": "hi",
				},
			}},
			StopReason: llm.StopToolUse,
		},
		{Content: "File written.", StopReason: llm.StopEndTurn},
	}}
	c := testClient(t, mock, openGate, nil)

	result := c.Execute(context.Background(), "write a file", true)

	if !result.Success {
		t.Fatalf("Success = false, errors: %v", result.Errors)
	}
	if result.Metadata.Turns != 2 {
		t.Errorf("Turns = %d, want 2", result.Metadata.Turns)
	}
	if len(result.ToolsUsed) != 1 || result.ToolsUsed[0].Name != "write_file" {
		t.Errorf("ToolsUsed = %+v", result.ToolsUsed)
	}

	data, err := os.ReadFile(filepath.Join(c.workspace, "hello.txt"))
	if err != nil {
		t.Fatalf("tool did not write the file: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("file content = %q", data)
	}

	if !strings.Contains(result.Output, "TOOL: write_file") {
		t.Errorf("verbose output missing tool trace: %q", result.Output)
	}

	// Second model call must carry the tool result back.
	if len(mock.Requests) != 2 {
		t.Fatalf("model calls = %d, want 2", len(mock.Requests))
	}
	last := mock.Requests[1].Messages
	if last[len(last)-1].ToolResult == nil {
		t.Error("second request does not end with a tool result")
	}
}

func TestExecuteSizeLimitRefusal(t *testing.T) {
	mock := &llm.MockClient{}
	c := testClient(t, mock, closedGate, nil)

	result := c.Execute(context.Background(), "anything", true)

	if result.Success {
		t.Fatal("Success = true for an over-limit workspace")
	}
	if len(result.Errors) != 1 || result.Errors[0].Type != ErrKindSizeLimit {
		t.Fatalf("Errors = %+v, want one %s", result.Errors, ErrKindSizeLimit)
	}
	if !strings.Contains(result.Errors[0].Message, "60.5MB") {
		t.Errorf("message lacks the measured size: %q", result.Errors[0].Message)
	}
	if len(mock.Requests) != 0 {
		t.Errorf("model was called %d times despite the refusal", len(mock.Requests))
	}
}

func TestExecuteModelError(t *testing.T) {
	mock := &llm.MockClient{Err: errors.New("api unavailable")}
	c := testClient(t, mock, openGate, nil)

	result := c.Execute(context.Background(), "anything", false)

	if result.Success {
		t.Fatal("Success = true despite a model error")
	}
	if result.Metadata.Status != "error" {
		t.Errorf("Status = %q, want error", result.Metadata.Status)
	}
	if len(result.Errors) != 1 || result.Errors[0].Type != ErrKindExecution {
		t.Fatalf("Errors = %+v", result.Errors)
	}

	// Failed tasks leave history untouched.
	if msgs := c.rt.History.Load("uuid-1"); len(msgs) != 0 {
		t.Errorf("failed task persisted %d history messages", len(msgs))
	}
}

func TestExecuteDisconnected(t *testing.T) {
	mock := &llm.MockClient{}
	c := testClient(t, mock, openGate, nil)
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	result := c.Execute(context.Background(), "anything", false)
	if result.Success {
		t.Fatal("Success = true on a closed client")
	}
	if result.Errors[0].Type != ErrKindException {
		t.Errorf("error type = %q", result.Errors[0].Type)
	}
}

// toolUseResponses scripts n identical turns that each request one tool call,
// so the loop only stops when the budget runs out.
func toolUseResponses(n int) []*llm.ChatResponse {
	resps := make([]*llm.ChatResponse, n)
	for i := range resps {
		resps[i] = &llm.ChatResponse{
			ToolCalls: []llm.ToolCall{{
				ID:    "t1",
				Name:  "write_file",
				Input: map[string]interface{}{"path": "loop.txt", "content": "x"},
			}},
			StopReason: llm.StopToolUse,
		}
	}
	return resps
}

func TestExecuteTurnsBudget(t *testing.T) {
	mock := &llm.MockClient{Responses: toolUseResponses(5)}
	c := testClient(t, mock, openGate, nil)

	result := c.ExecuteTurns(context.Background(), "keep going", false, 3)

	if !result.Success {
		t.Fatalf("Success = false, errors: %v", result.Errors)
	}
	if result.Metadata.Turns != 3 {
		t.Errorf("Turns = %d, want 3", result.Metadata.Turns)
	}
	if len(mock.Requests) != 3 {
		t.Errorf("model calls = %d, want 3", len(mock.Requests))
	}
}

func TestExecuteTurnsClampsToRuntimeDefault(t *testing.T) {
	mock := &llm.MockClient{Responses: toolUseResponses(4)}
	rt := &Runtime{
		LLM:      mock,
		Model:    "claude-sonnet-4-20250514",
		MaxTurns: 2,
		History:  memory.NewHistory(0),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c := NewClient(rt, "uuid-1", t.TempDir(), openGate, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// A budget above the runtime ceiling falls back to the ceiling.
	result := c.ExecuteTurns(context.Background(), "keep going", false, 99)
	if result.Metadata.Turns != 2 {
		t.Errorf("Turns = %d, want 2", result.Metadata.Turns)
	}

	// Zero means the default, never a task with no turns.
	mock2 := &llm.MockClient{Responses: []*llm.ChatResponse{
		{Content: "done", StopReason: llm.StopEndTurn},
	}}
	c2 := testClient(t, mock2, openGate, nil)
	result = c2.ExecuteTurns(context.Background(), "one shot", false, 0)
	if !result.Success || result.Metadata.Turns != 1 {
		t.Errorf("zero budget: Turns = %d, Success = %v, want 1 turn success", result.Metadata.Turns, result.Success)
	}
}

func TestTruncateRuneSafe(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short ascii", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"long ascii", "hello world", 5, "hello..."},
		{"multibyte cut", "αβγδε", 3, "αβγ..."},
		{"emoji cut", "🙂🙂🙂🙂", 2, "🙂🙂..."},
		{"multibyte fits", "日本語", 3, "日本語"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) produced invalid UTF-8", tt.in, tt.n)
			}
		})
	}
}

func TestSubtaskDepthGuard(t *testing.T) {
	mock := &llm.MockClient{Responses: []*llm.ChatResponse{
		{Content: "sub result", StopReason: llm.StopEndTurn},
	}}
	c := testClient(t, mock, openGate, nil)

	out, err := c.Subtask(context.Background(), "do a thing")
	if err != nil {
		t.Fatalf("Subtask: %v", err)
	}
	if out != "sub result" {
		t.Errorf("out = %q", out)
	}

	nested := context.WithValue(context.Background(), depthKey, 1)
	if _, err := c.Subtask(nested, "deeper"); err == nil {
		t.Error("nested Subtask succeeded, want refusal")
	}
}
