package agent

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kaodean/monco/internal/llm"
)

const (
	maxTokensPerTurn = 8192
	subtaskMaxTurns  = 5
)

type ctxKey int

const depthKey ctxKey = 0

// Execute runs one task with the runtime's default turn budget.
func (c *Client) Execute(ctx context.Context, prompt string, verbose bool) *Result {
	return c.ExecuteTurns(ctx, prompt, verbose, c.rt.MaxTurns)
}

// ExecuteTurns runs one task against the session's workspace with an explicit
// turn budget; budgets outside (0, MaxTurns] fall back to the runtime default.
// It never returns an error and never panics outward: every failure is folded
// into the Result so command handlers deal with exactly one shape.
func (c *Client) ExecuteTurns(ctx context.Context, prompt string, verbose bool, maxTurns int) (result *Result) {
	if maxTurns <= 0 || maxTurns > c.rt.MaxTurns {
		maxTurns = c.rt.MaxTurns
	}
	start := time.Now()

	result = &Result{
		Metadata: Metadata{
			InvocationID:  ulid.MustNew(ulid.Timestamp(start), rand.New(rand.NewSource(start.UnixNano()))).String(),
			SessionUUID:   c.sessionUUID,
			WorkspacePath: c.workspace,
			StartTime:     start,
		},
	}

	var lines []string
	defer func() {
		if r := recover(); r != nil {
			result.Errors = append(result.Errors, ErrorRecord{
				Type:    ErrKindException,
				Message: fmt.Sprintf("%v", r),
			})
			lines = append(lines, "", fmt.Sprintf("[!] Error occurred: %v", r))
			result.Metadata.Status = "exception"
		}
		result.Success = len(result.Errors) == 0
		result.Metadata.EndTime = time.Now()
		result.Metadata.Duration = result.Metadata.EndTime.Sub(start)
		result.Output = strings.Join(lines, "\n")
	}()

	if !c.connected {
		result.Errors = append(result.Errors, ErrorRecord{
			Type:    ErrKindException,
			Message: "agent client is not connected",
		})
		result.Metadata.Status = "exception"
		return result
	}

	// Size gate: refuse before any model call.
	if ok, sizeMB, limitMB := c.gate(); !ok {
		msg := fmt.Sprintf(
			"Workspace size limit exceeded: %.1fMB / %.0fMB\nPlease use /cleanup to free up space or /reset to start fresh.",
			sizeMB, limitMB)
		result.Errors = append(result.Errors, ErrorRecord{Type: ErrKindSizeLimit, Message: msg})
		lines = append(lines, "[!] "+msg)
		result.Metadata.Status = "error"
		return result
	}

	if verbose {
		lines = append(lines,
			strings.Repeat("=", 60),
			"Monco Execution Started",
			fmt.Sprintf("Time: %s", start.Format("2006-01-02 15:04:05")),
			fmt.Sprintf("Session UUID: %s", c.sessionUUID),
			fmt.Sprintf("Task: %s", truncate(prompt, 80)),
			fmt.Sprintf("Workspace: %s", c.workspace),
			strings.Repeat("=", 60),
			"",
		)
	}

	messages := c.rt.History.Load(c.sessionUUID)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})
	newMessages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}

	var usage llm.TokenUsage
	var apiDuration time.Duration
	turns := 0
	failed := false

	for turn := 0; turn < maxTurns; turn++ {
		turns++

		resp, callDur, err := c.chatTurn(ctx, messages)
		apiDuration += callDur
		if err != nil {
			result.Errors = append(result.Errors, ErrorRecord{
				Type:    ErrKindExecution,
				Message: err.Error(),
			})
			lines = append(lines, "", fmt.Sprintf("[!] Error occurred: %v", err))
			failed = true
			break
		}

		usage.Add(resp.Usage)

		// Model text always reaches the output; banners and tool traces are
		// verbose-only.
		if resp.Content != "" {
			if verbose {
				lines = append(lines, "Claude: "+strings.TrimSpace(resp.Content), "")
			} else {
				lines = append(lines, strings.TrimSpace(resp.Content))
			}
		}

		if len(resp.ToolCalls) == 0 || resp.StopReason != llm.StopToolUse {
			assistant := llm.Message{Role: llm.RoleAssistant, Content: resp.Content}
			messages = append(messages, assistant)
			newMessages = append(newMessages, assistant)
			break
		}

		for _, tc := range resp.ToolCalls {
			result.ToolsUsed = append(result.ToolsUsed, ToolRecord{
				ID:    tc.ID,
				Name:  tc.Name,
				Input: tc.Input,
			})
			if verbose {
				lines = append(lines, describeToolCall(tc)...)
			}
		}

		assistant := llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls}
		messages = append(messages, assistant)
		newMessages = append(newMessages, assistant)

		toolResults := c.reg.ExecuteConcurrent(ctx, resp.ToolCalls)
		for i, tr := range toolResults {
			status := "ok"
			if tr.IsError {
				status = "error"
			}
			if c.rt.Metrics != nil {
				c.rt.Metrics.ToolCallsTotal.WithLabelValues(resp.ToolCalls[i].Name, status).Inc()
			}
			if verbose {
				lines = append(lines, fmt.Sprintf("    [+] Result: %s", truncate(tr.Content, 150)),
					strings.Repeat("─", 40), "")
			}
			trMsg := llm.Message{Role: llm.RoleUser, ToolResult: &toolResults[i]}
			messages = append(messages, trMsg)
			newMessages = append(newMessages, trMsg)
		}
	}

	result.Metadata.Turns = turns
	result.Metadata.APIDuration = apiDuration
	result.Metadata.CostUSD = llm.EstimateCostUSD(c.rt.Model, usage)

	if failed {
		result.Metadata.Status = "error"
	} else {
		result.Metadata.Status = "success"
		c.rt.History.Append(c.sessionUUID, newMessages...)
	}

	if c.onComplete != nil {
		c.onComplete(result.Metadata.CostUSD)
	}
	if c.rt.Metrics != nil {
		c.rt.Metrics.ObserveTask(!failed, time.Since(start), result.Metadata.CostUSD)
	}

	if verbose {
		lines = append(lines, completionSummary(result, failed, time.Since(start), apiDuration)...)
	}

	return result
}

// chatTurn makes one streaming model call and returns the accumulated
// response and the call's wall duration.
func (c *Client) chatTurn(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, time.Duration, error) {
	req := llm.ChatRequest{
		Model:     c.rt.Model,
		Messages:  messages,
		MaxTokens: maxTokensPerTurn,
		Tools:     c.reg.Definitions(),
	}

	callStart := time.Now()
	ch, err := c.rt.LLM.ChatStream(ctx, req)
	if err != nil {
		return nil, time.Since(callStart), err
	}

	var resp *llm.ChatResponse
	var text strings.Builder
	for event := range ch {
		switch event.Type {
		case "text":
			text.WriteString(event.Text)
		case "error":
			return nil, time.Since(callStart), event.Error
		case "done":
			resp = event.Response
		}
	}
	if resp == nil {
		return nil, time.Since(callStart), fmt.Errorf("stream ended without a terminal response")
	}
	if text.Len() > 0 {
		resp.Content = text.String()
	}
	return resp, time.Since(callStart), nil
}

// Subtask runs a delegated prompt in a fresh, history-free loop inside the
// same workspace. One level of delegation only.
func (c *Client) Subtask(ctx context.Context, prompt string) (string, error) {
	if depth, _ := ctx.Value(depthKey).(int); depth >= 1 {
		return "", fmt.Errorf("agent: nested sub-task delegation is not supported")
	}
	ctx = context.WithValue(ctx, depthKey, 1)

	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}
	var output string

	for turn := 0; turn < subtaskMaxTurns; turn++ {
		resp, err := c.rt.LLM.Chat(ctx, llm.ChatRequest{
			Model:     c.rt.Model,
			Messages:  messages,
			MaxTokens: maxTokensPerTurn,
			Tools:     c.reg.Definitions(),
		})
		if err != nil {
			return "", fmt.Errorf("subtask: %w", err)
		}

		if resp.Content != "" {
			output = resp.Content
		}
		if len(resp.ToolCalls) == 0 || resp.StopReason != llm.StopToolUse {
			return output, nil
		}

		messages = append(messages, llm.Message{
			Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls,
		})
		toolResults := c.reg.ExecuteConcurrent(ctx, resp.ToolCalls)
		for i := range toolResults {
			messages = append(messages, llm.Message{Role: llm.RoleUser, ToolResult: &toolResults[i]})
		}
	}
	return output, nil
}

// describeToolCall renders the verbose transcript lines for one tool call,
// surfacing the argument users care about per tool.
func describeToolCall(tc llm.ToolCall) []string {
	lines := []string{"", strings.Repeat("─", 40), fmt.Sprintf("[*] TOOL: %s", tc.Name)}

	str := func(key string) string {
		s, _ := tc.Input[key].(string)
		return s
	}

	switch tc.Name {
	case "bash":
		lines = append(lines, fmt.Sprintf("    └─> Command: %s", truncate(str("command"), 100)))
	case "read_file", "write_file", "edit_file":
		lines = append(lines, fmt.Sprintf("    └─> File: %s", str("path")))
	case "web_search":
		lines = append(lines, fmt.Sprintf("    └─> Search: %s", str("query")))
	case "web_fetch":
		lines = append(lines, fmt.Sprintf("    └─> URL: %s", str("url")))
	case "task":
		lines = append(lines, fmt.Sprintf("    └─> Description: %s", str("description")))
	}

	return append(lines, "")
}

// completionSummary renders the verbose execution statistics block.
func completionSummary(result *Result, failed bool, wall, api time.Duration) []string {
	marker := "+"
	if failed {
		marker = "-"
	}
	lines := []string{
		strings.Repeat("=", 60),
		fmt.Sprintf("%s Execution Completed: %s", marker, result.Metadata.Status),
		"",
		"Execution Statistics:",
		fmt.Sprintf("   Conversation Turns: %d", result.Metadata.Turns),
		fmt.Sprintf("   Total Execution Time: %.2f sec", wall.Seconds()),
		fmt.Sprintf("   API Time: %.2f sec", api.Seconds()),
		fmt.Sprintf("   Total Cost: $%.4f USD", result.Metadata.CostUSD),
		fmt.Sprintf("   Tools Used: %d", len(result.ToolsUsed)),
	}

	if len(result.ToolsUsed) > 0 {
		counts := make(map[string]int)
		for _, t := range result.ToolsUsed {
			counts[t.Name]++
		}
		names := make([]string, 0, len(counts))
		for name := range counts {
			names = append(names, name)
		}
		sort.Strings(names)
		lines = append(lines, "   Tool Usage Details:")
		for _, name := range names {
			lines = append(lines, fmt.Sprintf("     - %s: %d times", name, counts[name]))
		}
	}

	return append(lines, strings.Repeat("=", 60))
}

// truncate shortens s to at most n runes; slicing on runes keeps multibyte
// text valid UTF-8.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
