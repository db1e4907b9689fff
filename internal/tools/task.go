package tools

import (
	"context"
	"fmt"
)

// SubtaskFunc runs a delegated sub-task prompt and returns its text output.
// The agent package injects the actual runner; the indirection keeps tools
// free of a dependency on the loop that calls them.
type SubtaskFunc func(ctx context.Context, prompt string) (string, error)

// TaskTool delegates a self-contained sub-task to a fresh agent run inside
// the same workspace.
type TaskTool struct {
	Run SubtaskFunc
}

func (t *TaskTool) Definition() (string, string, map[string]interface{}) {
	return "task", "Delegate a self-contained sub-task to a helper agent and return its result",
		schema(map[string]string{
			"description": "Short description of the sub-task",
			"prompt":      "Full instructions for the helper agent",
		}, "prompt")
}

func (t *TaskTool) Execute(ctx context.Context, input map[string]interface{}) (string, error) {
	prompt, err := stringArg(input, "prompt")
	if err != nil {
		return "", err
	}
	if t.Run == nil {
		return "", fmt.Errorf("task: delegation is not available")
	}
	return t.Run(ctx, prompt)
}
