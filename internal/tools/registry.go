// Package tools implements the workspace-scoped tool set offered to the agent.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kaodean/monco/internal/llm"
)

// Executor executes a tool call and returns the result as a string.
type Executor interface {
	Execute(ctx context.Context, input map[string]interface{}) (string, error)
}

// registration pairs a tool definition with its executor.
type registration struct {
	def  llm.ToolDefinition
	exec Executor
}

// Registry holds the tools offered to one session and dispatches calls to
// their executors.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(name string, def llm.ToolDefinition, exec Executor) {
	r.mu.Lock()
	r.entries[name] = registration{def: def, exec: exec}
	r.mu.Unlock()
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Execute dispatches a single tool call.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) (string, error) {
	r.mu.RLock()
	entry, ok := r.entries[call.Name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("tool %q not registered", call.Name)
	}
	return entry.exec.Execute(ctx, call.Input)
}

// ExecuteConcurrent runs a batch of tool calls in parallel, as the model may
// request several in one turn. Results line up with calls by index; a failed
// call becomes an error result instead of aborting the batch.
func (r *Registry) ExecuteConcurrent(ctx context.Context, calls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, len(calls))

	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, call := range calls {
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			output, err := r.Execute(ctx, call)
			results[i] = resultFor(call, output, err)
		}(i, call)
	}
	wg.Wait()

	return results
}

// resultFor folds a tool outcome into the result sent back to the model.
func resultFor(call llm.ToolCall, output string, err error) llm.ToolResult {
	if err != nil {
		return llm.ToolResult{ToolUseID: call.ID, Content: err.Error(), IsError: true}
	}
	return llm.ToolResult{ToolUseID: call.ID, Content: output}
}

// Definitions returns the registered tool definitions in name order, so the
// tool list offered to the model is stable across turns.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.entries[name].def)
	}
	return defs
}
