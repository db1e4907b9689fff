package agent

import (
	"time"
)

// Error kinds recorded in a Result.
const (
	ErrKindSizeLimit = "workspace_size_limit"
	ErrKindExecution = "execution_error"
	ErrKindException = "exception"
)

// ErrorRecord describes one failure captured during execution.
type ErrorRecord struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ToolRecord is an audit record of a single tool invocation.
type ToolRecord struct {
	ID    string                 `json:"id"`
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input"`
}

// Metadata carries execution statistics for one task.
type Metadata struct {
	InvocationID  string        `json:"invocation_id"`
	SessionUUID   string        `json:"session_uuid"`
	WorkspacePath string        `json:"workspace_path"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Turns         int           `json:"total_turns"`
	Duration      time.Duration `json:"duration"`
	APIDuration   time.Duration `json:"duration_api"`
	CostUSD       float64       `json:"total_cost_usd"`
	Status        string        `json:"status"` // "success", "error", "exception"
}

// Result is the structured outcome of one task execution. Execute always
// returns a Result, never an error: Success is false iff Errors is non-empty.
type Result struct {
	Output    string       `json:"output"`
	Success   bool         `json:"success"`
	Metadata  Metadata     `json:"metadata"`
	ToolsUsed []ToolRecord `json:"tools_used"`
	Errors    []ErrorRecord `json:"errors"`
}
