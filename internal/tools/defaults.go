package tools

import (
	"github.com/kaodean/monco/internal/llm"
)

// definer is implemented by the built-in tools; Definition returns name,
// description, and input schema.
type definer interface {
	Executor
	Definition() (string, string, map[string]interface{})
}

// RegisterDefault registers the fixed capability set for one workspace:
// file read/write/edit, shell, glob/grep search, web search/fetch, and
// sub-task delegation. Every tool is scoped to the workspace directory.
func RegisterDefault(reg *Registry, workspace string, run SubtaskFunc) {
	builtins := []definer{
		&ReadFileTool{Workspace: workspace},
		&WriteFileTool{Workspace: workspace},
		&EditFileTool{Workspace: workspace},
		&ShellTool{Workspace: workspace},
		&GlobTool{Workspace: workspace},
		&GrepTool{Workspace: workspace},
		&WebFetchTool{},
		&WebSearchTool{},
		&TaskTool{Run: run},
	}

	for _, t := range builtins {
		name, desc, inputSchema := t.Definition()
		reg.Register(name, llm.ToolDefinition{
			Name:        name,
			Description: desc,
			InputSchema: inputSchema,
		}, t)
	}
}
