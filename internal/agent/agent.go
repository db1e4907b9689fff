// Package agent runs prompts against the model with a workspace-scoped tool
// set, one connected client per user session.
package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kaodean/monco/internal/llm"
	"github.com/kaodean/monco/internal/mcp"
	"github.com/kaodean/monco/internal/memory"
	"github.com/kaodean/monco/internal/plugins"
	"github.com/kaodean/monco/internal/telemetry"
	"github.com/kaodean/monco/internal/tools"
)

// Gate is checked before any model call; ok=false refuses the task with a
// size-limit error. sizeMB and limitMB feed the user-facing message.
type Gate func() (ok bool, sizeMB, limitMB float64)

// Runtime bundles the process-wide dependencies shared by all agent clients.
type Runtime struct {
	LLM        llm.Client
	Model      string
	MaxTurns   int
	History    *memory.History
	Metrics    *telemetry.Metrics
	Logger     *slog.Logger
	Plugins    *plugins.Host
	PluginDir  string
	MCP        *mcp.Pool
	MCPServers []mcp.ServerConfig
}

// Client is a session's connection to the agent runtime: a tool registry
// scoped to one workspace plus the session's conversation history.
type Client struct {
	rt          *Runtime
	sessionUUID string
	workspace   string
	gate        Gate
	onComplete  func(costUSD float64)

	reg       *tools.Registry
	connected bool
}

// NewClient creates a disconnected client bound to one workspace.
// onComplete is called once per finished task with its incremental cost.
func NewClient(rt *Runtime, sessionUUID, workspacePath string, gate Gate, onComplete func(costUSD float64)) *Client {
	return &Client{
		rt:          rt,
		sessionUUID: sessionUUID,
		workspace:   workspacePath,
		gate:        gate,
		onComplete:  onComplete,
	}
}

// Connect builds the tool registry for the workspace: the fixed built-in
// capability set, any WASM skill plugins, and any configured MCP tools.
// Plugin and MCP failures are logged and skipped; only the built-in set is
// required for the client to come up.
func (c *Client) Connect(ctx context.Context) error {
	if c.connected {
		return fmt.Errorf("agent: client already connected")
	}

	reg := tools.NewRegistry()
	tools.RegisterDefault(reg, c.workspace, c.Subtask)

	if c.rt.Plugins != nil && c.rt.PluginDir != "" {
		for _, skill := range c.rt.Plugins.LoadDir(ctx, c.rt.PluginDir) {
			reg.Register(skill.Manifest.Name, llm.ToolDefinition{
				Name:        skill.Manifest.Name,
				Description: skill.Manifest.Description,
				InputSchema: skill.Manifest.InputSchema,
			}, skill)
		}
	}

	for _, server := range c.rt.MCPServers {
		client, err := c.rt.MCP.Connect(ctx, server)
		if err != nil {
			c.rt.Logger.Warn("mcp server unavailable", "server", server.Name, "error", err)
			continue
		}
		infos, err := client.ListTools(ctx)
		if err != nil {
			c.rt.Logger.Warn("mcp tool listing failed", "server", server.Name, "error", err)
			continue
		}
		for _, info := range infos {
			reg.Register(info.Name, llm.ToolDefinition{
				Name:        info.Name,
				Description: info.Description,
				InputSchema: info.InputSchema,
			}, &mcpExecutor{client: client, tool: info.Name})
		}
	}

	c.reg = reg
	c.connected = true
	c.rt.Logger.Info("agent client connected",
		"session", c.sessionUUID, "workspace", c.workspace, "tools", reg.Len())
	return nil
}

// Connected reports whether the client holds a live tool registry.
func (c *Client) Connected() bool { return c.connected }

// Close disconnects the client and clears its conversation history.
func (c *Client) Close() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	c.reg = nil
	c.rt.History.Clear(c.sessionUUID)
	return nil
}

// mcpExecutor adapts a pooled MCP connection to the tools.Executor interface.
type mcpExecutor struct {
	client *mcp.Client
	tool   string
}

func (e *mcpExecutor) Execute(ctx context.Context, input map[string]interface{}) (string, error) {
	return e.client.CallTool(ctx, e.tool, input)
}
