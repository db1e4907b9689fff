// Package config loads bot configuration from the environment and an
// optional YAML overlay file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kaodean/monco/internal/mcp"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultMaxWorkspaceMB = 50
	DefaultExpiryHours    = 24
	DefaultSweepHours     = 1
	DefaultModel          = "claude-sonnet-4-20250514"
	DefaultMaxTurns       = 50
)

// Limits holds the mutable workspace limits. They can be changed at runtime
// by editing the YAML overlay file; everything else requires a restart.
type Limits struct {
	MaxWorkspaceMB int           `yaml:"max_workspace_mb"`
	SessionExpiry  time.Duration `yaml:"session_expiry"`
}

// Config is the resolved bot configuration.
type Config struct {
	DiscordToken  string
	WorkspaceRoot string
	PluginPath    string
	Model         string
	MaxTurns      int
	SweepInterval time.Duration
	MetricsAddr   string
	DBPath        string
	OverlayPath   string

	// MCP servers whose tools are offered to every session.
	MCPServers []mcp.ServerConfig

	mu     sync.RWMutex
	limits Limits
}

// overlay is the YAML overlay file structure.
type overlay struct {
	MaxWorkspaceMB int                `yaml:"max_workspace_mb"`
	ExpiryHours    int                `yaml:"session_expiry_hours"`
	Model          string             `yaml:"model"`
	MaxTurns       int                `yaml:"max_turns"`
	MCPServers     []mcp.ServerConfig `yaml:"mcp_servers"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present. MONCO_CONFIG may point at a YAML
// overlay file whose limit fields can be edited while the bot runs.
func Load() (*Config, error) {
	// Missing .env is fine; explicit env vars win either way.
	_ = godotenv.Load()

	token := os.Getenv("DISCORD_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("config: DISCORD_BOT_TOKEN is not set")
	}

	root := os.Getenv("WORKPLACE_ROOT")
	if root == "" {
		root = filepath.Join(".", "workplace")
	}

	cfg := &Config{
		DiscordToken:  token,
		WorkspaceRoot: root,
		PluginPath:    os.Getenv("PLUGIN_PATH"),
		Model:         envString("MONCO_MODEL", DefaultModel),
		MaxTurns:      envInt("MONCO_MAX_TURNS", DefaultMaxTurns),
		SweepInterval: time.Duration(envInt("CLEANUP_INTERVAL_HOURS", DefaultSweepHours)) * time.Hour,
		MetricsAddr:   os.Getenv("METRICS_ADDR"),
		DBPath:        envString("MONCO_DB_PATH", filepath.Join(root, "monco.db")),
		OverlayPath:   os.Getenv("MONCO_CONFIG"),
		limits: Limits{
			MaxWorkspaceMB: envInt("MAX_WORKSPACE_SIZE_MB", DefaultMaxWorkspaceMB),
			SessionExpiry:  time.Duration(envInt("SESSION_EXPIRY_HOURS", DefaultExpiryHours)) * time.Hour,
		},
	}

	if cfg.OverlayPath != "" {
		if err := cfg.applyOverlay(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Limits returns a snapshot of the mutable limits.
func (c *Config) Limits() Limits {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.limits
}

// MaxWorkspaceBytes returns the workspace ceiling in bytes.
func (c *Config) MaxWorkspaceBytes() int64 {
	return int64(c.Limits().MaxWorkspaceMB) * 1024 * 1024
}

// SessionExpiry returns the idle duration after which sessions expire.
func (c *Config) SessionExpiry() time.Duration {
	return c.Limits().SessionExpiry
}

// applyOverlay reads the YAML overlay file and folds it into the config.
func (c *Config) applyOverlay() error {
	data, err := os.ReadFile(c.OverlayPath)
	if err != nil {
		return fmt.Errorf("config: read overlay %s: %w", c.OverlayPath, err)
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("config: parse overlay %s: %w", c.OverlayPath, err)
	}

	c.mu.Lock()
	if o.MaxWorkspaceMB > 0 {
		c.limits.MaxWorkspaceMB = o.MaxWorkspaceMB
	}
	if o.ExpiryHours > 0 {
		c.limits.SessionExpiry = time.Duration(o.ExpiryHours) * time.Hour
	}
	c.mu.Unlock()

	if o.Model != "" {
		c.Model = o.Model
	}
	if o.MaxTurns > 0 {
		c.MaxTurns = o.MaxTurns
	}
	if len(o.MCPServers) > 0 {
		c.MCPServers = o.MCPServers
	}

	return nil
}

// reloadLimits re-reads only the limit fields from the overlay file. Used by
// the watcher; model, turn, and MCP settings stay fixed for the process
// lifetime because live sessions already hold them.
func (c *Config) reloadLimits() error {
	data, err := os.ReadFile(c.OverlayPath)
	if err != nil {
		return err
	}

	var o overlay
	if err := yaml.Unmarshal(data, &o); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if o.MaxWorkspaceMB > 0 {
		c.limits.MaxWorkspaceMB = o.MaxWorkspaceMB
	}
	if o.ExpiryHours > 0 {
		c.limits.SessionExpiry = time.Duration(o.ExpiryHours) * time.Hour
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
