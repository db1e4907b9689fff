package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kaodean/monco/internal/agent"
	"github.com/kaodean/monco/internal/bot"
	"github.com/kaodean/monco/internal/config"
	"github.com/kaodean/monco/internal/llm"
	"github.com/kaodean/monco/internal/mcp"
	"github.com/kaodean/monco/internal/memory"
	"github.com/kaodean/monco/internal/plugins"
	"github.com/kaodean/monco/internal/sessions"
	"github.com/kaodean/monco/internal/store"
	"github.com/kaodean/monco/internal/telemetry"
	"github.com/kaodean/monco/internal/workspace"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and serve slash commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := telemetry.NewLogger(os.Stderr, level)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	metrics := telemetry.NewMetrics()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				logger.Error("metrics listener failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
	}

	ws := workspace.NewManager(cfg.WorkspaceRoot, logger)
	if err := ws.LockRoot(); err != nil {
		return err
	}
	defer ws.Unlock()

	if cfg.OverlayPath != "" {
		go func() {
			if err := cfg.Watch(ctx, logger); err != nil && ctx.Err() == nil {
				logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	var host *plugins.Host
	if cfg.PluginPath != "" {
		host = plugins.NewHost(ctx, logger)
		defer host.Close(context.Background())
	}

	pool := mcp.NewPool()
	defer pool.Close()

	rt := &agent.Runtime{
		LLM:        llm.NewAnthropicClient(),
		Model:      cfg.Model,
		MaxTurns:   cfg.MaxTurns,
		History:    memory.NewHistory(0),
		Metrics:    metrics,
		Logger:     logger,
		Plugins:    host,
		PluginDir:  cfg.PluginPath,
		MCP:        pool,
		MCPServers: cfg.MCPServers,
	}

	// Ledger failures degrade to warnings; the bot runs without usage totals.
	var ledger sessions.Ledger
	var usage bot.UsageSource
	db, err := store.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Warn("usage ledger unavailable", "path", cfg.DBPath, "error", err)
	} else {
		ledger = db
		usage = db
		defer db.Close()
	}

	registry := sessions.NewRegistry(ws, rt, cfg, ledger, metrics, logger)
	if err := registry.StartSweeper(); err != nil {
		return err
	}
	defer registry.Shutdown()

	b, err := bot.New(cfg, registry, ws, usage, metrics, logger)
	if err != nil {
		return err
	}
	if err := b.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := b.Stop(); err != nil {
			logger.Warn("gateway close failed", "error", err)
		}
	}()

	logger.Info("monco is running", "workspace_root", cfg.WorkspaceRoot, "model", cfg.Model)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
