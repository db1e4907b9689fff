package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch re-reads the limit fields whenever the overlay file changes.
// It returns immediately when no overlay file is configured and blocks
// until ctx is cancelled otherwise. Reload failures are logged and the
// previous limits stay in effect.
func (c *Config) Watch(ctx context.Context, logger *slog.Logger) error {
	if c.OverlayPath == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which would
	// otherwise drop the watch on the file itself.
	if err := watcher.Add(filepath.Dir(c.OverlayPath)); err != nil {
		return err
	}

	target := filepath.Clean(c.OverlayPath)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := c.reloadLimits(); err != nil {
				logger.Warn("config reload failed", "path", c.OverlayPath, "error", err)
				continue
			}
			l := c.Limits()
			logger.Info("config limits reloaded",
				"max_workspace_mb", l.MaxWorkspaceMB,
				"session_expiry", l.SessionExpiry)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
