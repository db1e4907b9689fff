// Package workspace manages per-session directories under the workplace root:
// layout creation, size accounting, and cleanup.
package workspace

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Fixed entries inside every workspace. ConfigDir holds agent configuration
// (skills and command templates); MemoryFile is the persistent context file.
// Both survive a partial cleanup.
const (
	ConfigDir  = ".monco"
	SkillsDir  = "skills"
	CmdDir     = "commands"
	MemoryFile = "MONCO.md"
)

const memoryTemplate = `# Project Context

This is your personal workspace (Session UUID: %s).

## Workspace Information
- Created: %s
- Max Size: %dMB
- Session Expiry: %d hours

## Guidelines
- Keep files organized
- Clean up temporary files when done
- Use meaningful file and directory names
`

// Manager creates and maintains session workspaces under one root directory.
type Manager struct {
	root   string
	logger *slog.Logger
	lock   *flock.Flock
}

// NewManager creates a workspace manager rooted at root.
func NewManager(root string, logger *slog.Logger) *Manager {
	return &Manager{root: root, logger: logger}
}

// Root returns the workplace root directory.
func (m *Manager) Root() string { return m.root }

// LockRoot takes a process-level advisory lock on the workplace root so two
// bot instances never sweep the same tree. Call Unlock on shutdown.
func (m *Manager) LockRoot() error {
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return fmt.Errorf("workspace: create root: %w", err)
	}
	m.lock = flock.New(filepath.Join(m.root, ".monco.lock"))
	ok, err := m.lock.TryLock()
	if err != nil {
		return fmt.Errorf("workspace: lock root: %w", err)
	}
	if !ok {
		return fmt.Errorf("workspace: root %s is locked by another process", m.root)
	}
	return nil
}

// Unlock releases the root lock if held.
func (m *Manager) Unlock() {
	if m.lock != nil {
		_ = m.lock.Unlock()
	}
}

// Path returns the workspace directory for a session UUID.
func (m *Manager) Path(sessionUUID string) string {
	return filepath.Join(m.root, sessionUUID)
}

// Init creates the workspace layout for a session: the directory itself, the
// configuration subtree, and the memory file. Idempotent: an existing memory
// file is left untouched.
func (m *Manager) Init(sessionUUID string, createdAt time.Time, maxSizeMB, expiryHours int) (string, error) {
	path := m.Path(sessionUUID)

	for _, dir := range []string{
		path,
		filepath.Join(path, ConfigDir),
		filepath.Join(path, ConfigDir, SkillsDir),
		filepath.Join(path, ConfigDir, CmdDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("workspace: create %s: %w", dir, err)
		}
	}

	memPath := filepath.Join(path, MemoryFile)
	if _, err := os.Stat(memPath); os.IsNotExist(err) {
		content := fmt.Sprintf(memoryTemplate,
			sessionUUID,
			createdAt.Format("2006-01-02 15:04:05"),
			maxSizeMB,
			expiryHours,
		)
		if err := os.WriteFile(memPath, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("workspace: write memory file: %w", err)
		}
	}

	m.logger.Info("workspace initialized", "path", path)
	return path, nil
}

// SizeBytes sums the file sizes under path. Traversal errors are logged and
// the affected entries count as zero; the walk keeps going.
func (m *Manager) SizeBytes(path string) int64 {
	var total int64
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			m.logger.Warn("workspace size walk error", "path", p, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			m.logger.Warn("workspace size stat error", "path", p, "error", err)
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		m.logger.Warn("workspace size walk failed", "path", path, "error", err)
	}
	return total
}

// SizeMB returns the workspace size in megabytes.
func (m *Manager) SizeMB(path string) float64 {
	return float64(m.SizeBytes(path)) / (1024 * 1024)
}

// FileCount returns the number of regular files under path, best-effort.
func (m *Manager) FileCount(path string) int {
	count := 0
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	return count
}

// CheckLimit reports whether the workspace is strictly below ceiling bytes,
// together with the measured size. Size equal to the ceiling counts as over.
func (m *Manager) CheckLimit(path string, ceiling int64) (bool, int64) {
	size := m.SizeBytes(path)
	return size < ceiling, size
}

// CleanPartial removes every top-level entry except the configuration
// directory and the memory file. Whole subtrees go at once; per-entry
// failures are logged and the cleanup continues.
func (m *Manager) CleanPartial(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("workspace: read %s: %w", path, err)
	}

	for _, entry := range entries {
		if entry.Name() == ConfigDir || entry.Name() == MemoryFile {
			continue
		}
		target := filepath.Join(path, entry.Name())
		if err := os.RemoveAll(target); err != nil {
			m.logger.Warn("workspace cleanup error", "path", target, "error", err)
		}
	}

	m.logger.Info("workspace cleaned", "path", path)
	return nil
}

// Remove deletes the entire workspace directory.
func (m *Manager) Remove(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("workspace: remove %s: %w", path, err)
	}
	return nil
}
