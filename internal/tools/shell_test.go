package tools

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestShellRunsInWorkspace(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, "marker.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	sh := &ShellTool{Workspace: ws}
	out, err := sh.Execute(context.Background(), args("command", "ls"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "marker.txt") {
		t.Errorf("output = %q, missing workspace file", out)
	}
}

func TestShellNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	sh := &ShellTool{Workspace: t.TempDir()}

	// A failing command is still a tool result, not a tool error.
	out, err := sh.Execute(context.Background(), args("command", "echo oops >&2; exit 3"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "exit") || !strings.Contains(out, "3") {
		t.Errorf("output = %q, missing exit status", out)
	}
	if !strings.Contains(out, "oops") {
		t.Errorf("output = %q, missing stderr", out)
	}
}

func TestShellTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	sh := &ShellTool{Workspace: t.TempDir(), Timeout: 100 * time.Millisecond}

	start := time.Now()
	if _, err := sh.Execute(context.Background(), args("command", "sleep 5")); err == nil {
		t.Error("timed-out command returned no error")
	}
	if time.Since(start) > 3*time.Second {
		t.Error("timeout not enforced")
	}
}
