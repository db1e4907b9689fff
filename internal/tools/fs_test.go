package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func args(kv ...string) map[string]interface{} {
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

func TestWriteThenRead(t *testing.T) {
	ws := t.TempDir()
	ctx := context.Background()

	w := &WriteFileTool{Workspace: ws}
	if _, err := w.Execute(ctx, args("path", "src/main.go", "content", "package main\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	r := &ReadFileTool{Workspace: ws}
	got, err := r.Execute(ctx, args("path", "src/main.go"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "package main\n" {
		t.Errorf("read = %q", got)
	}
}

func TestReadMissingFile(t *testing.T) {
	r := &ReadFileTool{Workspace: t.TempDir()}
	if _, err := r.Execute(context.Background(), args("path", "nope.txt")); err == nil {
		t.Error("reading a missing file succeeded")
	}
}

func TestPathEscapeRejected(t *testing.T) {
	ws := t.TempDir()
	outside := filepath.Join(filepath.Dir(ws), "outside.txt")
	ctx := context.Background()

	tests := []struct {
		name string
		path string
	}{
		{"dotdot", "../outside.txt"},
		{"nested dotdot", "src/../../outside.txt"},
		{"absolute outside", outside},
	}

	w := &WriteFileTool{Workspace: ws}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := w.Execute(ctx, args("path", tt.path, "content", "x")); err == nil {
				t.Errorf("write to %q escaped the workspace", tt.path)
			}
		})
	}
	if _, err := os.Stat(outside); !os.IsNotExist(err) {
		t.Error("a file was created outside the workspace")
	}
}

func TestSymlinkEscapeRejected(t *testing.T) {
	ws := t.TempDir()
	target := t.TempDir()
	if err := os.Symlink(target, filepath.Join(ws, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	w := &WriteFileTool{Workspace: ws}
	if _, err := w.Execute(context.Background(), args("path", "link/escape.txt", "content", "x")); err == nil {
		t.Error("write through a symlink escaped the workspace")
	}
}

func TestEditFile(t *testing.T) {
	ws := t.TempDir()
	ctx := context.Background()
	path := filepath.Join(ws, "config.yaml")
	if err := os.WriteFile(path, []byte("port: 8080\nhost: localhost\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := &EditFileTool{Workspace: ws}
	if _, err := e.Execute(ctx, args("path", "config.yaml", "old_text", "8080", "new_text", "9090")); err != nil {
		t.Fatalf("edit: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "port: 9090\nhost: localhost\n" {
		t.Errorf("content after edit = %q", data)
	}
}

func TestEditFileUniqueness(t *testing.T) {
	ws := t.TempDir()
	ctx := context.Background()
	if err := os.WriteFile(filepath.Join(ws, "f.txt"), []byte("aaa bbb aaa"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := &EditFileTool{Workspace: ws}

	if _, err := e.Execute(ctx, args("path", "f.txt", "old_text", "missing", "new_text", "x")); err == nil {
		t.Error("edit with absent old_text succeeded")
	}
	_, err := e.Execute(ctx, args("path", "f.txt", "old_text", "aaa", "new_text", "x"))
	if err == nil || !strings.Contains(err.Error(), "more than once") {
		t.Errorf("edit with ambiguous old_text: err = %v", err)
	}
}

func TestReadTruncation(t *testing.T) {
	ws := t.TempDir()
	big := make([]byte, maxReadBytes+100)
	for i := range big {
		big[i] = 'a'
	}
	if err := os.WriteFile(filepath.Join(ws, "big.txt"), big, 0o644); err != nil {
		t.Fatal(err)
	}

	r := &ReadFileTool{Workspace: ws}
	got, err := r.Execute(context.Background(), args("path", "big.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasSuffix(got, "[truncated]") {
		t.Error("oversized read was not truncated")
	}
}
