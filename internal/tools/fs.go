package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const maxReadBytes = 256 * 1024

// schema builds a flat object schema with required string properties.
func schema(props map[string]string, required ...string) map[string]interface{} {
	properties := make(map[string]interface{}, len(props))
	for name, desc := range props {
		properties[name] = map[string]interface{}{
			"type":        "string",
			"description": desc,
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func stringArg(input map[string]interface{}, key string) (string, error) {
	v, ok := input[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// inRoot resolves a user-supplied path inside the workspace via os.Root so
// that symlinks and ".." cannot escape it.
func inRoot(workspace, path string, fn func(root *os.Root, rel string) (string, error)) (string, error) {
	root, err := os.OpenRoot(workspace)
	if err != nil {
		return "", fmt.Errorf("open workspace: %w", err)
	}
	defer root.Close()

	rel := path
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(workspace, rel)
		if err != nil || strings.HasPrefix(r, "..") {
			return "", fmt.Errorf("path %q is outside the workspace", path)
		}
		rel = r
	}
	rel = filepath.Clean(rel)
	if rel == "." {
		rel = ""
	}

	return fn(root, rel)
}

// ReadFileTool reads a file confined to the workspace.
type ReadFileTool struct {
	Workspace string
}

// Definition describes the tool to the model.
func (t *ReadFileTool) Definition() (string, string, map[string]interface{}) {
	return "read_file", "Read the contents of a file in the workspace",
		schema(map[string]string{"path": "Path to the file, relative to the workspace"}, "path")
}

// Execute reads up to maxReadBytes of the file.
func (t *ReadFileTool) Execute(_ context.Context, input map[string]interface{}) (string, error) {
	path, err := stringArg(input, "path")
	if err != nil {
		return "", err
	}

	return inRoot(t.Workspace, path, func(root *os.Root, rel string) (string, error) {
		f, err := root.Open(rel)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxReadBytes+1))
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		if len(data) > maxReadBytes {
			return string(data[:maxReadBytes]) + "\n[truncated]", nil
		}
		return string(data), nil
	})
}

// WriteFileTool writes a file confined to the workspace, creating parent
// directories as needed.
type WriteFileTool struct {
	Workspace string
}

func (t *WriteFileTool) Definition() (string, string, map[string]interface{}) {
	return "write_file", "Create or overwrite a file in the workspace",
		schema(map[string]string{
			"path":    "Path to the file, relative to the workspace",
			"content": "Full content to write",
		}, "path", "content")
}

func (t *WriteFileTool) Execute(_ context.Context, input map[string]interface{}) (string, error) {
	path, err := stringArg(input, "path")
	if err != nil {
		return "", err
	}
	content, ok := input["content"].(string)
	if !ok {
		return "", fmt.Errorf("content is required")
	}

	return inRoot(t.Workspace, path, func(root *os.Root, rel string) (string, error) {
		if dir := filepath.Dir(rel); dir != "." && dir != "" {
			if err := root.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("write %s: %w", path, err)
			}
		}
		f, err := root.Create(rel)
		if err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
	})
}

// EditFileTool replaces an exact text fragment in a workspace file.
type EditFileTool struct {
	Workspace string
}

func (t *EditFileTool) Definition() (string, string, map[string]interface{}) {
	return "edit_file", "Replace an exact text fragment in a workspace file. The fragment must occur exactly once.",
		schema(map[string]string{
			"path":     "Path to the file, relative to the workspace",
			"old_text": "Exact text to replace; must be unique in the file",
			"new_text": "Replacement text",
		}, "path", "old_text", "new_text")
}

func (t *EditFileTool) Execute(_ context.Context, input map[string]interface{}) (string, error) {
	path, err := stringArg(input, "path")
	if err != nil {
		return "", err
	}
	oldText, err := stringArg(input, "old_text")
	if err != nil {
		return "", err
	}
	newText, ok := input["new_text"].(string)
	if !ok {
		return "", fmt.Errorf("new_text is required")
	}

	return inRoot(t.Workspace, path, func(root *os.Root, rel string) (string, error) {
		f, err := root.Open(rel)
		if err != nil {
			return "", fmt.Errorf("edit %s: %w", path, err)
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return "", fmt.Errorf("edit %s: %w", path, err)
		}

		content := string(data)
		switch strings.Count(content, oldText) {
		case 0:
			return "", fmt.Errorf("edit %s: old_text not found", path)
		case 1:
			// unique, proceed
		default:
			return "", fmt.Errorf("edit %s: old_text occurs more than once", path)
		}

		content = strings.Replace(content, oldText, newText, 1)

		out, err := root.Create(rel)
		if err != nil {
			return "", fmt.Errorf("edit %s: %w", path, err)
		}
		if _, err := out.Write([]byte(content)); err != nil {
			_ = out.Close()
			return "", fmt.Errorf("edit %s: %w", path, err)
		}
		if err := out.Close(); err != nil {
			return "", fmt.Errorf("edit %s: %w", path, err)
		}
		return fmt.Sprintf("edited %s", path), nil
	})
}
