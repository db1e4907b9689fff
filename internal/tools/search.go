package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	maxGlobMatches = 200
	maxGrepMatches = 100
	maxGrepLine    = 500
)

// GlobTool lists workspace files matching a glob pattern.
type GlobTool struct {
	Workspace string
}

func (t *GlobTool) Definition() (string, string, map[string]interface{}) {
	return "glob", "List workspace files matching a glob pattern, e.g. **/*.go",
		schema(map[string]string{"pattern": "Glob pattern, relative to the workspace"}, "pattern")
}

func (t *GlobTool) Execute(_ context.Context, input map[string]interface{}) (string, error) {
	pattern, err := stringArg(input, "pattern")
	if err != nil {
		return "", err
	}

	fsys := os.DirFS(t.Workspace)
	var matches []string

	// fs.Glob has no ** support; walk and match on both the full relative
	// path and the base name so the common **/*.ext patterns behave.
	suffix := pattern
	if i := strings.LastIndex(pattern, "**/"); i >= 0 {
		suffix = pattern[i+3:]
	}

	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ok, _ := filepath.Match(pattern, path)
		if !ok {
			ok, _ = filepath.Match(suffix, filepath.Base(path))
		}
		if ok {
			matches = append(matches, path)
			if len(matches) >= maxGlobMatches {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("glob %q: %w", pattern, err)
	}

	if len(matches) == 0 {
		return "no files match", nil
	}
	return strings.Join(matches, "\n"), nil
}

// GrepTool searches workspace file contents with a regular expression.
type GrepTool struct {
	Workspace string
}

func (t *GrepTool) Definition() (string, string, map[string]interface{}) {
	return "grep", "Search workspace file contents with a regular expression",
		schema(map[string]string{
			"pattern": "RE2 regular expression",
			"path":    "Subdirectory to search; defaults to the whole workspace",
		}, "pattern")
}

func (t *GrepTool) Execute(_ context.Context, input map[string]interface{}) (string, error) {
	pattern, err := stringArg(input, "pattern")
	if err != nil {
		return "", err
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("grep: invalid pattern: %w", err)
	}

	start := "."
	if sub, ok := input["path"].(string); ok && sub != "" {
		start = filepath.Clean(sub)
		if strings.HasPrefix(start, "..") || filepath.IsAbs(start) {
			return "", fmt.Errorf("grep: path %q is outside the workspace", sub)
		}
	}

	fsys := os.DirFS(t.Workspace)
	var sb strings.Builder
	count := 0

	err = fs.WalkDir(fsys, start, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		f, err := fsys.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if !re.MatchString(line) {
				continue
			}
			if len(line) > maxGrepLine {
				line = line[:maxGrepLine] + "..."
			}
			fmt.Fprintf(&sb, "%s:%d: %s\n", path, lineNo, line)
			count++
			if count >= maxGrepMatches {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("grep: %w", err)
	}

	if count == 0 {
		return "no matches", nil
	}
	return sb.String(), nil
}
