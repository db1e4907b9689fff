// Package naming extracts machine-usable project names and repository URLs
// from free-form model output.
package naming

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	namePrefixRe = regexp.MustCompile(`(?i)^(project name:|name:)\s*`)
	nameCharRe   = regexp.MustCompile(`[^a-z0-9_-]`)
	nameShapeRe  = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*[a-z0-9]$`)

	repoMarkerRe = regexp.MustCompile(`(?m)^\s*REPO_URL:\s*(\S+)`)
	repoURLRe    = regexp.MustCompile(`https://github\.com/[\w.-]+/[\w.-]+`)
)

// ProjectName distils a usable directory-safe project name from model output.
// The first non-empty line is stripped of markup, label prefixes, and
// punctuation, then reduced to its first word in lowercase. Anything that
// fails the shape check falls back to a timestamped default, so the result is
// always non-empty and filesystem safe.
func ProjectName(raw string) string {
	var line string
	for _, l := range strings.Split(raw, "\n") {
		if s := strings.TrimSpace(l); s != "" {
			line = s
			break
		}
	}

	line = strings.Trim(line, "#*`\"' ")
	line = namePrefixRe.ReplaceAllString(line, "")
	line = strings.Trim(line, "\"' ")

	if fields := strings.Fields(line); len(fields) > 0 {
		line = fields[0]
	} else {
		line = ""
	}

	name := nameCharRe.ReplaceAllString(strings.ToLower(line), "")

	if len(name) < 3 || !nameShapeRe.MatchString(name) {
		return fmt.Sprintf("project-%d", time.Now().Unix())
	}
	return name
}

// RepoURL extracts a GitHub repository URL from model output. A line starting
// with the REPO_URL: marker wins; otherwise the first github.com owner/repo
// URL in the text is used, with any trailing path (branches, files) stripped.
// An empty result means the output carried no URL, which is not an error.
func RepoURL(raw string) string {
	if m := repoMarkerRe.FindStringSubmatch(raw); m != nil {
		if url := canonical(m[1]); url != "" {
			return url
		}
	}
	if m := repoURLRe.FindString(raw); m != "" {
		return canonical(m)
	}
	return ""
}

// canonical trims a candidate down to https://github.com/<owner>/<repo>.
func canonical(candidate string) string {
	candidate = strings.TrimRight(candidate, ".,;:)]}>\"'")
	m := repoURLRe.FindString(candidate)
	if m == "" {
		return ""
	}
	return strings.TrimSuffix(m, ".git")
}
