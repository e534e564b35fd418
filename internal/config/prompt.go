package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const filePrefix = "file://"

// SystemPrompt resolves a system prompt reference. A file:// reference is
// read from disk, with front matter dropped from markdown files; any other
// value is the prompt text itself. Web pages are fetched by the caller.
func SystemPrompt(ref string) (string, error) {
	path, ok := strings.CutPrefix(ref, filePrefix)
	if !ok {
		return ref, nil
	}
	bts, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return stripFrontmatter(string(bts))
	default:
		return string(bts), nil
	}
}

// stripFrontmatter removes a leading "---" delimited YAML block. The block
// must parse; a prompt file with a broken header is rejected.
func stripFrontmatter(content string) (string, error) {
	lines := strings.Split(content, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return content, nil
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "---" {
			continue
		}
		var meta map[string]any
		if err := yaml.Unmarshal([]byte(strings.Join(lines[1:i], "\n")), &meta); err != nil {
			return "", fmt.Errorf("system prompt front matter: %w", err)
		}
		return strings.TrimLeft(strings.Join(lines[i+1:], "\n"), "\r\n"), nil
	}
	return "", fmt.Errorf("system prompt front matter: missing closing ---")
}
