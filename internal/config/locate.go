package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/dotcommander/papermate/internal/errs"
)

//go:embed config_template.yml
var configTemplate string

// AppName is the directory name used under the user config dir.
const AppName = "papermate"

// ProviderDefault documents one provider section of a bootstrapped file.
type ProviderDefault struct {
	Name         string
	Description  string
	BaseURL      string
	DefaultModel string
}

var probeNames = []string{
	"config/config.yaml",
	"config/config.yml",
	"config/config.json",
	"config.yaml",
	"config.yml",
	"config.json",
	"../config/config.yaml",
	"../config/config.yml",
	"../config/config.json",
}

// Candidates lists every path Locate probes, in order.
func Candidates(dir, home string) []string {
	out := make([]string, 0, len(probeNames)+1)
	for _, name := range probeNames {
		out = append(out, filepath.Clean(filepath.Join(dir, name)))
	}
	if home != "" {
		out = append(out, UserConfigPath(home))
	}
	return out
}

// UserConfigPath is the per-user configuration file under home.
func UserConfigPath(home string) string {
	return filepath.Join(home, ".config", AppName, "config.yaml")
}

// Locate returns the first existing candidate file.
func Locate(dir, home string) (string, bool) {
	for _, path := range Candidates(dir, home) {
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// ErrExists is returned by Bootstrap when the target file is already present.
var ErrExists = errors.New("configuration file already exists")

// Bootstrap renders the default configuration to path. It never overwrites
// an existing file.
func Bootstrap(path string, providers []ProviderDefault) error {
	if _, err := os.Stat(path); err == nil {
		return ErrExists
	} else if !errors.Is(err, os.ErrNotExist) {
		return errs.Wrap(err, "Could not check configuration file.")
	}

	bts, err := RenderTemplate(providers)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return errs.Wrap(err, "Could not create configuration directory.")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, defaultFilePerm)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return errs.Wrap(err, "Could not create configuration file.")
	}
	defer f.Close() //nolint:errcheck
	if _, err := f.Write(bts); err != nil {
		return errs.Wrap(err, "Could not write configuration file.")
	}
	return nil
}

// RenderTemplate renders the embedded configuration template.
func RenderTemplate(providers []ProviderDefault) ([]byte, error) {
	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return nil, errs.Wrap(err, "Could not parse configuration template.")
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Providers []ProviderDefault
		Settings  Settings
	}{providers, DefaultSettings()}); err != nil {
		return nil, errs.Wrap(err, fmt.Sprintf("Could not render configuration template: %v", err))
	}
	return buf.Bytes(), nil
}
