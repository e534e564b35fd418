package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/dotcommander/papermate/internal/errs"
)

// Context is the configuration shared by every agent of one process.
//
// The file is located, bootstrapped when missing, and loaded at most once.
type Context struct {
	Dir       string
	Home      string
	Providers []ProviderDefault

	once         sync.Once
	file         *File
	err          error
	bootstrapped bool
}

// NewContext creates a Context probing dir and the user config dir under
// the current user's home.
func NewContext(dir string, providers []ProviderDefault) *Context {
	home, _ := os.UserHomeDir()
	return &Context{Dir: dir, Home: home, Providers: providers}
}

// File returns the shared configuration file.
func (c *Context) File() (*File, error) {
	c.once.Do(func() {
		path, found := Locate(c.Dir, c.Home)
		if !found {
			path = c.DefaultPath()
			if err := Bootstrap(path, c.Providers); err != nil && !errors.Is(err, ErrExists) {
				c.err = err
				return
			}
			c.bootstrapped = true
		}
		c.file, c.err = Load(path)
	})
	return c.file, c.err
}

// Bootstrapped reports whether File had to write a fresh configuration.
func (c *Context) Bootstrapped() bool {
	return c.bootstrapped
}

// DefaultPath is where a missing configuration gets bootstrapped.
func (c *Context) DefaultPath() string {
	if c.Home != "" {
		return UserConfigPath(c.Home)
	}
	return filepath.Join(c.Dir, "config", "config.yaml")
}

// Resolve resolves the named provider. A non-empty path loads that file
// privately instead of the shared one.
func (c *Context) Resolve(name, path string, supported []string, overrides map[string]any) (ProviderConfig, *File, error) {
	if !slices.Contains(supported, name) {
		return ProviderConfig{}, nil, errs.Kindf(errs.ErrUnsupportedProvider, "%q (supported: %s)", name, strings.Join(supported, ", "))
	}

	var (
		f   *File
		err error
	)
	if path != "" {
		f, err = Load(path)
	} else {
		f, err = c.File()
	}
	if err != nil {
		if errs.IsConfiguration(err) {
			return ProviderConfig{}, nil, err
		}
		return ProviderConfig{}, nil, errs.Kindf(errs.ErrConfigFile, "%v", err)
	}
	pc, err := f.Resolve(name, supported, overrides)
	if err != nil {
		return ProviderConfig{}, nil, err
	}
	return pc, f, nil
}
