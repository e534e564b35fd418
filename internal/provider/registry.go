package provider

import (
	"maps"
	"slices"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/errs"
)

// Entry describes one registered provider.
type Entry struct {
	New         Constructor
	Policy      string
	Description string
	BaseURL     string
	Model       string
	Models      []string
}

// Registry maps provider names to entries.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

// Register adds or replaces name.
func (r *Registry) Register(name string, e Entry) {
	r.entries[name] = e
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.entries))
}

// New builds the client registered as name.
func (r *Registry) New(name string, cfg config.ProviderConfig, s Settings) (Client, error) {
	e, ok := r.entries[name]
	if !ok || e.New == nil {
		return nil, errs.Kindf(errs.ErrUnsupportedProvider, "%q", name)
	}
	return e.New(cfg, s)
}

// Defaults lists every entry in the shape used to bootstrap a config file.
func (r *Registry) Defaults() []config.ProviderDefault {
	out := make([]config.ProviderDefault, 0, len(r.entries))
	for _, name := range r.Names() {
		e := r.entries[name]
		out = append(out, config.ProviderDefault{
			Name:         name,
			Description:  e.Description,
			BaseURL:      e.BaseURL,
			DefaultModel: e.Model,
		})
	}
	return out
}
