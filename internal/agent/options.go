package agent

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dotcommander/papermate/internal/provider"
)

// Option configures an Agent.
type Option func(*options)

type options struct {
	configPath string
	overrides  map[string]any
	registry   *provider.Registry
	httpClient *http.Client
	logger     zerolog.Logger
	template   string
	observer   func(from, to State)
}

// WithConfigPath loads the given file instead of the shared one.
func WithConfigPath(path string) Option {
	return func(o *options) { o.configPath = path }
}

// WithOverrides sets values that win over the configuration file.
func WithOverrides(overrides map[string]any) Option {
	return func(o *options) { o.overrides = overrides }
}

// WithRegistry replaces the built-in provider registry.
func WithRegistry(r *provider.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithHTTPClient sets the HTTP client used by the provider.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTemplate replaces the question template. The template receives the
// question as {{ .Question }}.
func WithTemplate(tmpl string) Option {
	return func(o *options) { o.template = tmpl }
}

// WithObserver is called on every state transition.
func WithObserver(fn func(from, to State)) Option {
	return func(o *options) { o.observer = fn }
}
