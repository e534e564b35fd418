package agent

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/history"
	"github.com/dotcommander/papermate/internal/normalize"
	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/provider"
	"github.com/dotcommander/papermate/internal/provider/builtin"
)

// Agent is one conversation with one provider.
//
// An Agent is not safe for concurrent use: callers issuing overlapping Ask
// calls must serialize them.
type Agent struct {
	name     string
	session  string
	cfg      config.ProviderConfig
	file     *config.File
	client   provider.Client
	norm     *normalize.Normalizer
	history  *history.History
	tmpl     *template.Template
	defaults provider.Options
	state    State
	log      zerolog.Logger
	observer func(from, to State)
}

// New resolves the configuration for providerName and builds its client.
// Configuration errors are returned here, before any network access.
//
// A nil cfgCtx uses a context rooted at the working directory.
func New(cfgCtx *config.Context, providerName string, opts ...Option) (*Agent, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = builtin.Registry()
	}

	name := strings.ToLower(strings.TrimSpace(providerName))
	if _, ok := o.registry.Lookup(name); !ok {
		return nil, errs.Kindf(errs.ErrUnsupportedProvider, "%q (supported: %s)", name, strings.Join(o.registry.Names(), ", "))
	}

	if cfgCtx == nil {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errs.Wrap(err, "Could not determine the working directory.")
		}
		cfgCtx = config.NewContext(wd, o.registry.Defaults())
	}

	pc, file, err := cfgCtx.Resolve(name, o.configPath, o.registry.Names(), o.overrides)
	if err != nil {
		return nil, err
	}

	tmpl, err := parseTemplate(o.template)
	if err != nil {
		return nil, err
	}

	settings := provider.Settings{Timeout: file.Timeout(), HTTPClient: o.httpClient}
	if settings.HTTPClient == nil {
		if err := ApplyProxyConfig(file.SettingString(config.KeyHTTPProxy, ""), &settings); err != nil {
			return nil, err
		}
	}
	client, err := o.registry.New(name, pc, settings)
	if err != nil {
		return nil, err
	}

	session := uuid.NewString()
	a := &Agent{
		name:    name,
		session: session,
		cfg:     pc,
		file:    file,
		client:  client,
		norm:    normalize.New(o.registry),
		history: history.New(file.MaxHistoryLength()),
		tmpl:    tmpl,
		defaults: provider.Options{
			provider.OptTemperature: file.SettingFloat(config.KeyDefaultTemperature, config.DefaultTemperature),
			provider.OptMaxTokens:   file.SettingInt(config.KeyDefaultMaxTokens, config.DefaultMaxTokens),
		},
		state:    StateIdle,
		log:      o.logger.With().Str("provider", name).Str("session", session).Logger(),
		observer: o.observer,
	}
	a.log.Debug().
		Str("config", file.Path).
		Str("base_url", pc.BaseURL).
		Int("max_history", a.history.Max()).
		Msg("agent ready")
	return a, nil
}

// Ask sends question with the conversation so far and returns the answer.
//
// Transport and response failures never escape: they are returned as a
// string starting with "Error:" and leave the history untouched.
func (a *Agent) Ask(ctx context.Context, question string, opts provider.Options) string {
	a.transition(StateSending)
	start := time.Now()

	prompt, err := render(a.tmpl, question)
	if err != nil {
		return a.fail(err, start)
	}

	msgs := append(a.history.Messages(), proto.User(prompt))
	req := a.requestOptions(opts)
	a.log.Debug().Int("messages", len(msgs)).Str("model", req.Model()).Msg("sending")

	raw := a.client.ChatCompletion(ctx, msgs, req)
	a.logWarnings()

	res := a.norm.Normalize(a.name, raw)
	if !res.OK() {
		return a.fail(res.Err, start)
	}

	a.history.Append(question, res.Content)
	a.transition(StateSuccess)
	a.log.Debug().
		Dur("elapsed", time.Since(start)).
		Int("answer_chars", len(res.Content)).
		Int("history", a.history.Len()).
		Msg("answered")
	a.transition(StateIdle)
	return res.Content
}

func (a *Agent) fail(err error, start time.Time) string {
	a.transition(StateFailed)
	a.log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("request failed")
	a.transition(StateIdle)
	return FailureText(err)
}

func (a *Agent) requestOptions(opts provider.Options) provider.Options {
	out := provider.Options{}
	for k, v := range opts {
		out[k] = v
	}
	for k, v := range a.defaults {
		out = out.With(k, v)
	}
	return out
}

func (a *Agent) logWarnings() {
	w, ok := a.client.(interface{ DrainWarnings() []string })
	if !ok {
		return
	}
	for _, msg := range w.DrainWarnings() {
		a.log.Warn().Msg(msg)
	}
}

func (a *Agent) transition(to State) {
	from := a.state
	a.state = to
	a.log.Debug().Stringer("from", from).Stringer("to", to).Msg("state")
	if a.observer != nil {
		a.observer(from, to)
	}
}

// SetSystemPrompt sets or replaces the leading system message.
func (a *Agent) SetSystemPrompt(text string) {
	a.history.SetSystemPrompt(text)
}

// ClearHistory drops every message, the system message included.
func (a *Agent) ClearHistory() {
	a.history.Clear()
}

// History returns a snapshot of the conversation.
func (a *Agent) History() []proto.Message {
	return a.history.Messages()
}

// RestoreHistory replaces the conversation, e.g. with a saved transcript.
func (a *Agent) RestoreHistory(msgs []proto.Message) {
	a.history.Restore(msgs)
}

// Models lists the models the provider offers.
func (a *Agent) Models() []string {
	return a.client.ListModels()
}

// Provider is the provider name.
func (a *Agent) Provider() string {
	return a.name
}

// DefaultModel is the model used when a call does not set one.
func (a *Agent) DefaultModel() string {
	return a.cfg.DefaultModel
}

// Session is the random id used to correlate log lines.
func (a *Agent) Session() string {
	return a.session
}

// State is the current state. It is StateIdle between calls.
func (a *Agent) State() State {
	return a.state
}

// ApplyProxyConfig configures the provider HTTP client to use an HTTP proxy.
func ApplyProxyConfig(httpProxy string, s *provider.Settings) error {
	if httpProxy == "" {
		return nil
	}
	proxyURL, err := url.Parse(httpProxy)
	if err != nil {
		return errs.Error{Err: err, Reason: "There was an error parsing your proxy URL."}
	}
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return errs.Error{Err: fmt.Errorf("default transport is not *http.Transport"), Reason: "Could not configure proxy."}
	}
	tr := base.Clone()
	tr.Proxy = http.ProxyURL(proxyURL)
	// Ensure we have sensible transport timeouts even when upstream SDKs don't.
	tr.DialContext = (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 30 * time.Second
	tr.IdleConnTimeout = 90 * time.Second
	tr.ExpectContinueTimeout = 1 * time.Second
	s.HTTPClient = &http.Client{Transport: tr, Timeout: s.RequestTimeout()}
	return nil
}
