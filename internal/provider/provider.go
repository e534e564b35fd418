// Package provider defines the chat completion capability shared by every
// backend and the registry that maps provider names to constructors.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cast"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/proto"
)

// Option keys understood by the built-in variants.
const (
	OptModel            = "model"
	OptTemperature      = "temperature"
	OptMaxTokens        = "max_tokens"
	OptTopP             = "top_p"
	OptFrequencyPenalty = "frequency_penalty"
	OptPresencePenalty  = "presence_penalty"
)

// Fallbacks used when neither options nor settings carry a value.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1000
	DefaultTimeout     = 60 * time.Second
)

// Client is a chat completion backend.
//
// ChatCompletion never returns an error: transport failures are reported
// through RawResponse.Err.
type Client interface {
	ChatCompletion(ctx context.Context, msgs []proto.Message, opts Options) RawResponse
	ListModels() []string
}

// Settings carries the transport settings shared by every variant.
type Settings struct {
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client returns the configured HTTP client, or a new one bounded by Timeout.
func (s Settings) Client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: s.RequestTimeout()}
}

// RequestTimeout is Timeout or DefaultTimeout when unset.
func (s Settings) RequestTimeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeout
	}
	return s.Timeout
}

// Constructor builds a client from resolved configuration.
type Constructor func(cfg config.ProviderConfig, s Settings) (Client, error)

// Options are per-call request parameters.
type Options map[string]any

// Has reports whether key was set to a non-nil value.
func (o Options) Has(key string) bool {
	v, ok := o[key]
	return ok && v != nil
}

// Model returns the requested model, if any.
func (o Options) Model() string {
	return cast.ToString(o[OptModel])
}

// Float returns key as float64 or def when absent or not numeric.
func (o Options) Float(key string, def float64) float64 {
	if !o.Has(key) {
		return def
	}
	v, err := cast.ToFloat64E(o[key])
	if err != nil {
		return def
	}
	return v
}

// Int returns key as int or def when absent or not numeric.
func (o Options) Int(key string, def int) int {
	if !o.Has(key) {
		return def
	}
	v, err := cast.ToIntE(o[key])
	if err != nil {
		return def
	}
	return v
}

// With returns a copy of o with key set to v when key is not already set.
func (o Options) With(key string, v any) Options {
	out := make(Options, len(o)+1)
	for k, val := range o {
		out[k] = val
	}
	if !out.Has(key) {
		out[key] = v
	}
	return out
}

// PickModel returns the first non-empty model name.
func PickModel(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// RawResponse is the provider-specific result of one call. Exactly one of
// Body, Object, Text or Err is meaningful, depending on the variant.
type RawResponse struct {
	// Body is the raw JSON body of an HTTP variant.
	Body []byte
	// Object is the response object of an SDK variant.
	Object any
	// Text is text collected by a streaming gateway.
	Text string
	// Err marks a failed call.
	Err *TransportError
}

// Failure builds a RawResponse carrying err.
func Failure(err *TransportError) RawResponse {
	return RawResponse{Err: err}
}

// Failed reports whether the response carries a transport error.
func (r RawResponse) Failed() bool {
	return r.Err != nil
}

// TransportError is a connection failure, timeout or non-success status.
type TransportError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s API request failed: HTTP %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s API request failed: %s", e.Provider, msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
