// Package normalize turns provider-specific responses into answer text.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dotcommander/papermate/internal/provider"
)

// Policy names. Each registered provider names one of them.
const (
	PolicyJSON          = "json"
	PolicySDKJSON       = "sdk-json"
	PolicyAnthropicJSON = "anthropic-json"
	PolicyText          = "text"
)

const (
	choicesPath   = "choices.0.message.content"
	anthropicPath = `content.#(type=="text")#.text`
)

// Error reports a response whose shape does not carry an answer.
type Error struct {
	Provider string
	Policy   string
	Reason   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("unexpected %s response: %s", e.Provider, e.Reason)
}

// Result is the normalized outcome of one call. Err is a
// *provider.TransportError or an *Error.
type Result struct {
	Content string
	Err     error
}

// OK reports whether the result carries an answer.
func (r Result) OK() bool {
	return r.Err == nil
}

type extractor func(raw provider.RawResponse) (string, string)

var extractors = map[string]extractor{
	PolicyJSON:          fromBody,
	PolicySDKJSON:       fromSDK(choicesPath, false),
	PolicyAnthropicJSON: fromSDK(anthropicPath, true),
	PolicyText:          fromText,
}

// Supported reports whether policy is known.
func Supported(policy string) bool {
	_, ok := extractors[policy]
	return ok
}

// Normalizer picks the extraction policy by provider name.
type Normalizer struct {
	policies map[string]string
}

// New builds a Normalizer from the policies of every registry entry.
func New(r *provider.Registry) *Normalizer {
	n := &Normalizer{policies: map[string]string{}}
	for _, name := range r.Names() {
		e, _ := r.Lookup(name)
		n.policies[name] = e.Policy
	}
	return n
}

// Normalize extracts the answer from raw. It never panics.
func (n *Normalizer) Normalize(providerName string, raw provider.RawResponse) (res Result) {
	if raw.Err != nil {
		return Result{Err: raw.Err}
	}

	policy := n.policies[providerName]
	extract, ok := extractors[policy]
	if !ok {
		return Result{Err: &Error{Provider: providerName, Policy: policy, Reason: fmt.Sprintf("no normalization policy %q", policy)}}
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: &Error{Provider: providerName, Policy: policy, Reason: fmt.Sprint(r)}}
		}
	}()

	content, reason := extract(raw)
	if reason != "" {
		return Result{Err: &Error{Provider: providerName, Policy: policy, Reason: reason}}
	}
	return Result{Content: content}
}

func fromBody(raw provider.RawResponse) (string, string) {
	return atPath(raw.Body, choicesPath)
}

func fromText(raw provider.RawResponse) (string, string) {
	if raw.Text == "" {
		return "", "empty response"
	}
	return raw.Text, ""
}

type rawJSONer interface {
	RawJSON() string
}

func fromSDK(path string, join bool) extractor {
	return func(raw provider.RawResponse) (string, string) {
		if raw.Object == nil {
			return "", "missing response object"
		}
		bts, err := canonicalJSON(raw.Object)
		if err != nil {
			return "", err.Error()
		}
		if !join {
			return atPath(bts, path)
		}
		if !gjson.ValidBytes(bts) {
			return "", "invalid JSON"
		}
		texts := gjson.GetBytes(bts, path).Array()
		if len(texts) == 0 {
			return "", "no text content"
		}
		parts := make([]string, 0, len(texts))
		for _, t := range texts {
			parts = append(parts, t.String())
		}
		return strings.Join(parts, ""), ""
	}
}

// canonicalJSON prefers the SDK's own raw JSON and falls back to
// encoding/json for objects built in memory.
func canonicalJSON(obj any) ([]byte, error) {
	if r, ok := obj.(rawJSONer); ok {
		if s := r.RawJSON(); s != "" {
			return []byte(s), nil
		}
	}
	bts, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("serialize response: %w", err)
	}
	return bts, nil
}

func atPath(body []byte, path string) (string, string) {
	if len(body) == 0 {
		return "", "empty body"
	}
	if !gjson.ValidBytes(body) {
		return "", "invalid JSON"
	}
	v := gjson.GetBytes(body, path)
	if !v.Exists() {
		return "", fmt.Sprintf("missing %s", path)
	}
	if v.Type != gjson.String {
		return "", fmt.Sprintf("%s is not a string", path)
	}
	return v.String(), ""
}
