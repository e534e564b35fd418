package config

import (
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/caarlos0/go-shellwords"
	"github.com/spf13/cast"

	"github.com/dotcommander/papermate/internal/errs"
)

// Override keys understood by Resolve. Any other key lands in Extra.
const (
	OverrideAPIKey       = providerKeyAPIKey
	OverrideBaseURL      = providerKeyBaseURL
	OverrideDefaultModel = providerKeyDefaultModel
)

// ProviderConfig is the merged connection data for one provider.
type ProviderConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Extra        map[string]any
}

// ExtraString returns Extra[key] as a string.
func (p ProviderConfig) ExtraString(key string) string {
	return cast.ToString(p.Extra[key])
}

// Resolve merges overrides over the file section for name.
//
// Precedence is overrides, then api_key, api_key_env and api_key_cmd from
// the file. name must be one of supported.
func (f *File) Resolve(name string, supported []string, overrides map[string]any) (ProviderConfig, error) {
	if !slices.Contains(supported, name) {
		return ProviderConfig{}, errs.Kindf(errs.ErrUnsupportedProvider, "%q (supported: %s)", name, strings.Join(supported, ", "))
	}

	ps, _ := f.Provider(name)
	pc := ProviderConfig{
		APIKey:       ps.APIKey,
		BaseURL:      ps.BaseURL,
		DefaultModel: ps.DefaultModel,
		Extra:        map[string]any{},
	}
	for k, v := range ps.Extra {
		pc.Extra[k] = v
	}

	if pc.APIKey == "" && ps.APIKeyEnv != "" {
		pc.APIKey = os.Getenv(ps.APIKeyEnv)
	}
	if pc.APIKey == "" && ps.APIKeyCmd != "" {
		key, err := keyFromCommand(ps.APIKeyCmd)
		if err != nil {
			return ProviderConfig{}, errs.Kindf(errs.ErrMissingCredential, "%s: api_key_cmd: %v", name, err)
		}
		pc.APIKey = key
	}

	for k, v := range overrides {
		if v == nil {
			continue
		}
		switch k {
		case OverrideAPIKey:
			if s := cast.ToString(v); s != "" {
				pc.APIKey = s
			}
		case OverrideBaseURL:
			if s := cast.ToString(v); s != "" {
				pc.BaseURL = s
			}
		case OverrideDefaultModel:
			if s := cast.ToString(v); s != "" {
				pc.DefaultModel = s
			}
		default:
			pc.Extra[k] = v
		}
	}

	var missing []string
	if pc.APIKey == "" {
		missing = append(missing, providerKeyAPIKey)
	}
	if pc.BaseURL == "" {
		missing = append(missing, providerKeyBaseURL)
	}
	if len(missing) > 0 {
		return ProviderConfig{}, errs.Kindf(errs.ErrMissingCredential, "%s: %s not set in %s", name, strings.Join(missing, ", "), f.Path)
	}
	return pc, nil
}

func keyFromCommand(cmdline string) (string, error) {
	args, err := shellwords.Parse(cmdline)
	if err != nil {
		return "", errs.Error{Err: err, Reason: "Failed to parse api_key_cmd"}
	}
	if len(args) == 0 {
		return "", errs.UserErrorf("empty api_key_cmd")
	}
	// #nosec G204 -- api_key_cmd is explicitly configured by the local user.
	out, err := exec.Command(args[0], args[1:]...).Output()
	if err != nil {
		return "", errs.Error{Err: err, Reason: "Cannot exec api_key_cmd"}
	}
	return strings.TrimSpace(string(out)), nil
}
