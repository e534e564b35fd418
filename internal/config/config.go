package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	stdstrings "strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/papermate/internal/errs"
)

// Setting keys of the flat settings section.
const (
	KeyTimeout            = "timeout"
	KeyMaxHistoryLength   = "max_history_length"
	KeyDefaultTemperature = "default_temperature"
	KeyDefaultMaxTokens   = "default_max_tokens"
	KeyLogLevel           = "log_level"
	KeyWordWrap           = "word_wrap"
	KeyCachePath          = "cache_path"
	KeyHTTPProxy          = "http_proxy"
)

// Defaults for the settings section.
const (
	DefaultTimeout          = 60 * time.Second
	DefaultMaxHistoryLength = 20
	DefaultTemperature      = 0.7
	DefaultMaxTokens        = 1000
	DefaultLogLevel         = "warn"
	DefaultWordWrap         = 80
	envPrefix               = "PAPERMATE_"
	providerKeyAPIKey       = "api_key"
	providerKeyBaseURL      = "base_url"
	providerKeyDefaultModel = "default_model"
	providerKeyAPIKeyEnv    = "api_key_env"
	providerKeyAPIKeyCmd    = "api_key_cmd"
	formatJSON              = "json"
	formatYAML              = "yaml"
	sectionProviders        = "providers"
	sectionSettings         = "settings"
	defaultFilePerm         = 0o600
	defaultDirPerm          = 0o700
)

// ProviderSettings is one entry of the providers section.
type ProviderSettings struct {
	APIKey       string `yaml:"api_key" json:"api_key"`
	APIKeyEnv    string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	APIKeyCmd    string `yaml:"api_key_cmd,omitempty" json:"api_key_cmd,omitempty"`
	BaseURL      string `yaml:"base_url" json:"base_url"`
	DefaultModel string `yaml:"default_model" json:"default_model"`

	// Extra holds every non-standard key of the section, e.g. secret_key.
	Extra map[string]any `yaml:"-" json:"-"`
}

// Settings is the typed view of the settings section. Every field can be
// overridden from the environment with the PAPERMATE_ prefix.
type Settings struct {
	Timeout            float64 `yaml:"timeout" json:"timeout" env:"TIMEOUT"`
	MaxHistoryLength   int     `yaml:"max_history_length" json:"max_history_length" env:"MAX_HISTORY_LENGTH"`
	DefaultTemperature float64 `yaml:"default_temperature" json:"default_temperature" env:"DEFAULT_TEMPERATURE"`
	DefaultMaxTokens   int     `yaml:"default_max_tokens" json:"default_max_tokens" env:"DEFAULT_MAX_TOKENS"`
	LogLevel           string  `yaml:"log_level" json:"log_level" env:"LOG_LEVEL"`
	WordWrap           int     `yaml:"word_wrap" json:"word_wrap" env:"WORD_WRAP"`
	CachePath          string  `yaml:"cache_path" json:"cache_path" env:"CACHE_PATH"`
	HTTPProxy          string  `yaml:"http_proxy" json:"http_proxy" env:"HTTP_PROXY"`
}

// DefaultSettings returns the values written by Bootstrap.
func DefaultSettings() Settings {
	return Settings{
		Timeout:            DefaultTimeout.Seconds(),
		MaxHistoryLength:   DefaultMaxHistoryLength,
		DefaultTemperature: DefaultTemperature,
		DefaultMaxTokens:   DefaultMaxTokens,
		LogLevel:           DefaultLogLevel,
		WordWrap:           DefaultWordWrap,
	}
}

type document struct {
	Providers map[string]ProviderSettings `yaml:"providers" json:"providers"`
	Settings  Settings                    `yaml:"settings" json:"settings"`
}

// File is a loaded configuration file.
type File struct {
	Path      string
	Providers map[string]ProviderSettings
	Settings  Settings

	format   string
	raw      map[string]any
	settings map[string]any
}

// Load reads, validates and decodes the configuration file at path.
//
// The format is picked from the extension: .json is JSON, anything else is
// YAML. PAPERMATE_* environment variables are applied over the settings
// section.
func Load(path string) (*File, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errs.Kindf(errs.ErrConfigFile, "file not found: %s", path)
		}
		return nil, errs.Kindf(errs.ErrConfigFile, "read %s: %v", path, err)
	}
	return parse(path, bts)
}

func parse(path string, bts []byte) (*File, error) {
	format := formatFor(path)

	raw := map[string]any{}
	var doc document
	unmarshal := yaml.Unmarshal
	if format == formatJSON {
		unmarshal = json.Unmarshal
	}
	if len(bytes.TrimSpace(bts)) > 0 {
		if err := unmarshal(bts, &raw); err != nil {
			return nil, errs.Kindf(errs.ErrConfigFile, "parse %s: %v", path, err)
		}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validate(raw); err != nil {
		return nil, errs.Kindf(errs.ErrConfigFile, "%s: %v", path, err)
	}
	if len(raw) > 0 {
		if err := unmarshal(bts, &doc); err != nil {
			return nil, errs.Kindf(errs.ErrConfigFile, "decode %s: %v", path, err)
		}
	}

	f := &File{
		Path:      path,
		Providers: doc.Providers,
		Settings:  doc.Settings,
		format:    format,
		raw:       raw,
		settings:  map[string]any{},
	}
	if f.Providers == nil {
		f.Providers = map[string]ProviderSettings{}
	}
	for name, ps := range f.Providers {
		ps.Extra = extraKeys(section(section(raw, sectionProviders), name))
		f.Providers[name] = ps
	}
	for k, v := range section(raw, sectionSettings) {
		f.settings[k] = v
	}
	if err := f.applyEnv(); err != nil {
		return nil, err
	}
	return f, nil
}

// applyEnv parses PAPERMATE_* variables into Settings and mirrors every
// field they changed into the flat settings map.
func (f *File) applyEnv() error {
	before, err := settingsMap(f.Settings)
	if err != nil {
		return errs.Kindf(errs.ErrConfigFile, "settings: %v", err)
	}
	if err := env.ParseWithOptions(&f.Settings, env.Options{Prefix: envPrefix}); err != nil {
		return errs.Wrap(err, "Could not parse environment into settings.")
	}
	after, err := settingsMap(f.Settings)
	if err != nil {
		return errs.Kindf(errs.ErrConfigFile, "settings: %v", err)
	}
	for k, v := range after {
		if !reflect.DeepEqual(before[k], v) {
			f.settings[k] = v
		}
	}
	return nil
}

func settingsMap(s Settings) (map[string]any, error) {
	bts, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal settings: %w", err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(bts, &out); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return out, nil
}

// Setting returns the value of key in the settings section, or def when the
// key is absent.
func (f *File) Setting(key string, def any) any {
	if f == nil {
		return def
	}
	v, ok := f.settings[key]
	if !ok || v == nil {
		return def
	}
	return v
}

// SettingInt is Setting converted to int. Values that do not convert yield def.
func (f *File) SettingInt(key string, def int) int {
	v, err := cast.ToIntE(f.Setting(key, def))
	if err != nil {
		return def
	}
	return v
}

// SettingFloat is Setting converted to float64.
func (f *File) SettingFloat(key string, def float64) float64 {
	v, err := cast.ToFloat64E(f.Setting(key, def))
	if err != nil {
		return def
	}
	return v
}

// SettingString is Setting converted to string.
func (f *File) SettingString(key, def string) string {
	v, err := cast.ToStringE(f.Setting(key, def))
	if err != nil || v == "" {
		return def
	}
	return v
}

// Timeout is the request timeout.
func (f *File) Timeout() time.Duration {
	secs := f.SettingFloat(KeyTimeout, DefaultTimeout.Seconds())
	if secs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(secs * float64(time.Second))
}

// MaxHistoryLength is the conversation history bound.
func (f *File) MaxHistoryLength() int {
	n := f.SettingInt(KeyMaxHistoryLength, DefaultMaxHistoryLength)
	if n < 1 {
		return DefaultMaxHistoryLength
	}
	return n
}

// Provider returns the section for name as found in the file.
func (f *File) Provider(name string) (ProviderSettings, bool) {
	if f == nil {
		return ProviderSettings{}, false
	}
	ps, ok := f.Providers[name]
	return ps, ok
}

// UpdateProvider replaces the section for name. Call Save to persist it.
func (f *File) UpdateProvider(name string, ps ProviderSettings) {
	if f.Providers == nil {
		f.Providers = map[string]ProviderSettings{}
	}
	f.Providers[name] = ps

	providers := section(f.raw, sectionProviders)
	if providers == nil {
		providers = map[string]any{}
	}
	providers[name] = ps.toMap()
	f.raw[sectionProviders] = providers
}

// Save writes the file back to Path in its original format.
func (f *File) Save() error {
	var (
		bts []byte
		err error
	)
	if f.format == formatJSON {
		bts, err = json.MarshalIndent(f.raw, "", "  ")
	} else {
		bts, err = yaml.Marshal(f.raw)
	}
	if err != nil {
		return errs.Wrap(err, "Could not encode configuration file.")
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), defaultDirPerm); err != nil {
		return errs.Wrap(err, "Could not create configuration directory.")
	}
	if err := os.WriteFile(f.Path, bts, defaultFilePerm); err != nil {
		return errs.Wrap(err, "Could not write configuration file.")
	}
	return nil
}

func (ps ProviderSettings) toMap() map[string]any {
	m := map[string]any{}
	for k, v := range ps.Extra {
		m[k] = v
	}
	m[providerKeyAPIKey] = ps.APIKey
	m[providerKeyBaseURL] = ps.BaseURL
	m[providerKeyDefaultModel] = ps.DefaultModel
	if ps.APIKeyEnv != "" {
		m[providerKeyAPIKeyEnv] = ps.APIKeyEnv
	}
	if ps.APIKeyCmd != "" {
		m[providerKeyAPIKeyCmd] = ps.APIKeyCmd
	}
	return m
}

func formatFor(path string) string {
	if stdstrings.EqualFold(filepath.Ext(path), ".json") {
		return formatJSON
	}
	return formatYAML
}

func section(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	s, _ := m[key].(map[string]any)
	return s
}

func extraKeys(m map[string]any) map[string]any {
	extra := map[string]any{}
	for k, v := range m {
		switch k {
		case providerKeyAPIKey, providerKeyBaseURL, providerKeyDefaultModel,
			providerKeyAPIKeyEnv, providerKeyAPIKeyCmd:
			continue
		}
		extra[k] = v
	}
	return extra
}
