package cmd

import (
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/duration"
	"github.com/spf13/cobra"

	"github.com/dotcommander/papermate/internal/present"
	"github.com/dotcommander/papermate/internal/provider"
)

const defaultProvider = "deepseek"

var helpText = map[string]string{
	"provider":   "Provider to ask: deepseek, openai, alibaba, claude, google, openrouter, azure, bedrock or vercel",
	"config":     "Configuration file to use instead of the located one",
	"api-key":    "API key, overrides the configuration file",
	"base-url":   "Base URL, overrides the configuration file",
	"model":      "Model to use, when the provider honors it",
	"temp":       "Temperature (randomness) of results, from 0.0 to 2.0",
	"max-tokens": "Maximum number of tokens in the answer",
	"topp":       "TopP, an alternative to temperature that narrows response, from 0.0 to 1.0",
	"system":     "System prompt: raw text, file://path or an http(s) URL",
	"source":     "Text to discuss: a file, a web page URL or - for stdin",
	"raw":        "Print the answer without markdown rendering",
	"quiet":      "Quiet mode (hide the spinner and confirmations)",
	"copy":       "Copy the answer to the clipboard",
	"save":       "Save the exchange to the transcript archive",
	"editor":     "Edit the question in $EDITOR",
	"word-wrap":  "Wrap formatted output at a specific width",
	"log-level":  "Log level: trace, debug, info, warn or error",
	"theme":      "Theme to use in the forms: charm, catppuccin, dracula or base16",
}

// globalFlags are shared by every command.
type globalFlags struct {
	Provider   string
	ConfigPath string
	APIKey     string
	BaseURL    string
	Model      string
	Temp       float64
	MaxTokens  int
	TopP       float64
	System     string
	Source     string
	Raw        bool
	Quiet      bool
	Copy       bool
	Save       bool
	Editor     bool
	WordWrap   int
	LogLevel   string
	Theme      string
}

func initPersistentFlags(cmd *cobra.Command, f *globalFlags) {
	flags := cmd.PersistentFlags()
	desc := func(name string) string { return present.StdoutStyles().FlagDesc.Render(helpText[name]) }
	flags.StringVarP(&f.Provider, "provider", "p", defaultProvider, desc("provider"))
	flags.StringVar(&f.ConfigPath, "config", "", desc("config"))
	flags.StringVar(&f.APIKey, "api-key", "", desc("api-key"))
	flags.StringVar(&f.BaseURL, "base-url", "", desc("base-url"))
	flags.StringVarP(&f.Model, "model", "m", "", desc("model"))
	flags.Float64Var(&f.Temp, "temp", provider.DefaultTemperature, desc("temp"))
	flags.IntVar(&f.MaxTokens, "max-tokens", provider.DefaultMaxTokens, desc("max-tokens"))
	flags.Float64Var(&f.TopP, "topp", 1, desc("topp"))
	flags.StringVarP(&f.System, "system", "s", "", desc("system"))
	flags.StringVarP(&f.Source, "source", "f", "", desc("source"))
	flags.BoolVarP(&f.Raw, "raw", "r", false, desc("raw"))
	flags.BoolVarP(&f.Quiet, "quiet", "q", false, desc("quiet"))
	flags.BoolVar(&f.Copy, "copy", false, desc("copy"))
	flags.BoolVar(&f.Save, "save", false, desc("save"))
	flags.BoolVarP(&f.Editor, "editor", "e", false, desc("editor"))
	flags.IntVar(&f.WordWrap, "word-wrap", 0, desc("word-wrap"))
	flags.StringVar(&f.LogLevel, "log-level", "", desc("log-level"))
	flags.StringVar(&f.Theme, "theme", "charm", desc("theme"))
	flags.SortFlags = false

	flags.BoolVar(&memprofile, "memprofile", false, "Write memory profiles to CWD")
	_ = flags.MarkHidden("memprofile")
}

// requestOptions collects the per-call options the user actually set, so
// the configured defaults apply to everything else.
func requestOptions(cmd *cobra.Command, f *globalFlags) provider.Options {
	opts := provider.Options{}
	flags := cmd.Flags()
	if f.Model != "" {
		opts[provider.OptModel] = f.Model
	}
	if flags.Changed("temp") {
		opts[provider.OptTemperature] = f.Temp
	}
	if flags.Changed("max-tokens") {
		opts[provider.OptMaxTokens] = f.MaxTokens
	}
	if flags.Changed("topp") {
		opts[provider.OptTopP] = f.TopP
	}
	return opts
}

func newFlagParseError(err error) flagParseError {
	var reason, flag string
	s := err.Error()
	switch {
	case strings.HasPrefix(s, "flag needs an argument:"):
		reason = "Flag %s needs an argument."
		ps := strings.Split(s, "-")
		switch len(ps) {
		case 2: //nolint:mnd
			flag = "-" + ps[len(ps)-1]
		case 3: //nolint:mnd
			flag = "--" + ps[len(ps)-1]
		}
	case strings.HasPrefix(s, "unknown flag:"):
		reason = "Flag %s is missing."
		flag = strings.TrimPrefix(s, "unknown flag: ")
	case strings.HasPrefix(s, "unknown shorthand flag:"):
		reason = "Short flag %s is missing."
		parts := shorthandFlagRe.FindStringSubmatch(s)
		if len(parts) > 1 {
			flag = parts[1]
		}
	case strings.HasPrefix(s, "invalid argument"):
		reason = "Flag %s have an invalid argument."
		parts := invalidArgRe.FindStringSubmatch(s)
		if len(parts) > 1 {
			flag = parts[1]
		}
	default:
		reason = s
	}
	return flagParseError{
		err:    err,
		reason: reason,
		flag:   flag,
	}
}

var (
	shorthandFlagRe = regexp.MustCompile(`unknown shorthand flag: '.*' in (-\w)`)
	invalidArgRe    = regexp.MustCompile(`invalid argument ".*" for "(.*)" flag: .*`)
)

type flagParseError struct {
	err    error
	reason string
	flag   string
}

func (f flagParseError) Error() string {
	return f.err.Error()
}

func (f flagParseError) ReasonFormat() string {
	return f.reason
}

func (f flagParseError) Flag() string {
	return f.flag
}

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return (*durationFlag)(p)
}

// durationFlag accepts day and week units on top of time.ParseDuration.
type durationFlag time.Duration

func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	*d = durationFlag(v)
	//nolint: wrapcheck
	return err
}

func (d *durationFlag) String() string {
	return time.Duration(*d).String()
}

func (*durationFlag) Type() string {
	return "duration"
}
