package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	glamour "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"

	"github.com/dotcommander/papermate/internal/agent"
	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/logging"
	"github.com/dotcommander/papermate/internal/present"
	"github.com/dotcommander/papermate/internal/provider"
	"github.com/dotcommander/papermate/internal/provider/builtin"
	"github.com/dotcommander/papermate/internal/source"
	"github.com/dotcommander/papermate/internal/storage"
)

type runtime struct {
	build    BuildInfo
	cfgCtx   *config.Context
	registry *provider.Registry
	flags    globalFlags
	log      *logging.Logger

	isInputTTY  func() bool
	isOutputTTY func() bool

	settings     *config.File
	settingsRead bool
	created      sync.Once
}

// NewRootCmd constructs the Cobra root command. Every agent it builds shares
// cfgCtx.
func NewRootCmd(build BuildInfo, cfgCtx *config.Context) *cobra.Command {
	return newRootCmd(build, cfgCtx)
}

func newRootCmd(build BuildInfo, cfgCtx *config.Context, opts ...func(*runtime)) *cobra.Command {
	// XXX: unset error styles in Glamour dark and light styles.
	glamour.DarkStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)
	glamour.LightStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)

	rt := &runtime{
		build:       normalizeBuildInfo(build),
		cfgCtx:      cfgCtx,
		registry:    builtin.Registry(),
		log:         logging.Nop(),
		isInputTTY:  present.IsInputTTY,
		isOutputTTY: present.IsOutputTTY,
	}
	if rt.cfgCtx == nil {
		wd, _ := os.Getwd()
		rt.cfgCtx = config.NewContext(wd, rt.registry.Defaults())
	}
	for _, opt := range opts {
		opt(rt)
	}

	rootCmd := &cobra.Command{
		Use:           "papermate [question]",
		Short:         "Ask language models about papers, pages and files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       randomExample(),
		Args:          cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.setupLogger(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = rt.log.Close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runAsk(ctx, cmd, args)
		},
	}

	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build))

	initPersistentFlags(rootCmd, &rt.flags)
	_ = rootCmd.RegisterFlagCompletionFunc("provider", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var names []string
		for _, name := range rt.registry.Names() {
			if strings.HasPrefix(name, toComplete) {
				names = append(names, name)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newAskCmd(rt))
	rootCmd.AddCommand(newChatCmd(rt))
	rootCmd.AddCommand(newModelsCmd(rt))
	rootCmd.AddCommand(newPingCmd(rt))
	rootCmd.AddCommand(newPapersCmd(rt))
	rootCmd.AddCommand(newHistoryCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newManCmd(rootCmd))
	rootCmd.AddCommand(newUpgradeCmd(rt))

	// Enable completion now that we have subcommands.
	rootCmd.InitDefaultCompletionCmd()

	return rootCmd
}

// setupLogger builds the process logger. The level comes from --log-level,
// else from the settings of an existing configuration file. Nothing is
// bootstrapped here.
func (rt *runtime) setupLogger(w io.Writer) error {
	level := rt.flags.LogLevel
	if level == "" {
		level = rt.existingFile().SettingString(config.KeyLogLevel, config.DefaultLogLevel)
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Out = w
	l, err := logging.New(cfg)
	if err != nil {
		return errs.Wrap(err, "Could not set up logging.")
	}
	rt.log = l
	return nil
}

// configPath is the file commands read and write: --config, else the
// located file, else where a new one would be bootstrapped.
func (rt *runtime) configPath() string {
	if rt.flags.ConfigPath != "" {
		return rt.flags.ConfigPath
	}
	if path, found := config.Locate(rt.cfgCtx.Dir, rt.cfgCtx.Home); found {
		return path
	}
	return rt.cfgCtx.DefaultPath()
}

// existingFile loads the configuration file if there is one. A nil *File
// answers every setting with its default.
func (rt *runtime) existingFile() *config.File {
	if !rt.settingsRead {
		rt.settings = rt.loadExisting()
		rt.settingsRead = true
	}
	return rt.settings
}

func (rt *runtime) loadExisting() *config.File {
	path := rt.flags.ConfigPath
	if path == "" {
		var found bool
		if path, found = config.Locate(rt.cfgCtx.Dir, rt.cfgCtx.Home); !found {
			return nil
		}
	}
	f, err := config.Load(path)
	if err != nil {
		rt.log.Debug().Err(err).Str("path", path).Msg("settings unavailable")
		return nil
	}
	return f
}

func (rt *runtime) wordWrap() int {
	if rt.flags.WordWrap > 0 {
		return rt.flags.WordWrap
	}
	return rt.existingFile().SettingInt(config.KeyWordWrap, config.DefaultWordWrap)
}

// newAgent builds an agent for name and applies --system and --source.
func (rt *runtime) newAgent(ctx context.Context, cmd *cobra.Command, name string) (*agent.Agent, error) {
	a, err := rt.buildAgent(cmd, name)
	if err != nil {
		return nil, err
	}
	prompt, err := rt.systemPrompt(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if prompt != "" {
		a.SetSystemPrompt(prompt)
	}
	return a, nil
}

// buildAgent builds an agent for name from the shared configuration plus
// the credential flags. It is safe to call from several goroutines.
func (rt *runtime) buildAgent(cmd *cobra.Command, name string) (*agent.Agent, error) {
	overrides := map[string]any{}
	if rt.flags.APIKey != "" {
		overrides[config.OverrideAPIKey] = rt.flags.APIKey
	}
	if rt.flags.BaseURL != "" {
		overrides[config.OverrideBaseURL] = rt.flags.BaseURL
	}

	a, err := agent.New(rt.cfgCtx, name,
		agent.WithConfigPath(rt.flags.ConfigPath),
		agent.WithOverrides(overrides),
		agent.WithRegistry(rt.registry),
		agent.WithLogger(rt.log.Logger),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "Could not set up the %s provider.", name)
	}
	if rt.cfgCtx.Bootstrapped() && !rt.flags.Quiet {
		rt.created.Do(func() {
			present.PrintConfirmation(cmd.ErrOrStderr(), "CREATED", rt.cfgCtx.DefaultPath())
		})
	}
	return a, nil
}

const sourcePreamble = "Answer the questions that follow using this text:\n\n"

func (rt *runtime) systemPrompt(ctx context.Context, cmd *cobra.Command) (string, error) {
	var parts []string
	if rt.flags.System != "" {
		msg, err := loadSystemPrompt(ctx, rt.flags.System)
		if err != nil {
			return "", errs.Wrap(err, "Could not load the system prompt.")
		}
		parts = append(parts, strings.TrimSpace(msg))
	}
	if rt.flags.Source != "" {
		text, err := source.Open(rt.flags.Source, cmd.InOrStdin())(ctx)
		if err != nil {
			return "", errs.Wrapf(err, "Could not read %s.", rt.flags.Source)
		}
		parts = append(parts, sourcePreamble+text)
	}
	return strings.Join(parts, "\n\n"), nil
}

// loadSystemPrompt fetches web pages through the page reader and leaves
// text and file:// references to the configuration layer.
func loadSystemPrompt(ctx context.Context, ref string) (string, error) {
	if source.IsURL(ref) {
		return source.FromURL(ref)(ctx) //nolint:wrapcheck
	}
	return config.SystemPrompt(ref) //nolint:wrapcheck
}

// archive opens the transcript archive under cache_path.
func (rt *runtime) archive() (*storage.Archive, error) {
	dir := rt.existingFile().SettingString(config.KeyCachePath, "")
	if dir == "" {
		var err error
		if dir, err = storage.DefaultDir(); err != nil {
			return nil, errs.Wrap(err, "Could not find the cache directory.")
		}
	}
	arch, err := storage.Open(dir)
	if err != nil {
		return nil, errs.Wrap(err, "Could not open the transcript archive.")
	}
	return arch, nil
}

func (rt *runtime) cacheDir() string {
	dir := rt.existingFile().SettingString(config.KeyCachePath, "")
	if dir == "" {
		dir, _ = storage.DefaultDir()
	}
	return dir
}

func questionFromEditor(appName string) (string, error) {
	f, err := os.CreateTemp("", "question*.md")
	if err != nil {
		return "", fmt.Errorf("could not create temporary file: %w", err)
	}
	_ = f.Close()
	defer func() { _ = os.Remove(f.Name()) }()

	c, err := editor.Cmd(appName, f.Name())
	if err != nil {
		return "", fmt.Errorf("could not open editor: %w", err)
	}
	c.Stdin = os.Stdin
	c.Stderr = os.Stderr
	c.Stdout = os.Stdout
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("could not open editor: %w", err)
	}
	question, err := os.ReadFile(f.Name())
	if err != nil {
		return "", fmt.Errorf("could not read file: %w", err)
	}
	return string(question), nil
}

func appName() string {
	return filepath.Base(os.Args[0])
}

func themeFrom(theme string) *huh.Theme {
	switch theme {
	case "dracula":
		return huh.ThemeDracula()
	case "catppuccin":
		return huh.ThemeCatppuccin()
	case "base16":
		return huh.ThemeBase16()
	default:
		return huh.ThemeCharm()
	}
}
