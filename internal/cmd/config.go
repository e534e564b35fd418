package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"

	"github.com/dotcommander/papermate/internal/config"
	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/present"
)

func newConfigCmd(rt *runtime) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.editSettings(cmd)
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "edit",
		Short: "Open settings in $EDITOR",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.editSettings(cmd)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Reset settings to defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Allow reset even when config parsing failed.
			return rt.resetSettings(cmd)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a fresh configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rt.initSettings(cmd)
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), rt.configPath())
			return nil
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:       "dirs",
		Short:     "Print config and cache directories",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"config", "cache"},
		RunE: func(cmd *cobra.Command, args []string) error {
			rt.printDirs(cmd.OutOrStdout(), args)
			return nil
		},
	})
	configCmd.AddCommand(newSetKeyCmd(rt))

	return configCmd
}

func newSetKeyCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "set-key [provider]",
		Short: "Store the API key of a provider",
		Long:  "Store the API key of a provider in the configuration file. The key is read from --api-key, a hidden prompt, or the first line of standard input.",
		Args:  cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return rt.registry.Names(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := rt.flags.Provider
			if len(args) == 1 {
				name = strings.ToLower(strings.TrimSpace(args[0]))
			}
			if _, ok := rt.registry.Lookup(name); !ok {
				return errs.Wrapf(errs.Kindf(errs.ErrUnsupportedProvider, "%q", name), "Unknown provider %s.", name)
			}
			key, err := rt.readKey(cmd, name)
			if err != nil {
				return err
			}
			return rt.setKey(cmd, name, key)
		},
	}
}

func (rt *runtime) readKey(cmd *cobra.Command, name string) (string, error) {
	if rt.flags.APIKey != "" {
		return rt.flags.APIKey, nil
	}
	var key string
	if rt.isInputTTY() {
		if err := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title(fmt.Sprintf("API key for %s:", name)).
					EchoMode(huh.EchoModePassword).
					Validate(func(s string) error {
						if strings.TrimSpace(s) == "" {
							return errors.New("the key cannot be empty")
						}
						return nil
					}).
					Value(&key),
			),
		).WithTheme(themeFrom(rt.flags.Theme)).Run(); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return "", errs.Wrap(err, "User canceled.")
			}
			return "", errs.Wrap(err, "Prompt failed.")
		}
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", errs.Wrap(err, "Could not read standard input.")
		}
		key = line
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errs.Wrap(errs.UserErrorf("empty API key"), "No API key given.")
	}
	return key, nil
}

// setKey stores key in the provider section, keeping every other key of
// the file. A missing file is bootstrapped first.
func (rt *runtime) setKey(cmd *cobra.Command, name, key string) error {
	path := rt.configPath()
	if err := config.Bootstrap(path, rt.registry.Defaults()); err != nil && !errors.Is(err, config.ErrExists) {
		return errs.Wrap(err, "Could not write the configuration file.")
	}
	f, err := config.Load(path)
	if err != nil {
		return errs.Wrap(err, "Could not read the configuration file.")
	}
	ps, _ := f.Provider(name)
	if ps.BaseURL == "" {
		if e, ok := rt.registry.Lookup(name); ok {
			ps.BaseURL = e.BaseURL
			if ps.DefaultModel == "" {
				ps.DefaultModel = e.Model
			}
		}
	}
	ps.APIKey = key
	f.UpdateProvider(name, ps)
	if err := f.Save(); err != nil {
		return err //nolint:wrapcheck
	}
	if !rt.flags.Quiet {
		present.PrintConfirmation(cmd.ErrOrStderr(), "SAVED", fmt.Sprintf("%s key in %s", name, path))
	}
	return nil
}

func (rt *runtime) initSettings(cmd *cobra.Command) error {
	path := rt.configPath()
	if err := config.Bootstrap(path, rt.registry.Defaults()); err != nil {
		if errors.Is(err, config.ErrExists) {
			return errs.Wrapf(err, "%s already exists. Use config reset to start over.", path)
		}
		return errs.Wrap(err, "Could not write the configuration file.")
	}
	if !rt.flags.Quiet {
		present.PrintConfirmation(cmd.ErrOrStderr(), "CREATED", path)
	}
	return nil
}

func (rt *runtime) editSettings(cmd *cobra.Command) error {
	path := rt.configPath()
	if err := config.Bootstrap(path, rt.registry.Defaults()); err != nil && !errors.Is(err, config.ErrExists) {
		return errs.Wrap(err, "Could not write the configuration file.")
	}

	c, err := editor.Cmd(appName(), path)
	if err != nil {
		return errs.Wrap(err, "Could not edit your settings file.")
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return errs.Error{Err: err, Reason: fmt.Sprintf(
			"Missing %s.",
			present.StderrStyles().InlineCode.Render("$EDITOR"),
		)}
	}

	if !rt.flags.Quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), "Wrote config file to:", path)
	}
	return nil
}

func (rt *runtime) resetSettings(cmd *cobra.Command) error {
	path := rt.configPath()
	bts, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(err, "Couldn't read config file.")
	}
	if err := os.WriteFile(path+".bak", bts, 0o600); err != nil {
		return errs.Wrap(err, "Couldn't backup config file.")
	}
	if err := os.Remove(path); err != nil {
		return errs.Wrap(err, "Couldn't remove config file.")
	}
	if err := config.Bootstrap(path, rt.registry.Defaults()); err != nil {
		return errs.Wrap(err, "Couldn't write new config file.")
	}

	if !rt.flags.Quiet {
		w := cmd.ErrOrStderr()
		fmt.Fprintln(w, "\nSettings restored to defaults!")
		fmt.Fprintf(
			w,
			"\n  %s %s\n\n",
			present.StderrStyles().Comment.Render("Your old settings have been saved to:"),
			present.StderrStyles().Link.Render(path+".bak"),
		)
	}
	return nil
}

func (rt *runtime) printDirs(w io.Writer, args []string) {
	configDir := filepath.Dir(rt.configPath())
	if len(args) > 0 {
		switch args[0] {
		case "config":
			fmt.Fprintln(w, configDir)
			return
		case "cache":
			fmt.Fprintln(w, rt.cacheDir())
			return
		}
	}

	fmt.Fprintf(w, "Configuration: %s\n", configDir)
	//nolint:mnd
	fmt.Fprintf(w, "%*sCache: %s\n", 8, " ", rt.cacheDir())
}
