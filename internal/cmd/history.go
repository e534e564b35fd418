package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	timeago "github.com/caarlos0/timea.go"
	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/present"
	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/storage"
)

func newHistoryCmd(rt *runtime) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved conversations",
	}

	historyCmd.AddCommand(newHistoryListCmd(rt))
	historyCmd.AddCommand(newHistoryShowCmd(rt))
	historyCmd.AddCommand(newHistoryDeleteCmd(rt))
	historyCmd.AddCommand(newHistoryPruneCmd(rt))

	return historyCmd
}

func newHistoryListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			arch, err := rt.archive()
			if err != nil {
				return err
			}
			records := arch.List()
			if len(records) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "No conversations found.")
				return nil
			}
			if rt.isInputTTY() && rt.isOutputTTY() && !rt.flags.Raw {
				rt.selectFromList(cmd, records)
				return nil
			}
			printList(cmd.OutOrStdout(), records)
			return nil
		},
	}
}

func newHistoryShowCmd(rt *runtime) *cobra.Command {
	var last bool
	showCmd := &cobra.Command{
		Use:               "show [id-or-title]",
		Short:             "Show a saved conversation",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: rt.completeTranscripts,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt.drainStdin(cmd.InOrStdin())
			if len(args) == 0 && !last {
				return errs.Wrap(errs.UserErrorf("missing conversation ID or title"), "Could not show the conversation.")
			}
			arch, err := rt.archive()
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			} else {
				rec, err := arch.Latest()
				if err != nil {
					return errs.Wrap(err, "There is no conversation to show.")
				}
				ref = rec.ID
			}
			t, err := arch.Load(ref)
			if err != nil {
				return errs.Wrap(err, "There was an error loading the conversation.")
			}

			out := proto.Conversation(t.Messages).String()
			fmt.Fprint(cmd.OutOrStdout(), present.Answer(out, rt.wordWrap(), rt.isOutputTTY(), rt.flags.Raw))
			return nil
		},
	}
	showCmd.Flags().BoolVarP(&last, "last", "S", false, "Show the last saved conversation")
	return showCmd
}

func newHistoryDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:               "delete <id-or-title> [more...]",
		Short:             "Delete saved conversations",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: rt.completeTranscripts,
		RunE: func(cmd *cobra.Command, args []string) error {
			arch, err := rt.archive()
			if err != nil {
				return err
			}
			for _, ref := range args {
				rec, err := arch.Remove(ref)
				if err != nil {
					return errs.Wrapf(err, "Couldn't delete conversation %q.", ref)
				}
				if !rt.flags.Quiet {
					present.PrintConfirmation(cmd.ErrOrStderr(), "DELETED", storage.ShortID(rec.ID)+" "+rec.Title)
				}
			}
			return nil
		},
	}
}

func newHistoryPruneCmd(rt *runtime) *cobra.Command {
	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete conversations older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return errs.Wrap(errs.UserErrorf("missing --older-than"), "Could not delete old conversations.")
			}
			return rt.prune(cmd, olderThan)
		},
	}
	pruneCmd.Flags().Var(newDurationFlag(olderThan, &olderThan), "older-than", "Duration to prune; e.g. 24h, 7d")
	return pruneCmd
}

func (rt *runtime) prune(cmd *cobra.Command, olderThan time.Duration) error {
	arch, err := rt.archive()
	if err != nil {
		return err
	}
	old := arch.OlderThan(olderThan)
	if len(old) == 0 {
		if !rt.flags.Quiet {
			fmt.Fprintln(cmd.ErrOrStderr(), "No conversations found.")
		}
		return nil
	}

	if !rt.flags.Quiet {
		printList(cmd.ErrOrStderr(), old)

		if !rt.isOutputTTY() || !rt.isInputTTY() {
			fmt.Fprintln(cmd.ErrOrStderr())
			//nolint:wrapcheck // user-facing guidance error
			return errs.UserErrorf(
				"To delete the conversations above, run: %s",
				strings.Join(append(os.Args, "--quiet"), " "),
			)
		}
		var confirm bool
		if err := huh.Run(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete conversations older than %s?", olderThan)).
				Description(fmt.Sprintf("This will delete all the %d conversations listed above.", len(old))).
				Value(&confirm),
		); err != nil {
			return errs.Wrap(err, "Couldn't delete old conversations.")
		}
		if !confirm {
			//nolint:wrapcheck // user-facing abort
			return errs.UserErrorf("Aborted by user")
		}
	}

	removed, err := arch.Prune(olderThan)
	if err != nil {
		return errs.Wrap(err, "Couldn't delete old conversations.")
	}
	if !rt.flags.Quiet {
		present.PrintConfirmation(cmd.ErrOrStderr(), "DELETED", fmt.Sprintf("%d conversations", len(removed)))
	}
	return nil
}

func (rt *runtime) completeTranscripts(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	arch, err := rt.archive()
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}
	return arch.Completions(toComplete), cobra.ShellCompDirectiveNoFileComp
}

func makeOptions(records []storage.Record) []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(records))
	for _, r := range records {
		timea := present.StdoutStyles().Timeago.Render(timeago.Of(r.UpdatedAt))
		left := present.StdoutStyles().SHA.Render(storage.ShortID(r.ID))
		right := present.StdoutStyles().ConversationList.Render(r.Title, timea)
		if r.Model != "" {
			right += present.StdoutStyles().Comment.Render(r.Model)
		}
		right += present.StdoutStyles().Comment.Render(" (" + r.Provider + ")")
		opts = append(opts, huh.NewOption(left+" "+right, r.ID))
	}
	return opts
}

func (rt *runtime) selectFromList(cmd *cobra.Command, records []storage.Record) {
	var selected string
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Conversations").
				Value(&selected).
				Options(makeOptions(records)...),
		),
	).WithTheme(themeFrom(rt.flags.Theme)).Run(); err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
		}
		return
	}

	_ = clipboard.WriteAll(selected)
	termenv.Copy(selected)
	present.PrintConfirmation(cmd.OutOrStdout(), "COPIED", selected)

	fmt.Fprintln(cmd.OutOrStdout(), present.StdoutStyles().Comment.Render("You can use this conversation ID with the following commands:"))
	suggestions := []string{
		appName() + " history show " + selected,
		appName() + " chat --continue " + selected,
		appName() + " history delete " + selected,
	}
	for _, s := range suggestions {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", present.StdoutStyles().InlineCode.Render(s))
	}
}

func printList(w io.Writer, records []storage.Record) {
	for _, r := range records {
		_, _ = fmt.Fprintf(
			w,
			"%s\t%s\t%s\t%s\n",
			present.StdoutStyles().SHA.Render(storage.ShortID(r.ID)),
			r.Title,
			r.Provider,
			present.StdoutStyles().Timeago.Render(timeago.Of(r.UpdatedAt)),
		)
	}
}
