package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/dotcommander/papermate/internal/agent"
	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/present"
	"github.com/dotcommander/papermate/internal/provider"
	"github.com/dotcommander/papermate/internal/storage"
	"github.com/dotcommander/papermate/internal/tui"
)

func newAskCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the answer",
		Long:  "Ask one question. Arguments and piped standard input are joined into the question.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runAsk(ctx, cmd, args)
		},
	}
}

func (rt *runtime) runAsk(ctx context.Context, cmd *cobra.Command, args []string) error {
	question, err := rt.question(ctx, cmd, args)
	if err != nil {
		return err
	}

	a, err := rt.newAgent(ctx, cmd, rt.flags.Provider)
	if err != nil {
		return err
	}
	opts := requestOptions(cmd, &rt.flags)

	answer, err := rt.ask(ctx, a, question, opts)
	if err != nil {
		return err
	}
	if agent.IsFailure(answer) {
		return errs.Error{Reason: strings.TrimPrefix(answer, "Error: ")}
	}

	fmt.Fprint(cmd.OutOrStdout(), present.Answer(answer, rt.wordWrap(), rt.isOutputTTY(), rt.flags.Raw))

	if rt.flags.Copy {
		_ = clipboard.WriteAll(answer)
		termenv.Copy(answer)
		if !rt.flags.Quiet {
			present.PrintConfirmation(cmd.ErrOrStderr(), "COPIED", "answer")
		}
	}
	if rt.flags.Save {
		return rt.saveTranscript(cmd, &storage.Transcript{
			Provider: a.Provider(),
			Model:    modelOf(a, opts),
			Source:   rt.flags.Source,
			Messages: a.History(),
		})
	}
	return nil
}

// question joins the arguments and piped stdin. On a terminal with
// --editor and no arguments the question is written in $EDITOR.
func (rt *runtime) question(ctx context.Context, cmd *cobra.Command, args []string) (string, error) {
	parts := []string{}
	if q := strings.TrimSpace(strings.Join(args, " ")); q != "" {
		parts = append(parts, q)
	}
	if rt.flags.Source != "-" && !rt.isInputTTY() {
		piped, err := readStdin(ctx, cmd.InOrStdin())
		if err != nil {
			return "", errs.Wrap(err, "Could not read standard input.")
		}
		if piped != "" {
			parts = append(parts, piped)
		}
	}
	if len(parts) == 0 && rt.flags.Editor && rt.isInputTTY() {
		q, err := questionFromEditor(appName())
		if err != nil {
			return "", errs.Wrap(err, "Could not read the question from your editor.")
		}
		if q = strings.TrimSpace(q); q != "" {
			parts = append(parts, q)
		}
	}
	if len(parts) == 0 {
		return "", errs.Error{
			Reason: "You haven't provided any question.",
			Err: errs.UserErrorf(
				"You can give your question as arguments and/or pipe it from STDIN.\nExample: %s",
				present.StdoutStyles().InlineCode.Render(appName()+" [question]"),
			),
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// ask runs one call. On a terminal a spinner is drawn on stderr while the
// call is in flight; Ctrl+C cancels the call.
func (rt *runtime) ask(ctx context.Context, a *agent.Agent, question string, opts provider.Options) (string, error) {
	if rt.flags.Quiet || rt.flags.Raw || !rt.isOutputTTY() {
		return a.Ask(ctx, question, opts), nil
	}

	m := tui.NewAsk(ctx, present.StderrRenderer(), a, question, opts)
	popts := []tea.ProgramOption{tea.WithOutput(os.Stderr)}
	if !rt.isInputTTY() {
		popts = append(popts, tea.WithInput(nil))
	}
	res, err := tea.NewProgram(m, popts...).Run()
	if err != nil {
		return "", errs.Wrap(err, "Couldn't start Bubble Tea program.")
	}
	return res.(*tui.Ask).Answer, nil
}

func (rt *runtime) saveTranscript(cmd *cobra.Command, t *storage.Transcript) error {
	arch, err := rt.archive()
	if err != nil {
		return err
	}
	rec, err := arch.Save(t)
	if err != nil {
		return errs.Wrap(err, "Could not save the transcript.")
	}
	if !rt.flags.Quiet {
		present.PrintConfirmation(cmd.ErrOrStderr(), "SAVED", storage.ShortID(rec.ID)+" "+rec.Title)
	}
	return nil
}

func modelOf(a *agent.Agent, opts provider.Options) string {
	if m := opts.Model(); m != "" {
		return m
	}
	return a.DefaultModel()
}
