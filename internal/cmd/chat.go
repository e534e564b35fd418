package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dotcommander/papermate/internal/agent"
	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/present"
	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/provider"
	"github.com/dotcommander/papermate/internal/storage"
	"github.com/dotcommander/papermate/internal/tui"
)

type chatFlags struct {
	Continue     string
	ContinueLast bool
	NoSave       bool
}

func newChatCmd(rt *runtime) *cobra.Command {
	var cf chatFlags
	cmd := &cobra.Command{
		Use:   "chat [initial question]",
		Short: "Start an interactive multi-turn chat session",
		Long:  "Start an interactive REPL for multi-turn conversations. Type /exit to quit or /clear to forget the conversation.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runChat(ctx, cmd, cf, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cf.Continue, "continue", "c", "", "Continue a saved conversation by ID or title")
	flags.BoolVarP(&cf.ContinueLast, "continue-last", "C", false, "Continue the last saved conversation")
	flags.BoolVar(&cf.NoSave, "no-save", false, "Do not save the conversation")
	cmd.MarkFlagsMutuallyExclusive("continue", "continue-last")
	_ = cmd.RegisterFlagCompletionFunc("continue", rt.completeTranscripts)
	return cmd
}

func (rt *runtime) runChat(ctx context.Context, cmd *cobra.Command, cf chatFlags, args []string) error {
	a, err := rt.newAgent(ctx, cmd, rt.flags.Provider)
	if err != nil {
		return err
	}
	opts := requestOptions(cmd, &rt.flags)

	t := &storage.Transcript{
		Provider: a.Provider(),
		Model:    modelOf(a, opts),
		Source:   rt.flags.Source,
	}
	var arch *storage.Archive
	if !cf.NoSave || cf.Continue != "" || cf.ContinueLast {
		if arch, err = rt.archive(); err != nil {
			return err
		}
	}
	if cf.Continue != "" || cf.ContinueLast {
		if t, err = continueTranscript(arch, cf); err != nil {
			return err
		}
		t.Provider, t.Model = a.Provider(), modelOf(a, opts)
		a.RestoreHistory(t.Messages)
	}

	var saveFn tui.SaveFn
	if !cf.NoSave {
		saveFn = func(msgs []proto.Message) error {
			t.Messages = msgs
			_, err := arch.Save(t)
			return err //nolint:wrapcheck
		}
	}

	initialPrompt := strings.TrimSpace(strings.Join(args, " "))
	if rt.isInputTTY() && rt.isOutputTTY() {
		return rt.runChatTUI(ctx, a, opts, saveFn, initialPrompt)
	}
	return rt.runChatLines(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a, opts, saveFn, initialPrompt)
}

func continueTranscript(arch *storage.Archive, cf chatFlags) (*storage.Transcript, error) {
	ref := cf.Continue
	if cf.ContinueLast {
		rec, err := arch.Latest()
		if err != nil {
			return nil, errs.Wrap(err, "There is no conversation to continue.")
		}
		ref = rec.ID
	}
	t, err := arch.Load(ref)
	if err != nil {
		return nil, errs.Wrap(err, "Could not load the conversation.")
	}
	return t, nil
}

func (rt *runtime) runChatTUI(ctx context.Context, a *agent.Agent, opts provider.Options, saveFn tui.SaveFn, initialPrompt string) error {
	chat := tui.NewChat(ctx, present.StderrRenderer(), a, opts, rt.wordWrap(), saveFn, initialPrompt)
	if _, err := tea.NewProgram(chat, tea.WithAltScreen(), tea.WithOutput(os.Stderr)).Run(); err != nil {
		return errs.Wrap(err, "Couldn't start chat program.")
	}
	if !rt.flags.Quiet && saveFn != nil && chat.Turns() > 0 {
		fmt.Fprintf(os.Stderr, "%d turns saved.\n", chat.Turns())
	}
	return nil
}

// runChatLines is the chat loop for pipes: one question per line, one
// answer per question.
func (rt *runtime) runChatLines(
	ctx context.Context,
	in io.Reader,
	out io.Writer,
	a *agent.Agent,
	opts provider.Options,
	saveFn tui.SaveFn,
	initialPrompt string,
) error {
	turn := func(question string) {
		answer := a.Ask(ctx, question, opts)
		fmt.Fprint(out, present.Answer(answer, rt.wordWrap(), false, true))
		if agent.IsFailure(answer) || saveFn == nil {
			return
		}
		if err := saveFn(a.History()); err != nil {
			rt.log.Warn().Err(err).Msg("could not save conversation")
		}
	}

	if initialPrompt != "" {
		turn(initialPrompt)
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/clear":
			a.ClearHistory()
			continue
		}
		turn(line)
	}
	if err := scanner.Err(); err != nil {
		return errs.Wrap(err, "Could not read standard input.")
	}
	return nil
}
