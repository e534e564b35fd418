package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/papermate/internal/agent"
	"github.com/dotcommander/papermate/internal/errs"
	"github.com/dotcommander/papermate/internal/present"
	"github.com/dotcommander/papermate/internal/provider"
)

func newModelsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "models [provider]",
		Short: "List the models of one or every provider",
		Args:  cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return rt.registry.Names(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			names := rt.registry.Names()
			if len(args) == 1 {
				names = []string{strings.ToLower(strings.TrimSpace(args[0]))}
			}
			w := cmd.OutOrStdout()
			styles := present.StdoutStyles()
			for i, name := range names {
				e, ok := rt.registry.Lookup(name)
				if !ok {
					return errs.Wrapf(errs.Kindf(errs.ErrUnsupportedProvider, "%q", name), "Unknown provider %s.", name)
				}
				if len(names) > 1 {
					if i > 0 {
						fmt.Fprintln(w)
					}
					fmt.Fprintf(w, "%s %s\n", styles.Provider.Render(name), styles.Comment.Render(e.Description))
				}
				for _, m := range e.Models {
					if m == e.Model {
						fmt.Fprintf(w, "  %s %s\n", m, styles.Comment.Render("(default)"))
						continue
					}
					fmt.Fprintf(w, "  %s\n", m)
				}
			}
			return nil
		},
	}
}

const (
	pingQuestion  = "Reply with the single word: pong"
	pingMaxTokens = 16
	pingParallel  = 4
)

type pingResult struct {
	name    string
	answer  string
	elapsed time.Duration
}

func (r pingResult) failed() bool {
	return agent.IsFailure(r.answer)
}

func newPingCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "ping [providers...]",
		Short: "Check that providers answer",
		Long:  "Send a tiny question to each provider at once and report which ones answer. Defaults to --provider.",
		Args:  cobra.ArbitraryArgs,
		ValidArgsFunction: func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return rt.registry.Names(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			names := args
			if len(names) == 0 {
				names = []string{rt.flags.Provider}
			}
			results := rt.ping(ctx, cmd, names)

			failed := 0
			w := cmd.OutOrStdout()
			styles := present.StdoutStyles()
			for _, r := range results {
				status := styles.Timeago.Render(r.elapsed.Round(time.Millisecond).String())
				if r.failed() {
					failed++
					status = styles.ErrorDetails.Render(r.answer)
				}
				fmt.Fprintf(w, "%-12s %s\n", styles.Provider.Render(r.name), status)
			}
			if failed > 0 {
				return errs.Error{Reason: fmt.Sprintf("%d of %d providers failed.", failed, len(results))}
			}
			return nil
		},
	}
}

// ping asks every provider concurrently, each through its own agent.
// Results keep the order of names.
func (rt *runtime) ping(ctx context.Context, cmd *cobra.Command, names []string) []pingResult {
	results := make([]pingResult, len(names))
	opts := provider.Options{provider.OptMaxTokens: pingMaxTokens}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pingParallel)
	for i, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		g.Go(func() error {
			res := pingResult{name: name}
			a, err := rt.buildAgent(cmd, name)
			if err != nil {
				res.answer = agent.FailureText(errors.Unwrap(err))
				results[i] = res
				return nil
			}
			start := time.Now()
			res.answer = a.Ask(ctx, pingQuestion, opts)
			res.elapsed = time.Since(start)
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
