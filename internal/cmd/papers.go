package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dotcommander/papermate/internal/present"
	"github.com/dotcommander/papermate/internal/source"
)

func newPapersCmd(rt *runtime) *cobra.Command {
	var (
		q   source.ArxivQuery
		api string
	)
	cmd := &cobra.Command{
		Use:   "papers",
		Short: "List recent arXiv papers of a category",
		Long:  "List recent arXiv papers. Pass a paper's HTML link to --source to ask questions about it.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			papers, err := source.Arxiv{BaseURL: api}.Recent(ctx, q)
			if err != nil {
				return err //nolint:wrapcheck
			}
			out := source.FormatPapers(papers, q.DaysBack)
			fmt.Fprint(cmd.OutOrStdout(), present.Answer(out, rt.wordWrap(), rt.isOutputTTY(), rt.flags.Raw))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&q.Category, "category", "cs.AI", "arXiv category, e.g. cs.CL or stat.ML")
	flags.IntVar(&q.DaysBack, "days", 7, "Only papers published within this many days")
	flags.IntVar(&q.MaxResults, "max", 50, "Maximum number of feed entries to fetch")
	flags.StringVar(&api, "arxiv-api", source.DefaultArxivAPI, "arXiv query endpoint")
	_ = flags.MarkHidden("arxiv-api")
	return cmd
}
