package cmd

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/dotcommander/papermate/internal/present"
)

func useLine(cmd *cobra.Command) string {
	name := cmd.CommandPath()
	if present.StdoutRenderer().ColorProfile() == termenv.TrueColor {
		name = present.MakeGradientText(present.StdoutStyles().AppName, name)
	}

	args := "[OPTIONS] [QUESTION]"
	if cmd.HasParent() {
		args = "[OPTIONS]"
		if cmd.HasAvailableSubCommands() {
			args = "[COMMAND]"
		}
	}
	return fmt.Sprintf(
		"%s %s",
		name,
		present.StdoutStyles().CliArgs.Render(args),
	)
}

func usageFunc(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	styles := present.StdoutStyles()
	fmt.Fprintf(w, "Usage:\n  %s\n", useLine(cmd))

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, "\nCommands:")
		for _, c := range cmd.Commands() {
			if !c.IsAvailableCommand() {
				continue
			}
			fmt.Fprintf(w, "  %-20s %s\n", styles.Flag.Render(c.Name()), styles.FlagDesc.Render(c.Short))
		}
	}

	if cmd.HasAvailableLocalFlags() {
		fmt.Fprintln(w, "\nOptions:")
		printFlags(w, cmd.LocalFlags())
	}
	if cmd.HasAvailableInheritedFlags() {
		fmt.Fprintln(w, "\nGlobal options:")
		printFlags(w, cmd.InheritedFlags())
	}

	if cmd.HasExample() {
		if code, ok := examples[cmd.Example]; ok {
			fmt.Fprintf(
				w,
				"\nExample:\n  %s\n  %s\n",
				styles.Comment.Render("# "+cmd.Example),
				cheapHighlighting(styles, code),
			)
		}
	}

	return nil
}

func printFlags(w io.Writer, flags *flag.FlagSet) {
	styles := present.StdoutStyles()
	flags.VisitAll(func(f *flag.Flag) {
		if f.Hidden {
			return
		}
		if f.Shorthand == "" {
			fmt.Fprintf(
				w,
				"  %-44s %s\n",
				styles.Flag.Render("--"+f.Name),
				styles.FlagDesc.Render(f.Usage),
			)
		} else {
			fmt.Fprintf(
				w,
				"  %s%s %-40s %s\n",
				styles.Flag.Render("-"+f.Shorthand),
				styles.FlagComma,
				styles.Flag.Render("--"+f.Name),
				styles.FlagDesc.Render(f.Usage),
			)
		}
	})
}
