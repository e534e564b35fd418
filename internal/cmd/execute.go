package cmd

import (
	"context"
	"os"
)

// Execute wires commands and runs Cobra.
func Execute(build BuildInfo) {
	defer maybeWriteMemProfile()

	root := NewRootCmd(build, nil)
	if err := root.ExecuteContext(context.Background()); err != nil {
		handleError(err)
		os.Exit(1)
	}
}
