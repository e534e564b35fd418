// Package main provides the papermate CLI.
package main

import "github.com/dotcommander/papermate/internal/cmd"

// Build vars.
var (
	//nolint: gochecknoglobals
	Version = ""
	//nolint: gochecknoglobals
	CommitSHA = ""
)

func main() {
	cmd.Execute(cmd.BuildInfo{Version: Version, CommitSHA: CommitSHA})
}
