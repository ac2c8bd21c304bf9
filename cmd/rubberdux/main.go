// Package main is the entry point for the rubberdux CLI.
//
// Usage:
//
//	rubberdux compile ./specs         # Compile CUE pipe specs to IR
//	rubberdux validate ./specs        # Report every spec error
//	rubberdux run events.yaml         # Dispatch events through the pipes
//	rubberdux trace --run <id>        # Show a journaled run
//	rubberdux replay --run <id>       # Re-run and compare against the journal
//	rubberdux test ./scenarios        # Run conformance scenarios
package main

import (
	"fmt"
	"os"

	"github.com/samwightt/rubberdux/internal/cli"
)

// Set at build time via ldflags, e.g. -X main.version=1.0.0.
var version = "dev"

func main() {
	root := cli.NewRootCommand()
	root.Version = version

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
