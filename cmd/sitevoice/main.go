// Package main provides the sitevoice CLI tool.
//
// Usage:
//
//	sitevoice [flags] <command> [args]
//
// Commands:
//
//	run         - Start a live voice session
//	market      - Browse the materials catalog and project ledger
//	tools       - Inspect and invoke assistant tools
//	transcript  - Inspect saved session transcripts
//	config      - Configuration management
//	version     - Show version information
//
// Configuration:
//
//	The CLI stores configuration in ~/.sitevoice/
//	Use 'sitevoice config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/buildlink-za/sitevoice/cmd/sitevoice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
