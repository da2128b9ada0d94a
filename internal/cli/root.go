// Package cli implements the nim-memory command line.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

const logo = `
        _
  _ __ (_)_ __ ___
 | '_ \| | '_ ' _ \
 | | | | | | | | | |
 |_| |_|_|_| |_| |_|  memory
`

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "nim-memory",
		Short:   "Chat assistant with per-user semantic memory",
		Long:    color.CyanString(logo) + "\nA chat assistant that remembers what falls out of its short-term history.",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env is fine; the environment may already be set.
			_ = godotenv.Load()
		},
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newChatCmd(), newMemoryCmd())
	return root
}

func printHeader(cmd *cobra.Command, title string) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, color.CyanString(logo))
	fmt.Fprintln(out, title)
	fmt.Fprintln(out, "─────────────────────")
}
