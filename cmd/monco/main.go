// Package main is the entry point for the monco Discord bot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var version = "0.1.0"

// Global flags.
var (
	verbose bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "monco",
		Short: "Discord bot that runs agent tasks in per-user workspaces",
		Long: `Monco connects to Discord and gives every user an isolated agent
session: a UUID-named workspace with size limits, idle expiry, and a
fixed tool set. Tasks run against the Anthropic API; the /code command
generates complete projects and publishes them to GitHub.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newServeCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
