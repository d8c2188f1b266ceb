package main

import (
	"github.com/spf13/cobra"
)

// Version is stamped by the release build via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:           "medulla",
	Short:         "Git-native knowledge engine for AI coding assistants",
	Long:          "Medulla stores design decisions, tasks, notes, prompts, components, and links\nin a git-mergeable CRDT store and serves them to AI tools over MCP.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(serveCmd)
}
