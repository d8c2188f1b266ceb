// Command medulla is the git-native knowledge engine: a local MCP server
// that stores decisions, tasks, notes, prompts, components, and links in
// a CRDT snapshot with a derived SQLite search cache.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
