// DevMind: Jira-driven development assistant.
//
// One binary runs every DevMind process:
//
//	devmind serve     # Backend API with the editor bridge (:8001)
//	devmind monitor   # Monitoring service (:5002)
//	devmind mcp       # MCP server (stdio transport)
//	devmind launch    # Start monitor, API and dashboard together
//	devmind initdb    # Create the SQLite schemas
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
