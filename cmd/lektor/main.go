// Command lektor is the entry point for the course-materials retrieval
// service. It provides a CLI interface (via Cobra) and an HTTP server
// exposing query and ingestion endpoints.
package main

import (
	"fmt"
	"os"

	"github.com/lektor-ai/lektor-go/cmd/lektor/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
