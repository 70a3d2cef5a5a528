// Command ixado is the standalone CLI entry point for the phase-execution
// engine, generalizing the teacher's cmd/controller/main.go from a
// config-file/env-var controller process into a cobra-based multi-command
// CLI (internal/cli) that drives one phase per invocation.
package main

import (
	"fmt"
	"os"

	"github.com/ixado-dev/ixado/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
