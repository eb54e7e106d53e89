// mao is the command-line entry point for the hierarchical multi-agent
// orchestrator.
package main

import (
	"os"

	"github.com/mao-project/mao/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
