package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"

	"smallsh/internal/cli"
	"smallsh/internal/spawn"
	"smallsh/internal/ui"
)

// Version is set at build time
var Version = "dev"

func main() {
	// Children are started by re-executing this binary.
	if spawn.IsChild() {
		spawn.ExecChild()
	}

	if err := cli.NewRootCommand(Version, afero.NewOsFs()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorColor(fmt.Sprintf("smallsh: %v", err)))
		os.Exit(1)
	}
}
