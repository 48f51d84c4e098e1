package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/bookkeeper/internal/cli"
	"github.com/mrlokans/bookkeeper/internal/config"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	root := cli.NewRootCommand(Version, config.NewConfig)
	root.SetVersionTemplate("bookkeeper {{.Version}} (commit " + Commit + ")\n")

	// No arguments runs the HTTP server
	if len(os.Args) < 2 {
		root.SetArgs([]string{"serve"})
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
