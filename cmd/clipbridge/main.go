package main

import (
	"github.com/berrythewa/clipbridge/internal/cli"
)

// Set with -ldflags "-X main.version=..."
var (
	version   = "dev"
	buildTime = "unknown"
	commit    = "none"
)

func main() {
	cli.SetVersionInfo(version, buildTime, commit)
	cli.Execute()
}
