// Command dittosmb runs the SMB2 file server.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/dittosmb/cmd/dittosmb/commands"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetBuildInfo(version, commit, date)

	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dittosmb:", err)
		os.Exit(1)
	}
}
