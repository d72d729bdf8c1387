// Command sitetime tracks time spent per website and reports it.
package main

import (
	"fmt"
	"os"

	"github.com/runnerr0/sitetime/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.Run(version); err != nil {
		fmt.Fprintln(os.Stderr, "sitetime:", err)
		os.Exit(1)
	}
}
