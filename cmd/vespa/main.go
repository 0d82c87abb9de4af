// Command vespa serves and renders VESPA questionnaire results from Knack.
package main

import (
	"fmt"
	"os"

	"github.com/vespa-hub/vespa-results/internal/interface/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
