// Command veracity verifies professional documents for compliance
// violations, unsupported factual claims, and logical inconsistencies.
package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/veracity/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cli.Version = version
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
