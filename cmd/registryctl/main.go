// Command registryctl is the registry operator CLI: garbage collection,
// S3 backup mirroring, and token minting, run directly against the
// catalog and blob store rather than through the HTTP API.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkgforge/registry/pkg/ctl"
)

func main() {
	rootCmd := ctl.NewRootCommand()

	flag.Parse()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
