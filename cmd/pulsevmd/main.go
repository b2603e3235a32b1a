// Command pulsevmd is the process entrypoint wrapping internal/controller:
// bootstrap a chain from genesis, run it, inspect its blocks, or drive the
// synthetic throughput benchmark.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
