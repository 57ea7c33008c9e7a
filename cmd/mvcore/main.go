// Command mvcore inspects the column catalog of a database and renders the
// statements the query builder compiles.
package main

import (
	"fmt"
	"os"
)

// Version is set by the build.
var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
