// Command holmes runs the case reasoning pipeline over a case file from the
// command line, without starting the HTTP server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
