// Command vidlink runs the video link bot and exposes its pipeline from the
// command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
