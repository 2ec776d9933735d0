// Command ethani-launch starts the legacy Python edition of the ETHANI
// server: it verifies the interpreter, installs the dependency manifest if
// needed and replaces itself with uvicorn. It takes no arguments.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethani/backend/launcher"
)

func main() {
	l := launcher.New(launcher.DefaultConfig())
	if err := l.Run(); err != nil {
		if errors.Is(err, launcher.ErrInterpreterMissing) {
			fmt.Fprintln(os.Stderr, "Error: Python 3 is required but was not found on PATH.")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
