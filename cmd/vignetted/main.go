package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCommand().Execute(); err != nil {
		// Signal-driven daemon shutdown surfaces as context.Canceled; that is
		// a clean exit, not a failure.
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintln(os.Stderr, "vignetted:", err)
		return 1
	}
	return 0
}
