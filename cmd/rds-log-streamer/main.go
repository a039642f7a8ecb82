package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

func main() {
	forceUTC()

	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// forceUTC makes log timestamps and parsed record dates UTC regardless of TZ
func forceUTC() {
	time.Local = time.UTC
}
