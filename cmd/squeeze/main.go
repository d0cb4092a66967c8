package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"squeeze/internal/services"
)

// Exit statuses: 0 on completion, 1 on usage or runtime errors, 130 when a
// run is cancelled by an interrupt.
const exitInterrupted = 130

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err == nil {
		return
	}
	if errors.Is(err, services.ErrInterrupted) || errors.Is(err, context.Canceled) {
		os.Exit(exitInterrupted)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
