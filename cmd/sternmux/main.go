package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"sternmux/internal/gather"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err == nil {
		return
	}

	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	if errors.Is(err, gather.ErrPartialFailure) {
		os.Exit(2)
	}
	os.Exit(1)
}
