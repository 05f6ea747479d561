package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/timmy/vidnotes/internal/logger"
)

func main() {
	logger.SetDefaultLogger(logger.New(&logger.Config{
		Level:       "warn",
		Format:      "text",
		Output:      os.Stderr,
		ServiceName: "vidnotes-cli",
	}))

	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
