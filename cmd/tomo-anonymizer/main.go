package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tomo-anonymizer/internal/cli"
	"tomo-anonymizer/internal/config"
	"tomo-anonymizer/internal/gui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// No input folder = GUI mode
	cmd := cli.NewRootCommand(func(s config.Settings) error {
		gui.NewApp(s).Run()
		return nil
	})

	if err := cmd.ExecuteContext(ctx); err != nil {
		// the summary already reported the failed files
		if !errors.Is(err, cli.ErrFilesFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
