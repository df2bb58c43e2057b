package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"gatekeeper.dev/gatekeeper/internal/cli"
	"gatekeeper.dev/gatekeeper/internal/output"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	output.InitColors(os.Stdout)

	rootCmd := cli.NewRootCmd(version, commit, date)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		stop()
		os.Exit(1)
	}
}
