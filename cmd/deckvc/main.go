package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	deckvccmd "github.com/louisbranch/deckledger/internal/cmd/deckvc"
	"github.com/louisbranch/deckledger/internal/platform/config"
)

// main runs one deck version control subcommand.
func main() {
	cfg, err := deckvccmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := deckvccmd.Run(ctx, cfg, flag.CommandLine.Args(), os.Stdout); err != nil {
		config.ExitCodef(deckvccmd.ExitCode(err), "deckvc: %v", err)
	}
}
