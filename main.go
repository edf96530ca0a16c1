package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"medibot/cmd"

	"github.com/rs/zerolog/log"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd.SetVersion(version)
	err := cmd.Execute(ctx)
	stop()

	if err != nil {
		log.Error().Err(err).Msg("❌ medibot failed")
		os.Exit(1)
	}
}
