// This app implements an RFC 8210 RPKI-to-Router client.
// It speaks protocol version 1 to a single configured cache.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mellowdrifter/rtrpkic/internal/config"
	"github.com/mellowdrifter/rtrpkic/internal/driver"
	"github.com/mellowdrifter/rtrpkic/internal/logging"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel)
	defer logger.Sync()

	logger.Infow("starting rtrpkic", "host", cfg.Host, "port", cfg.Port, "poll_interval", cfg.PollInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Infow("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	d := driver.New(driver.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		PollInterval:       cfg.PollInterval,
		DataDir:            cfg.DataDir,
		RawCapture:         cfg.RawCapture,
		StrictSessionReset: cfg.StrictSessionReset,
		StartSerial:        cfg.StartSerial,
		StartSessionID:     cfg.StartSessionID,
	}, logger)

	if err := d.Run(ctx); err != nil {
		if ctx.Err() != nil {
			logger.Info("shut down cleanly")
			os.Exit(1)
		}
		logger.Errorw("fatal error", "error", err)
		os.Exit(1)
	}
}
