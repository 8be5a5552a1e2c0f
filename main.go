package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt0x6f/irc-engine/internal/connection"
	"github.com/matt0x6f/irc-engine/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "YAML preferences file (overrides the database)")
	dataDir := flag.String("data", "", "data directory (default ~/.irc-engine)")
	connect := flag.String("connect", "", "connect on startup: host[:port], irc:// URL or group name")
	ssl := flag.Bool("ssl", false, "use TLS for -connect targets without an explicit scheme")
	flag.Parse()

	app, err := NewApp(AppOptions{
		ConfigPath: *configPath,
		DataDir:    *dataDir,
	})
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to initialize engine")
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down")
		app.Shutdown()
		os.Exit(0)
	}()

	if *connect != "" {
		if _, err := app.manager.ConnectTo(connection.SilentlyReuseConnection, *connect, *ssl); err != nil {
			logger.Log.Error().Err(err).Str("target", *connect).Msg("Startup connect failed")
		}
	}

	if err := app.Run(); err != nil {
		logger.Log.Error().Err(err).Msg("Input loop failed")
	}
	app.Shutdown()
}
