package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/godbus/dbus/v5"

	"github.com/b0bbywan/go-odio-portal/api"
	"github.com/b0bbywan/go-odio-portal/backend"
	"github.com/b0bbywan/go-odio-portal/backend/portal"
	"github.com/b0bbywan/go-odio-portal/config"
	"github.com/b0bbywan/go-odio-portal/logger"
)

func notify(state string) {
	if ok, err := daemon.SdNotify(false, state); err != nil {
		logger.Warn("[%s] sd_notify %q failed: %v", config.AppName, state, err)
	} else if ok {
		logger.Debug("[%s] sd_notify %q sent", config.AppName, state)
	}
}

func main() {
	cfg, err := config.New()
	if err != nil {
		logger.Fatal("[%s] Failed to load config: %v", config.AppName, err)
	}

	// Set log levels from config
	logger.SetLevel(cfg.LogLevel)
	logger.SetPackageLevels(cfg.LogLevels)

	// Global context for the entire application
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := dbus.Connect(backend.SessionBusAddress())
	if err != nil {
		logger.Fatal("[%s] Failed to connect to the session bus: %v", config.AppName, err)
	}
	transport := portal.NewBusTransport(conn, cfg.Portal.CallTimeout)

	// Initialize backends
	b, err := backend.New(ctx, transport, cfg)
	if err != nil {
		logger.Fatal("[%s] Backend initialization failed: %v", config.AppName, err)
	}

	// Start enabled backends
	if err := b.Start(); err != nil {
		logger.Fatal("[%s] Backend start failed: %v", config.AppName, err)
	}

	// New api server
	server := api.NewServer(cfg.Api, b)

	// Channel to synchronize shutdown
	shutdownDone := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("[%s] Shutdown signal received, stopping server...", config.AppName)
		notify(daemon.SdNotifyStopping)

		// Cancel the global context - stops all listeners
		cancel()

		// Cleanup backends, then the bus connection they used
		b.Close()
		transport.Close()
		if err := conn.Close(); err != nil {
			logger.Warn("[%s] failed to close the session bus: %v", config.AppName, err)
		}

		close(shutdownDone)
	}()

	logger.Info("[%s] started", config.AppName)
	notify(daemon.SdNotifyReady)
	if server != nil {
		if err := server.Run(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("[%s] http server error: %v", config.AppName, err)
		}
	}

	<-shutdownDone
	logger.Info("[%s] stopped", config.AppName)
}
