//go:build !windows

package main

import (
	"log/slog"
	"os"
	"syscall"
)

// getShutdownSignals returns the signals to listen for on Unix systems.
func getShutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}
}

// handlePlatformSignal handles platform-specific signals; true means keep
// running.
func handlePlatformSignal(sig os.Signal, logger *slog.Logger) bool {
	if sig == syscall.SIGHUP {
		// The config watcher picks up file changes on its own; SIGHUP just
		// acknowledges the conventional reload request.
		logger.Info("reload signal received, config is re-read automatically")
		return true
	}
	return false
}
