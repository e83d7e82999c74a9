// Package cli implements the pigeonhole subcommands: asking and
// answering questions from the shell, inspecting the mailbox, sweeping
// old pairs, and managing the background service.
package cli

import (
	"log/slog"
	"os"

	"github.com/relayworks/pigeonhole/internal/audit"
	"github.com/relayworks/pigeonhole/internal/config"
	"github.com/relayworks/pigeonhole/internal/mailbox"
)

// loadConfigFromFile loads the config at path, falling back to defaults
// when no file exists yet. Commands that only read the mailbox should
// still work before the first `pigeonhole init`.
func loadConfigFromFile(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = config.DefaultPath()
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if err := os.MkdirAll(cfg.Mailbox.Dir, 0750); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(configPath)
}

// getLogger returns a logger for CLI commands. Commands print results to
// stdout; the logger carries diagnostics to stderr.
func getLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func openStore(cfg *config.Config, logger *slog.Logger) (*mailbox.Store, error) {
	return mailbox.New(cfg.Mailbox.Dir, logger)
}

// openTrail opens the audit trail when enabled; a nil trail is a no-op
// recorder, so commands never need to branch on it.
func openTrail(cfg *config.Config, logger *slog.Logger) *audit.Log {
	if !cfg.Audit.Enabled || cfg.Audit.Path == "" {
		return nil
	}
	trail, err := audit.Open(cfg.Audit.Path, logger)
	if err != nil {
		logger.Warn("audit trail unavailable", "error", err)
		return nil
	}
	return trail
}

// truncate shortens s for table cells.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
