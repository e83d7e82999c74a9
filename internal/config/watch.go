package config

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Watch polls the config file's modification time and calls onReload with
// the freshly parsed config whenever it changes. A file that fails to
// parse is skipped; the previous config stays in effect. Blocks until ctx
// is cancelled.
func Watch(ctx context.Context, path string, interval time.Duration, logger *slog.Logger, onReload func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "config")
	if interval <= 0 {
		interval = 5 * time.Second
	}

	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logger.Warn("cannot stat config file", "path", path, "error", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()

			cfg, err := Load(path)
			if err != nil {
				logger.Warn("config changed but did not parse, keeping previous", "error", err)
				continue
			}
			logger.Info("config reloaded", "path", path)
			onReload(cfg)
		}
	}
}
