// Package probe tracks whether the primary interactive channel is
// reachable. The relay is a fallback: it only works while the primary
// channel is down, so the probe's boolean gates every tick.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// Mode selects how availability is decided.
const (
	// ModeAuto dials the primary channel's WebSocket endpoint.
	ModeAuto = "auto"
	// ModeUp forces the primary channel available (relay idle).
	ModeUp = "up"
	// ModeDown forces the primary channel unavailable (relay active).
	ModeDown = "down"
)

// Config holds probe settings.
type Config struct {
	Mode     string
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// Probe maintains the primary-channel availability flag. With no URL
// configured the flag stays false: the relay exists for exactly that
// situation.
type Probe struct {
	cfg       Config
	logger    *slog.Logger
	available atomic.Bool
	dial      func(ctx context.Context, url string) error
}

// New creates a probe. The initial flag is false (primary unavailable)
// until the first successful check.
func New(cfg Config, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeAuto
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	p := &Probe{
		cfg:    cfg,
		logger: logger.With("component", "probe"),
	}
	p.dial = p.dialWebsocket
	if cfg.Mode == ModeUp {
		p.available.Store(true)
	}
	return p
}

// Available reports whether the primary channel is currently reachable.
func (p *Probe) Available() bool {
	return p.available.Load()
}

func (p *Probe) dialWebsocket(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Check performs one availability check and updates the flag. Static
// modes short-circuit; auto mode with no URL pins the flag false.
func (p *Probe) Check(ctx context.Context) bool {
	switch p.cfg.Mode {
	case ModeUp:
		p.available.Store(true)
		return true
	case ModeDown:
		p.available.Store(false)
		return false
	}

	if p.cfg.URL == "" {
		p.available.Store(false)
		return false
	}

	err := p.dial(ctx, p.cfg.URL)
	was := p.available.Swap(err == nil)
	if err != nil {
		if was {
			p.logger.Info("primary channel went down, relay active", "url", p.cfg.URL, "error", err)
		}
		return false
	}
	if !was {
		p.logger.Info("primary channel is up, relay idle", "url", p.cfg.URL)
	}
	return true
}

// Run checks on the configured interval until ctx is cancelled. Static
// modes return immediately: there is nothing to poll.
func (p *Probe) Run(ctx context.Context) error {
	if p.cfg.Mode != ModeAuto || p.cfg.URL == "" {
		p.Check(ctx)
		return nil
	}

	p.Check(ctx)
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
