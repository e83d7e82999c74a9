package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/relayworks/pigeonhole/internal/mailbox"
	"github.com/relayworks/pigeonhole/internal/schedule"
)

// Availability reports whether the primary interactive channel is
// reachable. The relay only works while it is not.
type Availability interface {
	Available() bool
}

// ServiceConfig holds the tick cadence and lifecycle settings.
type ServiceConfig struct {
	// Tick drives scan and dispatch (and sweep, unless Sweep is set).
	Tick schedule.Spec
	// Sweep, when set, runs sweeps on their own cadence instead of every
	// tick.
	Sweep schedule.Spec
	// Retention is how long archived pairs stay in the mailbox.
	Retention time.Duration
	// WatchStore wakes the tick loop early when the mailbox directory
	// changes, without replacing the interval guarantee.
	WatchStore bool
}

// TickResult reports what one tick did, for logging and tests.
type TickResult struct {
	Ran       bool
	Reason    string // why the tick was a no-op
	Pairs     int
	Delivered int
	Orphans   int
	Swept     int
}

// Service owns the relay's periodic work. Within one tick the order is
// fixed: scan, then dispatch every emitted pair, then sweep. The tick is
// the only suspension point; Tick is exported so tests drive it
// deterministically.
type Service struct {
	store      *mailbox.Store
	scanner    *Scanner
	dispatcher *Dispatcher
	sweeper    *Sweeper
	gate       Availability
	logger     *slog.Logger

	mu        sync.RWMutex
	window    *Window
	retention time.Duration
	cfg       ServiceConfig
}

// NewService wires the relay stages together. gate may be nil, which
// leaves the relay permanently active (no primary channel configured).
func NewService(store *mailbox.Store, scanner *Scanner, dispatcher *Dispatcher, sweeper *Sweeper,
	gate Availability, window *Window, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		scanner:    scanner,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		gate:       gate,
		window:     window,
		retention:  cfg.Retention,
		cfg:        cfg,
		logger:     logger.With("component", "service"),
	}
}

// Reconfigure swaps the operating window and retention without a restart.
func (s *Service) Reconfigure(window *Window, retention time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = window
	if retention > 0 {
		s.retention = retention
	}
	s.logger.Info("service reconfigured", "window", window.String(), "retention", s.retention)
}

// SetCadence swaps the tick schedule without a restart. The running loop
// picks it up when computing the next firing time.
func (s *Service) SetCadence(tick schedule.Spec) error {
	if err := tick.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg.Tick = tick
	s.mu.Unlock()
	s.logger.Info("tick cadence updated", "tick", tick)
	return nil
}

func (s *Service) tickSpec() schedule.Spec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Tick
}

// Window returns the current operating window.
func (s *Service) Window() *Window {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.window
}

// Active reports whether a tick at t would run: primary channel down and
// inside the operating window.
func (s *Service) Active(t time.Time) (bool, string) {
	if s.gate != nil && s.gate.Available() {
		return false, "primary channel available"
	}
	if !s.Window().Contains(t) {
		return false, "outside operating window"
	}
	return true, ""
}

// Tick runs one relay cycle at time now: scan, dispatch, sweep, in that
// order, to completion. A gated tick is a no-op.
func (s *Service) Tick(ctx context.Context, now time.Time) TickResult {
	active, reason := s.Active(now)
	if !active {
		s.logger.Debug("tick skipped", "reason", reason)
		return TickResult{Reason: reason}
	}

	result := TickResult{Ran: true}

	pairs, orphans, err := s.scanner.Scan(ctx)
	if err != nil {
		// Scoped to this tick; the next one re-lists from scratch.
		s.logger.Error("scan failed", "error", err)
		return result
	}
	result.Pairs = len(pairs)
	result.Orphans = len(orphans)

	result.Delivered = s.dispatcher.Dispatch(ctx, pairs)

	if s.cfg.Sweep.Zero() {
		result.Swept = s.sweepNow(ctx)
	}

	if result.Pairs > 0 || result.Orphans > 0 || result.Swept > 0 {
		s.logger.Info("tick complete",
			"pairs", result.Pairs,
			"delivered", result.Delivered,
			"orphans", result.Orphans,
			"swept", result.Swept)
	}
	return result
}

func (s *Service) sweepNow(ctx context.Context) int {
	s.mu.RLock()
	retention := s.retention
	s.mu.RUnlock()

	swept, err := s.sweeper.Sweep(ctx, retention)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
	}
	return swept
}

// Run drives ticks on the configured cadence until ctx is cancelled. When
// WatchStore is set, filesystem events in the mailbox directory trigger an
// early tick after a short debounce.
func (s *Service) Run(ctx context.Context) error {
	if err := s.tickSpec().Validate(); err != nil {
		return fmt.Errorf("tick schedule: %w", err)
	}

	wake := make(chan struct{}, 1)
	if s.cfg.WatchStore {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("store watcher: %w", err)
		}
		if err := watcher.Add(s.store.Dir()); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", s.store.Dir(), err)
		}
		go s.watchStore(ctx, watcher, wake)
	}

	if !s.cfg.Sweep.Zero() {
		if err := s.cfg.Sweep.Validate(); err != nil {
			return fmt.Errorf("sweep schedule: %w", err)
		}
		go s.runSweeps(ctx)
	}

	s.logger.Info("relay service started", "tick", s.tickSpec(), "watch", s.cfg.WatchStore)

	for {
		next, err := s.tickSpec().Next(time.Now())
		if err != nil {
			return fmt.Errorf("next tick: %w", err)
		}
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("relay service stopped")
			return ctx.Err()
		case <-timer.C:
		case <-wake:
			timer.Stop()
		}

		s.Tick(ctx, time.Now())
	}
}

// watchDebounce batches bursts of store events (a publish is a create plus
// a rename) into one early tick.
const watchDebounce = 500 * time.Millisecond

func (s *Service) watchStore(ctx context.Context, watcher *fsnotify.Watcher, wake chan<- struct{}) {
	defer watcher.Close()

	var debounce *time.Timer
	fire := func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
				continue
			}
			s.logger.Debug("store changed", "op", event.Op.String(), "name", event.Name)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, fire)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("store watcher error", "error", err)
		}
	}
}

func (s *Service) runSweeps(ctx context.Context) {
	for {
		next, err := s.cfg.Sweep.Next(time.Now())
		if err != nil {
			s.logger.Error("next sweep", "error", err)
			return
		}
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case now := <-timer.C:
			if active, _ := s.Active(now); active {
				s.sweepNow(ctx)
			}
		}
	}
}
