package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relayworks/pigeonhole/internal/archive"
	"github.com/relayworks/pigeonhole/internal/audit"
	"github.com/relayworks/pigeonhole/internal/cli"
	"github.com/relayworks/pigeonhole/internal/config"
	"github.com/relayworks/pigeonhole/internal/intake"
	"github.com/relayworks/pigeonhole/internal/mailbox"
	"github.com/relayworks/pigeonhole/internal/probe"
	"github.com/relayworks/pigeonhole/internal/relay"
	"github.com/relayworks/pigeonhole/internal/schedule"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

// App holds the runtime components of the relay service.
type App struct {
	Config      *config.Config
	ConfigPath  string
	Logger      *slog.Logger
	Store       *mailbox.Store
	Trail       *audit.Log
	Cold        *archive.Store
	Probe       *probe.Probe
	Service     *relay.Service
	logLevel    *slog.LevelVar
	closeIntake func()
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := config.DefaultPath()
	var subCmd string
	var subCmdIdx int

	// First pass: find the config flag, which may precede the subcommand.
	skipNext := false
	for i := 1; i < len(os.Args); i++ {
		if skipNext {
			skipNext = false
			continue
		}
		arg := os.Args[i]
		if arg == "--config" || arg == "-config" {
			if i+1 < len(os.Args) {
				configPath = os.Args[i+1]
				skipNext = true
			}
		}
	}

	// Second pass: find the subcommand (first non-flag argument).
	skipNext = false
	for i := 1; i < len(os.Args); i++ {
		if skipNext {
			skipNext = false
			continue
		}
		arg := os.Args[i]
		if arg == "--config" || arg == "-config" {
			skipNext = true
			continue
		}
		if arg == "--version" || arg == "-version" {
			continue
		}
		if len(arg) > 0 && arg[0] != '-' {
			subCmd = arg
			subCmdIdx = i
			break
		}
	}

	if subCmd != "" {
		rest := os.Args[subCmdIdx+1:]
		switch subCmd {
		case "ask":
			return cli.AskCommand(rest, configPath)
		case "answer":
			return cli.AnswerCommand(rest, configPath)
		case "list":
			return cli.ListCommand(rest, configPath)
		case "show":
			return cli.ShowCommand(rest, configPath)
		case "status":
			return cli.StatusCommand(rest, configPath)
		case "sweep":
			return cli.SweepCommand(rest, configPath)
		case "init":
			return cli.InitCommand(rest)
		case "service":
			return serviceCommand(rest)
		case "version":
			printVersion()
			return 0
		case "help":
			if len(rest) > 0 {
				cli.PrintCommandHelp("pigeonhole", rest[0])
			} else {
				cli.PrintHelp("pigeonhole")
			}
			return 0
		case "start":
			// Falls through to the service start below.
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", subCmd)
			fmt.Fprintf(os.Stderr, "Available commands: %s\n", strings.Join(cli.CommandNames(), ", "))
			return 1
		}
	}

	fs := flag.NewFlagSet("pigeonhole", flag.ExitOnError)
	configPathFlag := fs.String("config", configPath, "Path to config file")
	showVersion := fs.Bool("version", false, "Show version")
	args := os.Args[1:]
	if subCmd == "start" {
		args = os.Args[subCmdIdx+1:]
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		return 1
	}
	if *showVersion {
		printVersion()
		return 0
	}
	configPath = *configPathFlag

	app, err := setup(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer app.close()

	printBanner(app)

	if err := runService(app); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error("service error", "error", err)
		return 1
	}
	app.Logger.Info("pigeonhole stopped")
	return 0
}

func printVersion() {
	fmt.Printf("pigeonhole v%s (built %s)\n", version, buildTime)
	fmt.Println("File-mediated question relay for unattended operators")
	fmt.Println("https://github.com/relayworks/pigeonhole")
}

// setup initializes every component of the relay service.
func setup(configPath string) (*App, error) {
	app := &App{ConfigPath: configPath}

	app.logLevel = new(slog.LevelVar)
	app.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: app.logLevel,
	}))
	app.Logger.Info("starting pigeonhole", "version", version, "config", configPath)

	cfg, err := loadConfig(configPath, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	app.Config = cfg
	app.logLevel.Set(parseLogLevel(cfg.Log.Level))

	store, err := mailbox.New(cfg.Mailbox.Dir, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("open mailbox: %w", err)
	}
	app.Store = store

	if cfg.Audit.Enabled && cfg.Audit.Path != "" {
		trail, err := audit.Open(cfg.Audit.Path, app.Logger)
		if err != nil {
			app.Logger.Warn("audit trail unavailable", "error", err)
		} else {
			app.Trail = trail
		}
	}

	var cold relay.ColdStore
	if cfg.Archive.Enabled {
		db, err := archive.Open(cfg.Archive.Path, app.Logger)
		if err != nil {
			return nil, fmt.Errorf("open cold archive: %w", err)
		}
		app.Cold = db
		cold = db
	}

	sink, closeIntake, err := buildIntake(cfg, app.Logger)
	if err != nil {
		return nil, fmt.Errorf("build intake: %w", err)
	}
	app.closeIntake = closeIntake

	window, err := relay.ParseWindow(cfg.Window.Start, cfg.Window.End, cfg.Window.Timezone)
	if err != nil {
		return nil, fmt.Errorf("parse window: %w", err)
	}

	app.Probe = probe.New(probe.Config{
		Mode:     cfg.Probe.Mode,
		URL:      cfg.Probe.URL,
		Interval: cfg.Probe.Interval.Std(),
		Timeout:  cfg.Probe.Timeout.Std(),
	}, app.Logger)

	scanner := relay.NewScanner(store, app.Trail, app.Logger)
	dispatcher := relay.NewDispatcher(store, sink, app.Trail, app.Logger)
	sweeper := relay.NewSweeper(store, cold, app.Trail, app.Logger)

	app.Service = relay.NewService(store, scanner, dispatcher, sweeper,
		app.Probe, window, relay.ServiceConfig{
			Tick:       tickSpec(cfg),
			Sweep:      sweepSpec(cfg),
			Retention:  cfg.Relay.Retention.Std(),
			WatchStore: cfg.Mailbox.Watch,
		}, app.Logger)

	return app, nil
}

func tickSpec(cfg *config.Config) schedule.Spec {
	if cfg.Relay.TickCron != "" {
		return schedule.Cron(cfg.Relay.TickCron)
	}
	return schedule.Interval(cfg.Relay.TickInterval.Std())
}

func sweepSpec(cfg *config.Config) schedule.Spec {
	if cfg.Relay.SweepCron != "" {
		return schedule.Cron(cfg.Relay.SweepCron)
	}
	return schedule.Spec{}
}

// buildIntake constructs the configured orchestrator intake. The "none"
// kind returns a sink that defers every delivery, so resolved pairs wait
// in the mailbox until an intake is configured.
func buildIntake(cfg *config.Config, logger *slog.Logger) (intake.Intake, func(), error) {
	switch cfg.Intake.Kind {
	case "http":
		h := intake.NewHTTP(cfg.Intake.HTTP.URL, []byte(cfg.Intake.HTTP.Secret),
			cfg.Intake.HTTP.Timeout.Std(), logger)
		return h, func() {}, nil
	case "mqtt":
		m := intake.NewMQTT(intake.MQTTConfig{
			Broker:   cfg.Intake.MQTT.Broker,
			ClientID: cfg.Intake.MQTT.ClientID,
			Topic:    cfg.Intake.MQTT.Topic,
			Username: cfg.Intake.MQTT.Username,
			Password: cfg.Intake.MQTT.Password,
		}, logger)
		return m, m.Close, nil
	case "none", "":
		sink := intake.Func(func(ctx context.Context, d intake.Delivery) error {
			logger.Info("no intake configured, answer stays in mailbox", "id", d.ID)
			return intake.ErrRetryLater
		})
		return sink, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown intake kind %q", cfg.Intake.Kind)
	}
}

// loadConfig loads the config file, creating the default on first run.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no config found, creating default", "path", path)
			cfg = config.DefaultConfig()
			if err := cfg.Save(path); err != nil {
				return nil, fmt.Errorf("save default config: %w", err)
			}
			if err := os.MkdirAll(cfg.Mailbox.Dir, 0750); err != nil {
				return nil, fmt.Errorf("create mailbox dir: %w", err)
			}
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printBanner(app *App) {
	fmt.Println()
	fmt.Printf("  pigeonhole v%s\n", version)
	fmt.Printf("  mailbox:   %s\n", app.Store.Dir())
	fmt.Printf("  cadence:   every %s\n", app.Config.Relay.TickInterval.Std())
	fmt.Printf("  retention: %s\n", app.Config.Relay.Retention.Std())
	fmt.Printf("  window:    %s\n", app.Service.Window().String())
	fmt.Printf("  intake:    %s\n", intakeLabel(app.Config))
	fmt.Println()
}

func intakeLabel(cfg *config.Config) string {
	switch cfg.Intake.Kind {
	case "http":
		return "http " + cfg.Intake.HTTP.URL
	case "mqtt":
		return "mqtt " + cfg.Intake.MQTT.Broker
	default:
		return "none (answers wait in mailbox)"
	}
}

// runService runs the relay, the availability probe, and the config
// watcher until a shutdown signal arrives.
func runService(app *App) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Service.Run(ctx)
	})

	if app.Config.Probe.Mode == probe.ModeAuto && app.Config.Probe.URL != "" {
		g.Go(func() error {
			return app.Probe.Run(ctx)
		})
	}

	g.Go(func() error {
		return config.Watch(ctx, app.ConfigPath, 15*time.Second, app.Logger, func(cfg *config.Config) {
			window, err := relay.ParseWindow(cfg.Window.Start, cfg.Window.End, cfg.Window.Timezone)
			if err != nil {
				app.Logger.Warn("reloaded window invalid, keeping previous", "error", err)
				return
			}
			app.Service.Reconfigure(window, cfg.Relay.Retention.Std())
			if err := app.Service.SetCadence(tickSpec(cfg)); err != nil {
				app.Logger.Warn("reloaded tick cadence invalid, keeping previous", "error", err)
			}
			app.logLevel.Set(parseLogLevel(cfg.Log.Level))
		})
	})

	g.Go(func() error {
		return waitForShutdown(ctx, cancel, app.Logger)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// waitForShutdown blocks until a termination signal or context cancel.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, getShutdownSignals()...)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigCh:
			if handlePlatformSignal(sig, logger) {
				continue
			}
			logger.Info("shutdown signal received", "signal", sig)
			cancel()
			return context.Canceled
		}
	}
}

func (a *App) close() {
	if a.closeIntake != nil {
		a.closeIntake()
	}
	if a.Cold != nil {
		a.Cold.Close()
	}
}
