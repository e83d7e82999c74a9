// Package config holds the pigeonhole configuration: a TOML file with
// defaults for every field, atomic save, and a polling watcher for
// hot-reload of the window, retention, and cadence settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so TOML values read as "10m" or "168h".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML encoding.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full pigeonhole configuration.
type Config struct {
	Mailbox MailboxConfig `toml:"mailbox"`
	Relay   RelayConfig   `toml:"relay"`
	Window  WindowConfig  `toml:"window"`
	Intake  IntakeConfig  `toml:"intake"`
	Probe   ProbeConfig   `toml:"probe"`
	Archive ArchiveConfig `toml:"archive"`
	Audit   AuditConfig   `toml:"audit"`
	Log     LogConfig     `toml:"log"`
}

// MailboxConfig locates the shared question/response directory.
type MailboxConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

// RelayConfig holds the tick cadence and lifecycle settings.
type RelayConfig struct {
	Asker         string   `toml:"asker"`
	TickInterval  Duration `toml:"tick_interval"`
	TickCron      string   `toml:"tick_cron"`
	SweepCron     string   `toml:"sweep_cron"`
	Retention     Duration `toml:"retention"`
	WriteAttempts int      `toml:"write_attempts"`
}

// WindowConfig is the operating-hours gate; empty bounds mean always on.
type WindowConfig struct {
	Start    string `toml:"start"`
	End      string `toml:"end"`
	Timezone string `toml:"timezone"`
}

// IntakeConfig selects and configures the orchestrator intake.
type IntakeConfig struct {
	Kind string           `toml:"kind"` // "http", "mqtt", or "none"
	HTTP IntakeHTTPConfig `toml:"http"`
	MQTT IntakeMQTTConfig `toml:"mqtt"`
}

type IntakeHTTPConfig struct {
	URL     string   `toml:"url"`
	Secret  string   `toml:"secret"`
	Timeout Duration `toml:"timeout"`
}

type IntakeMQTTConfig struct {
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Topic    string `toml:"topic"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// ProbeConfig configures the primary-channel availability probe.
type ProbeConfig struct {
	Mode     string   `toml:"mode"` // "auto", "up", "down"
	URL      string   `toml:"url"`
	Interval Duration `toml:"interval"`
	Timeout  Duration `toml:"timeout"`
}

// ArchiveConfig enables the SQLite cold store for swept pairs.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// AuditConfig enables the JSONL event trail.
type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns a configuration that works out of the box: a
// mailbox under the user's data dir, ten-minute ticks, a week of
// retention, no intake wired.
func DefaultConfig() *Config {
	dataDir := defaultDataDir()
	return &Config{
		Mailbox: MailboxConfig{
			Dir:   filepath.Join(dataDir, "mailbox"),
			Watch: true,
		},
		Relay: RelayConfig{
			Asker:         "orchestrator",
			TickInterval:  Duration(10 * time.Minute),
			Retention:     Duration(7 * 24 * time.Hour),
			WriteAttempts: 3,
		},
		Intake: IntakeConfig{
			Kind: "none",
			HTTP: IntakeHTTPConfig{Timeout: Duration(30 * time.Second)},
			MQTT: IntakeMQTTConfig{Topic: "pigeonhole/answers"},
		},
		Probe: ProbeConfig{
			Mode:     "auto",
			Interval: Duration(30 * time.Second),
			Timeout:  Duration(10 * time.Second),
		},
		Archive: ArchiveConfig{
			Path: filepath.Join(dataDir, "archive.db"),
		},
		Audit: AuditConfig{
			Enabled: true,
			Path:    filepath.Join(dataDir, "audit.jsonl"),
		},
		Log: LogConfig{Level: "info"},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pigeonhole"
	}
	return filepath.Join(home, ".pigeonhole")
}

// DefaultPath returns the standard config file location.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.toml")
}

// Load reads TOML config from path over the defaults and ensures the
// mailbox directory exists.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Mailbox.Dir, 0750); err != nil {
		return nil, fmt.Errorf("create mailbox dir: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the relay cannot run with.
func (c *Config) Validate() error {
	if c.Mailbox.Dir == "" {
		return fmt.Errorf("config: mailbox.dir required")
	}
	if c.Relay.Asker == "" {
		return fmt.Errorf("config: relay.asker required")
	}
	if c.Relay.TickInterval.Std() <= 0 && c.Relay.TickCron == "" {
		return fmt.Errorf("config: relay.tick_interval or relay.tick_cron required")
	}
	switch c.Intake.Kind {
	case "none", "":
	case "http":
		if c.Intake.HTTP.URL == "" {
			return fmt.Errorf("config: intake.http.url required for http intake")
		}
	case "mqtt":
		if c.Intake.MQTT.Broker == "" {
			return fmt.Errorf("config: intake.mqtt.broker required for mqtt intake")
		}
	default:
		return fmt.Errorf("config: unknown intake.kind %q (use http, mqtt, or none)", c.Intake.Kind)
	}
	switch c.Probe.Mode {
	case "", "auto", "up", "down":
	default:
		return fmt.Errorf("config: unknown probe.mode %q (use auto, up, or down)", c.Probe.Mode)
	}
	return nil
}

// Save writes the config as TOML through a temp file and rename, so a
// concurrent reader never sees a partial file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()

	if err := toml.NewEncoder(tmp).Encode(c); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encode config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Chmod(tmpName, 0640); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish config: %w", err)
	}
	return nil
}
