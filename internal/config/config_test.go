package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Relay.TickInterval.Std() != 10*time.Minute {
		t.Errorf("tick interval = %v, want 10m", cfg.Relay.TickInterval.Std())
	}
	if cfg.Relay.Retention.Std() != 7*24*time.Hour {
		t.Errorf("retention = %v, want 168h", cfg.Relay.Retention.Std())
	}
	if cfg.Intake.Kind != "none" {
		t.Errorf("intake kind = %q, want none", cfg.Intake.Kind)
	}
	if cfg.Probe.Mode != "auto" {
		t.Errorf("probe mode = %q, want auto", cfg.Probe.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.Mailbox.Dir = filepath.Join(dir, "mailbox")
	cfg.Relay.Asker = "orchestrator-7"
	cfg.Relay.TickInterval = Duration(90 * time.Second)
	cfg.Window = WindowConfig{Start: "09:00", End: "17:30", Timezone: "America/New_York"}
	cfg.Intake.Kind = "http"
	cfg.Intake.HTTP.URL = "https://orchestrator.example/answers"
	cfg.Intake.HTTP.Secret = "s3cret"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Relay.Asker != "orchestrator-7" {
		t.Errorf("asker = %q", loaded.Relay.Asker)
	}
	if loaded.Relay.TickInterval.Std() != 90*time.Second {
		t.Errorf("tick interval = %v", loaded.Relay.TickInterval.Std())
	}
	if loaded.Window.End != "17:30" {
		t.Errorf("window end = %q", loaded.Window.End)
	}
	if loaded.Intake.HTTP.Secret != "s3cret" {
		t.Errorf("secret = %q", loaded.Intake.HTTP.Secret)
	}
	if _, err := os.Stat(loaded.Mailbox.Dir); err != nil {
		t.Errorf("mailbox dir not created: %v", err)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[mailbox]
dir = "` + filepath.Join(dir, "mb") + `"

[relay]
tick_interval = "5m"
`
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Relay.TickInterval.Std() != 5*time.Minute {
		t.Errorf("tick interval = %v, want 5m", cfg.Relay.TickInterval.Std())
	}
	if cfg.Relay.Retention.Std() != 7*24*time.Hour {
		t.Errorf("retention lost its default: %v", cfg.Relay.Retention.Std())
	}
	if cfg.Relay.Asker != "orchestrator" {
		t.Errorf("asker lost its default: %q", cfg.Relay.Asker)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty mailbox dir", func(c *Config) { c.Mailbox.Dir = "" }},
		{"empty asker", func(c *Config) { c.Relay.Asker = "" }},
		{"no cadence", func(c *Config) { c.Relay.TickInterval = 0; c.Relay.TickCron = "" }},
		{"http intake without url", func(c *Config) { c.Intake.Kind = "http" }},
		{"mqtt intake without broker", func(c *Config) { c.Intake.Kind = "mqtt" }},
		{"unknown intake kind", func(c *Config) { c.Intake.Kind = "carrier-pigeon" }},
		{"unknown probe mode", func(c *Config) { c.Probe.Mode = "sideways" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateCronOnlyCadence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Relay.TickInterval = 0
	cfg.Relay.TickCron = "*/10 * * * *"
	if err := cfg.Validate(); err != nil {
		t.Errorf("cron-only cadence rejected: %v", err)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("2h45m")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if d.Std() != 2*time.Hour+45*time.Minute {
		t.Errorf("parsed = %v", d.Std())
	}
	out, err := d.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(out) != "2h45m0s" {
		t.Errorf("marshaled = %q", out)
	}
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("expected parse error")
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.Mailbox.Dir = filepath.Join(dir, "mb")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go Watch(ctx, path, 20*time.Millisecond, slog.New(slog.NewTextHandler(os.Stderr, nil)), func(c *Config) {
		select {
		case reloaded <- c:
		default:
		}
	})

	// Give the watcher a beat to record the initial mod time, then
	// rewrite with a different setting and a newer timestamp.
	time.Sleep(50 * time.Millisecond)
	cfg.Relay.Retention = Duration(48 * time.Hour)
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-reloaded:
		if c.Relay.Retention.Std() != 48*time.Hour {
			t.Errorf("reloaded retention = %v", c.Relay.Retention.Std())
		}
	case <-ctx.Done():
		t.Fatal("watcher never reloaded")
	}
}

func TestWatchSkipsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := DefaultConfig()
	cfg.Mailbox.Dir = filepath.Join(dir, "mb")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go Watch(ctx, path, 20*time.Millisecond, slog.New(slog.NewTextHandler(os.Stderr, nil)), func(c *Config) {
		reloaded <- c
	})

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("this is [not toml"), 0640); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Error("broken file should not trigger reload")
	case <-time.After(300 * time.Millisecond):
	}
}
