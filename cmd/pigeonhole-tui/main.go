// Command pigeonhole-tui is the operator's answer board: a terminal UI
// over the shared mailbox for reading pending questions and writing
// responses.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/relayworks/pigeonhole/internal/config"
	"github.com/relayworks/pigeonhole/internal/mailbox"
	"github.com/relayworks/pigeonhole/internal/tui"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", config.DefaultPath(), "Path to config file")
	mailboxDir := flag.String("mailbox", "", "Mailbox directory (overrides config)")
	from := flag.String("from", "operator", "Responder identity recorded in answers")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	dir := *mailboxDir
	if dir == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			cfg = config.DefaultConfig()
		}
		dir = cfg.Mailbox.Dir
	}

	store, err := mailbox.New(dir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening mailbox: %v\n", err)
		return 1
	}

	program := tea.NewProgram(tui.New(store, *from), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
