package cli

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/relayworks/pigeonhole/internal/config"
)

// InitCommand handles 'pigeonhole init': create the data directory, the
// mailbox, and a default config file the operator can edit.
func InitCommand(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	dir := fs.String("dir", "", "Data directory (default ~/.pigeonhole)")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.DefaultConfig()
	configPath := config.DefaultPath()
	if *dir != "" {
		cfg.Mailbox.Dir = filepath.Join(*dir, "mailbox")
		cfg.Archive.Path = filepath.Join(*dir, "archive.db")
		cfg.Audit.Path = filepath.Join(*dir, "audit.jsonl")
		configPath = filepath.Join(*dir, "config.toml")
	}

	if _, err := os.Stat(configPath); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Config already exists at %s (use --force to overwrite)\n", configPath)
		return 1
	}

	if err := os.MkdirAll(cfg.Mailbox.Dir, 0750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating mailbox dir: %v\n", err)
		return 1
	}
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
		return 1
	}

	fmt.Printf("Config written to %s\n", configPath)
	fmt.Printf("Mailbox at %s\n", cfg.Mailbox.Dir)
	fmt.Println("\nNext steps:")
	fmt.Println("  pigeonhole ask \"Your first question\" --option yes --option no")
	fmt.Println("  pigeonhole start")
	return 0
}
