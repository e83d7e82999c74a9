package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/relayworks/pigeonhole/internal/archive"
	"github.com/relayworks/pigeonhole/internal/relay"
)

// SweepCommand handles 'pigeonhole sweep': run one lifecycle sweep now,
// moving archived pairs older than the retention to the cold archive.
func SweepCommand(args []string, configPath string) int {
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	retention := fs.Duration("retention", 0, "Retention override, e.g. 72h (default from config)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := loadConfigFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}
	logger := getLogger()

	store, err := openStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening mailbox: %v\n", err)
		return 1
	}

	keep := cfg.Relay.Retention.Std()
	if *retention > 0 {
		keep = *retention
	}
	if keep <= 0 {
		keep = 7 * 24 * time.Hour
	}

	var cold relay.ColdStore
	if cfg.Archive.Enabled {
		db, err := archive.Open(cfg.Archive.Path, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening cold archive: %v\n", err)
			return 1
		}
		defer db.Close()
		cold = db
	}

	sweeper := relay.NewSweeper(store, cold, openTrail(cfg, logger), logger)
	swept, err := sweeper.Sweep(context.Background(), keep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sweeping: %v\n", err)
		return 1
	}

	fmt.Printf("Swept %d pair(s) older than %s\n", swept, keep)
	return 0
}
