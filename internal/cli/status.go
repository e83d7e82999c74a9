package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/relayworks/pigeonhole/internal/archive"
	"github.com/relayworks/pigeonhole/internal/audit"
	"github.com/relayworks/pigeonhole/internal/mailbox"
)

// StatusCommand handles 'pigeonhole status': summarize the mailbox, the
// cold archive, and the tail of the audit trail.
func StatusCommand(args []string, configPath string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	events := fs.Int("events", 5, "Number of recent audit events to show")
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

	questions, malformedQ, err := store.Questions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing questions: %v\n", err)
		return 1
	}
	responses, malformedR, err := store.Responses()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing responses: %v\n", err)
		return 1
	}

	byStatus := map[mailbox.Status]int{}
	known := map[string]bool{}
	for _, q := range questions {
		byStatus[q.Status]++
		known[q.ID] = true
	}
	orphans := 0
	for _, r := range responses {
		if !known[r.ID] {
			orphans++
		}
	}

	fmt.Printf("Mailbox: %s\n\n", store.Dir())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "pending\t%d\n", byStatus[mailbox.StatusPending])
	fmt.Fprintf(w, "resolved\t%d\n", byStatus[mailbox.StatusResolved])
	fmt.Fprintf(w, "archived\t%d\n", byStatus[mailbox.StatusArchived])
	fmt.Fprintf(w, "responses\t%d\n", len(responses))
	fmt.Fprintf(w, "orphan responses\t%d\n", orphans)
	if n := len(malformedQ) + len(malformedR); n > 0 {
		fmt.Fprintf(w, "malformed entries\t%d\n", n)
	}
	w.Flush()

	if cfg.Archive.Enabled {
		cold, err := archive.Open(cfg.Archive.Path, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cold archive unavailable: %v\n", err)
		} else {
			defer cold.Close()
			if n, err := cold.Count(context.Background()); err == nil {
				fmt.Printf("\nCold archive: %d pairs (%s)\n", n, cfg.Archive.Path)
			}
		}
	}

	if cfg.Audit.Enabled && *events > 0 {
		trail, err := audit.Open(cfg.Audit.Path, logger)
		if err == nil {
			all, err := trail.Events()
			if err == nil && len(all) > 0 {
				start := len(all) - *events
				if start < 0 {
					start = 0
				}
				fmt.Println("\nRecent events:")
				for _, e := range all[start:] {
					fmt.Printf("  %s  %-18s %s\n", e.At.Format("2006-01-02 15:04:05"), e.Kind, e.QuestionID)
				}
			}
		}
	}
	return 0
}
