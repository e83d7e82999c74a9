package cli

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/relayworks/pigeonhole/internal/mailbox"
)

// ListCommand handles 'pigeonhole list': print mailbox questions in a
// table, newest first, optionally filtered by status.
func ListCommand(args []string, configPath string) int {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	status := fs.String("status", "", "Filter by status (pending, resolved, archived)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *status != "" && !mailbox.Status(*status).Valid() {
		fmt.Fprintf(os.Stderr, "Unknown status %q (use pending, resolved, or archived)\n", *status)
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

	questions, malformed, err := store.Questions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing mailbox: %v\n", err)
		return 1
	}
	for _, m := range malformed {
		fmt.Fprintf(os.Stderr, "Warning: skipping %s: %s\n", m.Name, m.Reason)
	}

	var rows []*mailbox.Question
	for _, q := range questions {
		if *status != "" && q.Status != mailbox.Status(*status) {
			continue
		}
		rows = append(rows, q)
	}
	if len(rows) == 0 {
		fmt.Println("No questions in the mailbox")
		return 0
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tASKED\tOPTIONS\tQUESTION")
	fmt.Fprintln(w, "--\t------\t-----\t-------\t--------")
	for _, q := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			q.ID,
			q.Status,
			q.CreatedAt.Format("2006-01-02 15:04"),
			len(q.Options),
			truncate(q.Text, 48),
		)
	}
	w.Flush()
	return 0
}
