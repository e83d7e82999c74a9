package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/relayworks/pigeonhole/internal/mailbox"
)

// ShowCommand handles 'pigeonhole show <id>': print a question in full,
// with any responses the mailbox holds for it.
func ShowCommand(args []string, configPath string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: pigeonhole show <question-id>")
		return 1
	}
	id := args[0]

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

	q, err := store.Question(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Printf("ID:      %s\n", q.ID)
	fmt.Printf("Status:  %s\n", q.Status)
	fmt.Printf("Asker:   %s\n", q.Asker)
	fmt.Printf("Asked:   %s\n", q.CreatedAt.Format("2006-01-02 15:04:05 -0700"))
	fmt.Printf("\n%s\n", q.Text)
	if len(q.Options) > 0 {
		fmt.Println("\nOptions:")
		for i, opt := range q.Options {
			if opt.Description != "" {
				fmt.Printf("  %d. %s - %s\n", i+1, opt.Label, opt.Description)
			} else {
				fmt.Printf("  %d. %s\n", i+1, opt.Label)
			}
		}
	}
	if q.Context != "" {
		fmt.Printf("\nContext:\n%s\n", q.Context)
	}

	responses, _, err := store.Responses()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing responses: %v\n", err)
		return 1
	}
	var mine []*mailbox.Response
	for _, r := range responses {
		if r.ID == id {
			mine = append(mine, r)
		}
	}
	if len(mine) == 0 {
		return 0
	}
	sort.Slice(mine, func(i, j int) bool {
		if !mine[i].CreatedAt.Equal(mine[j].CreatedAt) {
			return mine[i].CreatedAt.Before(mine[j].CreatedAt)
		}
		return mine[i].Name < mine[j].Name
	})

	fmt.Println("\nResponses:")
	for i, r := range mine {
		marker := " "
		if i == 0 {
			marker = "*" // authoritative: earliest wins
		}
		fmt.Printf("  %s %s from %s: %s\n", marker, r.CreatedAt.Format("2006-01-02 15:04:05"), r.From, r.Answer)
		if r.ExtraContext != "" {
			fmt.Printf("      %s\n", r.ExtraContext)
		}
	}
	return 0
}
