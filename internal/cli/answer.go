package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/relayworks/pigeonhole/internal/mailbox"
)

// AnswerCommand handles 'pigeonhole answer <id> <text>': write a response
// object for a pending question. The relay picks it up on its next scan.
func AnswerCommand(args []string, configPath string) int {
	fs := flag.NewFlagSet("answer", flag.ContinueOnError)
	from := fs.String("from", "operator", "Responder identity recorded in the response")
	extra := fs.String("context", "", "Extra context to pass back with the answer")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: pigeonhole answer [--from <who>] [--context <text>] <question-id> <answer>")
		return 1
	}
	id := rest[0]
	answer := strings.TrimSpace(strings.Join(rest[1:], " "))
	if answer == "" {
		fmt.Fprintln(os.Stderr, "Error: answer text is empty")
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

	// Warn about likely typos, but still accept the response: the question
	// may land later and the scanner will match it by ID.
	q, err := store.Question(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: no question %s in the mailbox; writing response anyway\n", id)
	} else if q.Status != mailbox.StatusPending {
		fmt.Fprintf(os.Stderr, "Note: question %s is already %s; this response will be ignored\n", id, q.Status)
	}

	now := time.Now()
	stamp := store.UniqueID(mailbox.KindResponse, now)
	r := &mailbox.Response{
		ID:           id,
		CreatedAt:    now,
		From:         *from,
		Answer:       answer,
		ExtraContext: *extra,
	}
	if err := store.PutResponse(stamp, r); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing response: %v\n", err)
		return 1
	}

	fmt.Printf("Response recorded for %s\n", id)
	return 0
}
