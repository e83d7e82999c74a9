package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/relayworks/pigeonhole/internal/mailbox"
	"github.com/relayworks/pigeonhole/internal/relay"
)

// stringList collects a repeatable flag value.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ", ") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// AskCommand handles 'pigeonhole ask': write a pending question into the
// mailbox and print its identifier.
func AskCommand(args []string, configPath string) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	var options stringList
	fs.Var(&options, "option", "Answer option as 'label' or 'label:description' (repeatable)")
	background := fs.String("context", "", "Background the operator needs to decide")
	asker := fs.String("asker", "", "Asker identity (default from config)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, "Usage: pigeonhole ask [--option <label>]... [--context <text>] <question>")
		return 1
	}

	var opts []mailbox.Option
	for _, raw := range options {
		label, desc, _ := strings.Cut(raw, ":")
		opts = append(opts, mailbox.Option{
			Label:       strings.TrimSpace(label),
			Description: strings.TrimSpace(desc),
		})
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

	who := cfg.Relay.Asker
	if *asker != "" {
		who = *asker
	}

	writer := relay.NewWriter(store, who, openTrail(cfg, logger), logger,
		relay.WithWriteAttempts(cfg.Relay.WriteAttempts))
	id, err := writer.Ask(context.Background(), text, opts, *background)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing question: %v\n", err)
		return 1
	}

	fmt.Println(id)
	fmt.Fprintf(os.Stderr, "Answer with: pigeonhole answer %s <text>\n", id)
	return 0
}
