package cli

import (
	"fmt"
	"os"
)

// commandInfo describes a top-level subcommand.
type commandInfo struct {
	Name     string
	Args     string
	Short    string
	Long     string
	Examples []string
}

var commands = []commandInfo{
	{
		Name:  "start",
		Args:  "[--config <file>]",
		Short: "Start the relay service (default action)",
		Long: `Start the pigeonhole relay service.

Scans the mailbox on the configured cadence, matches responses to
pending questions, delivers resolved pairs to the orchestrator intake,
and sweeps old archived pairs.`,
		Examples: []string{
			"pigeonhole",
			"pigeonhole start",
			"pigeonhole start --config /etc/pigeonhole/config.toml",
		},
	},
	{
		Name:  "init",
		Args:  "[--dir <path>]",
		Short: "Write a default config file and create the mailbox",
		Long: `Create the pigeonhole data directory, the mailbox, and a
default config.toml you can edit.`,
		Examples: []string{
			"pigeonhole init",
			"pigeonhole init --dir /opt/pigeonhole",
		},
	},
	{
		Name:  "ask",
		Args:  "[--option <label>]... [--context <text>] <question>",
		Short: "Write a pending question into the mailbox",
		Long: `Write a question for the human operator. Options are offered
as labeled choices; with no options the answer is free-form.

Prints the question ID. The operator answers with 'pigeonhole answer'
or by dropping a response file into the mailbox.`,
		Examples: []string{
			`pigeonhole ask "Which auth approach should the login service use?" --option JWT --option Sessions --option Both`,
			`pigeonhole ask --context "Deploy window closes at 18:00" "Ship release 1.4 today?"`,
		},
	},
	{
		Name:  "answer",
		Args:  "[--from <who>] [--context <text>] <id> <answer>",
		Short: "Record an operator response for a question",
		Long: `Write a response object correlated to a question by ID. The
relay matches it on its next scan; the earliest response wins.`,
		Examples: []string{
			"pigeonhole answer 20260314T091500-0700 Both",
			`pigeonhole answer --from alice --context "JWT alone breaks SSO" 20260314T091500-0700 Both`,
		},
	},
	{
		Name:  "list",
		Args:  "[--status <status>]",
		Short: "List questions in the mailbox",
		Examples: []string{
			"pigeonhole list",
			"pigeonhole list --status pending",
		},
	},
	{
		Name:  "show",
		Args:  "<id>",
		Short: "Show one question with its responses",
		Examples: []string{
			"pigeonhole show 20260314T091500-0700",
		},
	},
	{
		Name:  "status",
		Args:  "[--events <n>]",
		Short: "Summarize the mailbox, archive, and audit trail",
		Examples: []string{
			"pigeonhole status",
			"pigeonhole status --events 20",
		},
	},
	{
		Name:  "sweep",
		Args:  "[--retention <duration>]",
		Short: "Sweep old archived pairs into the cold archive now",
		Long: `Run one lifecycle sweep immediately. Only archived pairs older
than the retention are touched; pending and resolved questions and
orphan responses always stay in place.`,
		Examples: []string{
			"pigeonhole sweep",
			"pigeonhole sweep --retention 72h",
		},
	},
	{
		Name:  "service",
		Args:  "<install|uninstall|status>",
		Short: "Manage the background service (systemd or launchd)",
		Long: `Install or remove the OS service unit that keeps the relay
running in the background.

Subcommands:
  install    Write and load the service unit
  uninstall  Stop and remove the service unit
  status     Show whether the service is loaded`,
		Examples: []string{
			"pigeonhole service install",
			"pigeonhole service status",
		},
	},
	{
		Name:  "version",
		Short: "Print version and build information",
		Examples: []string{
			"pigeonhole version",
			"pigeonhole --version",
		},
	},
}

// PrintHelp prints top-level help (pigeonhole help).
func PrintHelp(binaryName string) {
	fmt.Fprintf(os.Stdout, `Pigeonhole - file-mediated question relay
https://github.com/relayworks/pigeonhole

USAGE:
  %s [command] [flags]

COMMANDS:
`, binaryName)

	for _, c := range commands {
		fmt.Fprintf(os.Stdout, "  %-9s %-44s %s\n", c.Name, c.Args, c.Short)
	}

	fmt.Fprintf(os.Stdout, `
GLOBAL FLAGS:
  --config <file>   Path to config file (default: ~/.pigeonhole/config.toml)
  --version         Print version information
  -h, --help        Show this help message

Run '%s help <command>' for detailed help on a specific command.
`, binaryName)
}

// PrintCommandHelp prints help for a specific subcommand.
func PrintCommandHelp(binaryName, cmdName string) {
	for _, c := range commands {
		if c.Name != cmdName {
			continue
		}
		fmt.Fprintf(os.Stdout, "COMMAND: %s %s\n\n", binaryName, c.Name)
		if c.Args != "" {
			fmt.Fprintf(os.Stdout, "USAGE:\n  %s %s %s\n\n", binaryName, c.Name, c.Args)
		}
		if c.Long != "" {
			fmt.Fprintf(os.Stdout, "DESCRIPTION:\n  %s\n\n", c.Long)
		}
		if len(c.Examples) > 0 {
			fmt.Fprintln(os.Stdout, "EXAMPLES:")
			for _, ex := range c.Examples {
				fmt.Fprintf(os.Stdout, "  %s\n", ex)
			}
			fmt.Fprintln(os.Stdout)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "Unknown command: %s\n\nRun '%s help' for a list of commands.\n", cmdName, binaryName)
}

// CommandNames returns all valid command names (used for error messages).
func CommandNames() []string {
	names := make([]string, len(commands))
	for i, c := range commands {
		names[i] = c.Name
	}
	return names
}
