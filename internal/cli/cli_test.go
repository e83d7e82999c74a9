package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relayworks/pigeonhole/internal/config"
	"github.com/relayworks/pigeonhole/internal/mailbox"
)

// writeTestConfig creates a config file rooted in a temp dir and returns
// its path along with the mailbox directory.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Mailbox.Dir = filepath.Join(dir, "mailbox")
	cfg.Archive.Path = filepath.Join(dir, "archive.db")
	cfg.Audit.Path = filepath.Join(dir, "audit.jsonl")
	path := filepath.Join(dir, "config.toml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save config: %v", err)
	}
	return path, cfg.Mailbox.Dir
}

func TestAskWritesPendingQuestion(t *testing.T) {
	configPath, mailboxDir := writeTestConfig(t)

	code := AskCommand([]string{"--option", "JWT", "--option", "Sessions", "Which auth approach?"}, configPath)
	if code != 0 {
		t.Fatalf("ask exit code = %d", code)
	}

	store, err := mailbox.New(mailboxDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	questions, _, err := store.Questions()
	if err != nil {
		t.Fatal(err)
	}
	if len(questions) != 1 {
		t.Fatalf("questions = %d, want 1", len(questions))
	}
	q := questions[0]
	if q.Status != mailbox.StatusPending {
		t.Errorf("status = %s", q.Status)
	}
	if q.Text != "Which auth approach?" {
		t.Errorf("text = %q", q.Text)
	}
	if len(q.Options) != 2 || q.Options[0].Label != "JWT" {
		t.Errorf("options = %+v", q.Options)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	if code := AskCommand(nil, configPath); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestAskRejectsSingleOption(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	if code := AskCommand([]string{"--option", "only", "Pick one?"}, configPath); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestAnswerWritesResponse(t *testing.T) {
	configPath, mailboxDir := writeTestConfig(t)
	if code := AskCommand([]string{"Ship it?"}, configPath); code != 0 {
		t.Fatal("ask failed")
	}

	store, err := mailbox.New(mailboxDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	questions, _, _ := store.Questions()
	id := questions[0].ID

	if code := AnswerCommand([]string{"--from", "alice", id, "yes"}, configPath); code != 0 {
		t.Fatal("answer failed")
	}

	responses, _, err := store.Responses()
	if err != nil {
		t.Fatal(err)
	}
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
	if responses[0].ID != id || responses[0].Answer != "yes" || responses[0].From != "alice" {
		t.Errorf("response = %+v", responses[0])
	}
}

func TestAnswerForUnknownQuestionStillWrites(t *testing.T) {
	configPath, mailboxDir := writeTestConfig(t)

	if code := AnswerCommand([]string{"20990101T000000+0000", "early"}, configPath); code != 0 {
		t.Fatal("answer failed")
	}

	store, _ := mailbox.New(mailboxDir, nil)
	responses, _, _ := store.Responses()
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
}

func TestAnswerUsage(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	if code := AnswerCommand([]string{"just-an-id"}, configPath); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestListAndShow(t *testing.T) {
	configPath, mailboxDir := writeTestConfig(t)
	if code := AskCommand([]string{"First question?"}, configPath); code != 0 {
		t.Fatal("ask failed")
	}

	if code := ListCommand(nil, configPath); code != 0 {
		t.Errorf("list exit code = %d", code)
	}
	if code := ListCommand([]string{"--status", "pending"}, configPath); code != 0 {
		t.Errorf("filtered list exit code = %d", code)
	}
	if code := ListCommand([]string{"--status", "bogus"}, configPath); code != 1 {
		t.Errorf("bad status filter exit code = %d, want 1", code)
	}

	store, _ := mailbox.New(mailboxDir, nil)
	questions, _, _ := store.Questions()
	if code := ShowCommand([]string{questions[0].ID}, configPath); code != 0 {
		t.Errorf("show exit code = %d", code)
	}
	if code := ShowCommand([]string{"20990101T000000+0000"}, configPath); code != 1 {
		t.Errorf("show missing exit code = %d, want 1", code)
	}
}

func TestStatusCommand(t *testing.T) {
	configPath, _ := writeTestConfig(t)
	if code := AskCommand([]string{"Anything pending?"}, configPath); code != 0 {
		t.Fatal("ask failed")
	}
	if code := StatusCommand(nil, configPath); code != 0 {
		t.Errorf("status exit code = %d", code)
	}
}

func TestSweepCommandLeavesRecentPairs(t *testing.T) {
	configPath, mailboxDir := writeTestConfig(t)
	if code := AskCommand([]string{"Keep me?"}, configPath); code != 0 {
		t.Fatal("ask failed")
	}

	if code := SweepCommand([]string{"--retention", "1h"}, configPath); code != 0 {
		t.Errorf("sweep exit code = %d", code)
	}

	store, _ := mailbox.New(mailboxDir, nil)
	questions, _, _ := store.Questions()
	if len(questions) != 1 {
		t.Errorf("pending question was swept")
	}
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	if code := InitCommand([]string{"--dir", dir}); code != 0 {
		t.Fatalf("init exit code = %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("config not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "mailbox")); err != nil {
		t.Errorf("mailbox not created: %v", err)
	}

	// Second init without --force refuses to clobber.
	if code := InitCommand([]string{"--dir", dir}); code != 1 {
		t.Errorf("re-init exit code = %d, want 1", code)
	}
	if code := InitCommand([]string{"--dir", dir, "--force"}); code != 0 {
		t.Errorf("forced re-init exit code = %d", code)
	}
}

func TestHelpKnowsEveryCommand(t *testing.T) {
	for _, name := range CommandNames() {
		PrintCommandHelp("pigeonhole", name)
	}
}
