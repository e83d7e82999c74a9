package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/relayworks/pigeonhole/internal/mailbox"
)

func testStore(t *testing.T) *mailbox.Store {
	t.Helper()
	s, err := mailbox.New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func putQuestion(t *testing.T, s *mailbox.Store, id, text string, status mailbox.Status, opts ...mailbox.Option) {
	t.Helper()
	created, err := time.Parse(mailbox.IDLayout, id)
	if err != nil {
		t.Fatal(err)
	}
	q := &mailbox.Question{
		ID:        id,
		CreatedAt: created,
		Asker:     "orchestrator",
		Text:      text,
		Options:   opts,
		Status:    status,
	}
	if err := s.PutQuestion(q); err != nil {
		t.Fatal(err)
	}
}

// refreshed builds a model and applies one mailbox snapshot plus a window
// size, the minimum for a usable board.
func refreshed(t *testing.T, s *mailbox.Store) Model {
	t.Helper()
	m := New(s, "operator")
	msg := m.refreshCmd()()
	r, ok := msg.(refreshMsg)
	if !ok {
		t.Fatalf("refresh returned %T", msg)
	}
	if r.err != nil {
		t.Fatalf("refresh: %v", r.err)
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	next, _ = next.(Model).Update(r)
	return next.(Model)
}

func TestRefreshOrdersPendingFirst(t *testing.T) {
	s := testStore(t)
	putQuestion(t, s, "20260310T090000+0000", "old archived", mailbox.StatusArchived)
	putQuestion(t, s, "20260311T090000+0000", "older pending", mailbox.StatusPending)
	putQuestion(t, s, "20260312T090000+0000", "newer pending", mailbox.StatusPending)

	m := refreshed(t, s)
	if len(m.questions) != 3 {
		t.Fatalf("questions = %d", len(m.questions))
	}
	if m.questions[0].Text != "newer pending" || m.questions[1].Text != "older pending" {
		t.Errorf("pending not first/newest: %q, %q", m.questions[0].Text, m.questions[1].Text)
	}
	if m.questions[2].Status != mailbox.StatusArchived {
		t.Errorf("archived not last")
	}
}

func TestNavigationMovesCursor(t *testing.T) {
	s := testStore(t)
	putQuestion(t, s, "20260311T090000+0000", "one", mailbox.StatusPending)
	putQuestion(t, s, "20260312T090000+0000", "two", mailbox.StatusPending)

	m := refreshed(t, s)
	if m.cursor != 0 {
		t.Fatalf("cursor = %d", m.cursor)
	}

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 1 {
		t.Errorf("cursor after down = %d", m.cursor)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	if m.cursor != 1 {
		t.Errorf("cursor ran past the end: %d", m.cursor)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if m.cursor != 0 {
		t.Errorf("cursor after up = %d", m.cursor)
	}
}

func TestEnterOpensComposerOnlyForPending(t *testing.T) {
	s := testStore(t)
	putQuestion(t, s, "20260312T090000+0000", "answer me", mailbox.StatusPending)

	m := refreshed(t, s)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if !m.composing {
		t.Error("composer did not open for pending question")
	}

	// Esc backs out.
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	if m.composing {
		t.Error("esc did not close composer")
	}

	s2 := testStore(t)
	putQuestion(t, s2, "20260312T090000+0000", "done", mailbox.StatusArchived)
	m2 := refreshed(t, s2)
	next, _ = m2.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m2 = next.(Model)
	if m2.composing {
		t.Error("composer opened for archived question")
	}
	if m2.status == "" {
		t.Error("no status explaining the refusal")
	}
}

func TestComposeWritesResponse(t *testing.T) {
	s := testStore(t)
	putQuestion(t, s, "20260312T090000+0000", "ship it?", mailbox.StatusPending)

	m := refreshed(t, s)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	m.composer.SetValue("yes, ship")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("no save command returned")
	}

	out := cmd()
	saved, ok := out.(answerSavedMsg)
	if !ok {
		t.Fatalf("save produced %T", out)
	}
	if saved.err != nil {
		t.Fatalf("save: %v", saved.err)
	}

	responses, _, err := s.Responses()
	if err != nil {
		t.Fatal(err)
	}
	if len(responses) != 1 {
		t.Fatalf("responses = %d", len(responses))
	}
	if responses[0].ID != "20260312T090000+0000" || responses[0].Answer != "yes, ship" {
		t.Errorf("response = %+v", responses[0])
	}
	if responses[0].From != "operator" {
		t.Errorf("from = %q", responses[0].From)
	}
}

func TestResolveOptionByNumber(t *testing.T) {
	q := &mailbox.Question{
		Options: []mailbox.Option{{Label: "JWT"}, {Label: "Sessions"}, {Label: "Both"}},
	}
	cases := map[string]string{
		"2":        "Sessions",
		"3":        "Both",
		"0":        "0",
		"4":        "4",
		"Both":     "Both",
		"whatever": "whatever",
	}
	for in, want := range cases {
		if got := resolveOption(q, in); got != want {
			t.Errorf("resolveOption(%q) = %q, want %q", in, got, want)
		}
	}

	free := &mailbox.Question{}
	if got := resolveOption(free, "2"); got != "2" {
		t.Errorf("free-form question rewrote %q", got)
	}
}

func TestRefreshKeepsSelection(t *testing.T) {
	s := testStore(t)
	putQuestion(t, s, "20260311T090000+0000", "first", mailbox.StatusPending)
	putQuestion(t, s, "20260312T090000+0000", "second", mailbox.StatusPending)

	m := refreshed(t, s)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(Model)
	selected := m.selected().ID

	// A new question arrives; the selection should survive the reload.
	putQuestion(t, s, "20260313T090000+0000", "third", mailbox.StatusPending)
	msg := m.refreshCmd()()
	next, _ = m.Update(msg)
	m = next.(Model)
	if m.selected().ID != selected {
		t.Errorf("selection moved to %s", m.selected().ID)
	}
}

func TestViewRendersWithoutQuestions(t *testing.T) {
	m := refreshed(t, testStore(t))
	if out := m.View(); out == "" {
		t.Error("empty view")
	}
}
