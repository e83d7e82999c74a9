package relay

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/relayworks/pigeonhole/internal/intake"
	"github.com/relayworks/pigeonhole/internal/mailbox"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func testStore(t *testing.T) *mailbox.Store {
	t.Helper()
	s, err := mailbox.New(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func fixedClock(id string) func() time.Time {
	at, err := time.Parse(mailbox.IDLayout, id)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return at }
}

// recordingIntake captures deliveries and optionally fails them.
type recordingIntake struct {
	mu         sync.Mutex
	deliveries []intake.Delivery
	err        error
}

func (r *recordingIntake) Deliver(_ context.Context, d intake.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.deliveries = append(r.deliveries, d)
	return nil
}

func (r *recordingIntake) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.deliveries)
}

// writeResponse publishes an operator response under the given filename
// stamp.
func writeResponse(t *testing.T, s *mailbox.Store, stamp, id string, createdAt time.Time, answer string) {
	t.Helper()
	r := &mailbox.Response{
		ID:        id,
		CreatedAt: createdAt,
		From:      "operator",
		Answer:    answer,
	}
	if err := s.PutResponse(stamp, r); err != nil {
		t.Fatalf("put response: %v", err)
	}
}

func TestAskWritesPendingQuestion(t *testing.T) {
	s := testStore(t)
	w := NewWriter(s, "orchestrator", nil, testLogger(),
		WithWriterClock(fixedClock("20260314T092653+0200")))

	id, err := w.Ask(context.Background(), "Which auth scheme?",
		[]mailbox.Option{{Label: "JWT"}, {Label: "Sessions"}, {Label: "Both"}},
		"Auth for the new API")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if id != "20260314T092653+0200" {
		t.Errorf("unexpected id: %s", id)
	}

	q, err := s.Question(id)
	if err != nil {
		t.Fatalf("reload question: %v", err)
	}
	if q.Status != mailbox.StatusPending {
		t.Errorf("status = %s, want pending", q.Status)
	}
	if q.Asker != "orchestrator" || len(q.Options) != 3 || q.Context != "Auth for the new API" {
		t.Errorf("question content: %+v", q)
	}
}

func TestAskDisambiguatesCollidingIDs(t *testing.T) {
	s := testStore(t)
	w := NewWriter(s, "orchestrator", nil, testLogger(),
		WithWriterClock(fixedClock("20260314T092653+0200")))

	first, err := w.Ask(context.Background(), "one", nil, "")
	if err != nil {
		t.Fatalf("first ask: %v", err)
	}
	second, err := w.Ask(context.Background(), "two", nil, "")
	if err != nil {
		t.Fatalf("second ask: %v", err)
	}

	if first == second {
		t.Fatalf("ids collided: %s", first)
	}
	if second != first+".2" {
		t.Errorf("expected monotonic disambiguator, got %s", second)
	}
}

func TestAskValidatesOptions(t *testing.T) {
	s := testStore(t)
	w := NewWriter(s, "orchestrator", nil, testLogger())

	opts := func(n int) []mailbox.Option {
		var o []mailbox.Option
		for i := 0; i < n; i++ {
			o = append(o, mailbox.Option{Label: string(rune('a' + i))})
		}
		return o
	}

	for _, n := range []int{0, 2, 3, 4} {
		if _, err := w.Ask(context.Background(), "q", opts(n), ""); err != nil {
			t.Errorf("%d options should be valid: %v", n, err)
		}
	}
	for _, n := range []int{1, 5} {
		if _, err := w.Ask(context.Background(), "q", opts(n), ""); !errors.Is(err, ErrBadOptions) {
			t.Errorf("%d options: expected ErrBadOptions, got %v", n, err)
		}
	}
}

func TestAskRequiresText(t *testing.T) {
	s := testStore(t)
	w := NewWriter(s, "orchestrator", nil, testLogger())
	if _, err := w.Ask(context.Background(), "", nil, ""); err == nil {
		t.Error("empty question text must be rejected")
	}
}

func TestAskStoreUnavailable(t *testing.T) {
	s := testStore(t)
	// Make the directory unwritable so every publish attempt fails.
	if err := os.Chmod(s.Dir(), 0500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(s.Dir(), 0750) })
	if os.Geteuid() == 0 {
		t.Skip("running as root, permission bits are not enforced")
	}

	w := NewWriter(s, "orchestrator", nil, testLogger(), WithWriteAttempts(2))
	_, err := w.Ask(context.Background(), "q", nil, "")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestAskHonorsContextCancel(t *testing.T) {
	s := testStore(t)
	w := NewWriter(s, "orchestrator", nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Ask(ctx, "q", nil, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
