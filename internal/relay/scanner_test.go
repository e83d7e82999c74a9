package relay

import (
	"context"
	"testing"
	"time"

	"github.com/relayworks/pigeonhole/internal/mailbox"
)

func ask(t *testing.T, s *mailbox.Store, id, text string) string {
	t.Helper()
	w := NewWriter(s, "orchestrator", nil, testLogger(), WithWriterClock(fixedClock(id)))
	got, err := w.Ask(context.Background(), text, nil, "")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	return got
}

func TestScanNoResponsesIsQuiet(t *testing.T) {
	s := testStore(t)
	id := ask(t, s, "20260314T092653+0200", "Proceed?")
	sc := NewScanner(s, nil, testLogger())

	pairs, orphans, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(pairs) != 0 || len(orphans) != 0 {
		t.Fatalf("expected nothing, got %d pairs %d orphans", len(pairs), len(orphans))
	}

	q, _ := s.Question(id)
	if q.Status != mailbox.StatusPending {
		t.Errorf("question must stay pending, got %s", q.Status)
	}
}

func TestScanMatchesAndResolves(t *testing.T) {
	s := testStore(t)
	id := ask(t, s, "20260314T092653+0200", "Which auth scheme?")
	answered := time.Date(2026, 3, 14, 11, 2, 0, 0, time.UTC)
	writeResponse(t, s, "20260314T110200+0000", id, answered, "Both")

	sc := NewScanner(s, nil, testLogger())
	pairs, orphans, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("unexpected orphans: %+v", orphans)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Question.ID != id || pairs[0].Response.Answer != "Both" {
		t.Errorf("pair mismatch: %+v", pairs[0])
	}
	if pairs[0].Question.Status != mailbox.StatusResolved {
		t.Errorf("emitted question should carry resolved status")
	}

	q, _ := s.Question(id)
	if q.Status != mailbox.StatusResolved {
		t.Errorf("stored status = %s, want resolved", q.Status)
	}
}

func TestScanReEmitsResolvedUntilArchived(t *testing.T) {
	s := testStore(t)
	id := ask(t, s, "20260314T092653+0200", "Proceed?")
	writeResponse(t, s, "20260314T110200+0000", id, time.Now(), "yes")

	sc := NewScanner(s, nil, testLogger())
	ctx := context.Background()

	if pairs, _, _ := sc.Scan(ctx); len(pairs) != 1 {
		t.Fatal("first scan should emit the pair")
	}
	// Relay failed (question still resolved): the pair is the dispatcher's
	// retry queue and must come back.
	pairs, _, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("resolved-but-not-archived pair must be re-emitted, got %d", len(pairs))
	}

	// Once archived, scans go quiet for good.
	if err := s.Advance(id, mailbox.StatusResolved, mailbox.StatusArchived); err != nil {
		t.Fatalf("advance: %v", err)
	}
	pairs, orphans, err := sc.Scan(ctx)
	if err != nil {
		t.Fatalf("third scan: %v", err)
	}
	if len(pairs) != 0 || len(orphans) != 0 {
		t.Errorf("archived question must never re-emit, got %d pairs", len(pairs))
	}
}

func TestScanEarliestResponseWins(t *testing.T) {
	s := testStore(t)
	id := ask(t, s, "20260314T092653+0200", "Which auth scheme?")

	late := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	early := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	writeResponse(t, s, "20260314T120000+0000", id, late, "JWT")
	writeResponse(t, s, "20260314T110000+0000", id, early, "Both")

	sc := NewScanner(s, nil, testLogger())
	pairs, _, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected exactly 1 pair despite 2 responses, got %d", len(pairs))
	}
	if pairs[0].Response.Answer != "Both" {
		t.Errorf("earliest created_at must win, got %q", pairs[0].Response.Answer)
	}
}

func TestScanTieBreakByObjectName(t *testing.T) {
	s := testStore(t)
	id := ask(t, s, "20260314T092653+0200", "Proceed?")

	at := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	writeResponse(t, s, "20260314T110000+0000.2", id, at, "second")
	writeResponse(t, s, "20260314T110000+0000", id, at, "first")

	sc := NewScanner(s, nil, testLogger())
	pairs, _, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(pairs) != 1 || pairs[0].Response.Answer != "first" {
		t.Errorf("name tie-break must be deterministic, got %+v", pairs)
	}
}

func TestScanOrphanResponse(t *testing.T) {
	s := testStore(t)
	writeResponse(t, s, "20260314T110000+0000", "20260301T000000+0000", time.Now(), "yes")

	sc := NewScanner(s, nil, testLogger())
	pairs, orphans, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(pairs) != 0 {
		t.Fatalf("orphan must not produce a pair")
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan diagnostic, got %d", len(orphans))
	}
	if orphans[0].ResponseID != "20260301T000000+0000" || orphans[0].DiagnosticID == "" {
		t.Errorf("orphan diagnostic incomplete: %+v", orphans[0])
	}

	// The object stays in place for manual inspection and is matched once
	// its question appears.
	if !s.Exists(mailbox.KindResponse, "20260314T110000+0000") {
		t.Fatal("orphan response was removed from the store")
	}
	ask(t, s, "20260301T000000+0000", "Late question")
	pairs, orphans, err = sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if len(pairs) != 1 || len(orphans) != 0 {
		t.Errorf("late-arriving question should match the former orphan, got %d pairs %d orphans",
			len(pairs), len(orphans))
	}
}

func TestScanSkipsMalformedObjects(t *testing.T) {
	s := testStore(t)
	id := ask(t, s, "20260314T092653+0200", "Proceed?")
	writeResponse(t, s, "20260314T110000+0000", id, time.Now(), "yes")

	if err := s.Put(mailbox.KindResponse, "garbled", []byte("no frontmatter here")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(mailbox.KindQuestion, "garbled", []byte("---\nid: x\n---\n")); err != nil {
		t.Fatalf("put: %v", err)
	}

	sc := NewScanner(s, nil, testLogger())
	pairs, orphans, err := sc.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan must not abort on malformed objects: %v", err)
	}
	if len(pairs) != 1 || len(orphans) != 0 {
		t.Errorf("well-formed pair should survive, got %d pairs %d orphans", len(pairs), len(orphans))
	}
	// Malformed objects are left in place.
	if !s.Exists(mailbox.KindResponse, "garbled") || !s.Exists(mailbox.KindQuestion, "garbled") {
		t.Error("malformed objects must stay in the store")
	}
}
