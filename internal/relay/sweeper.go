package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayworks/pigeonhole/internal/archive"
	"github.com/relayworks/pigeonhole/internal/audit"
	"github.com/relayworks/pigeonhole/internal/mailbox"
)

// ColdStore receives swept pairs before their mailbox objects are removed.
// *archive.Store satisfies it; a nil ColdStore means delete-only sweeps.
type ColdStore interface {
	Insert(ctx context.Context, p archive.Pair) error
}

// Sweeper retires archived pairs past retention. Purely advisory: its
// absence only lets the store grow. Pending and resolved questions, and
// orphan responses, are never touched.
type Sweeper struct {
	store  *mailbox.Store
	cold   ColdStore
	trail  *audit.Log
	logger *slog.Logger
	now    func() time.Time
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperClock injects the clock used for retention checks.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper creates a lifecycle sweeper. cold may be nil.
func NewSweeper(store *mailbox.Store, cold ColdStore, trail *audit.Log, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sweeper{
		store:  store,
		cold:   cold,
		trail:  trail,
		logger: logger.With("component", "sweeper"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep removes every archived question older than retention together
// with its correlated responses. With a cold store configured the pair is
// inserted there first; an insert failure leaves the pair in place for the
// next sweep. Returns the number of pairs removed.
func (s *Sweeper) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	questions, malformed, err := s.store.Questions()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for _, m := range malformed {
		s.logger.Warn("skipping malformed question", "object", m.Name, "reason", m.Reason)
	}

	responses, _, err := s.store.Responses()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	byID := make(map[string][]*mailbox.Response)
	for _, r := range responses {
		byID[r.ID] = append(byID[r.ID], r)
	}

	cutoff := s.now().Add(-retention)
	removed := 0
	for _, q := range questions {
		if ctx.Err() != nil {
			break
		}
		if q.Status != mailbox.StatusArchived || !q.CreatedAt.Before(cutoff) {
			continue
		}

		if s.cold != nil {
			if err := s.archivePair(ctx, q, byID[q.ID]); err != nil {
				s.logger.Warn("cold archive insert failed, pair kept", "id", q.ID, "error", err)
				continue
			}
		}

		if err := s.removePair(q, byID[q.ID]); err != nil {
			return removed, err
		}
		s.trail.Record(audit.EventPairSwept, q.ID, "")
		removed++
	}

	if removed > 0 {
		s.logger.Info("sweep complete", "removed", removed, "retention", retention)
	}
	return removed, nil
}

func (s *Sweeper) archivePair(ctx context.Context, q *mailbox.Question, rs []*mailbox.Response) error {
	pair := archive.Pair{
		ID:       q.ID,
		AskedAt:  q.CreatedAt,
		Asker:    q.Asker,
		Question: q.Text,
		SweptAt:  s.now(),
	}
	if len(rs) > 0 {
		// The earliest response was the authoritative one; the scanner's
		// ordering rule applies here too.
		auth := rs[0]
		for _, r := range rs[1:] {
			if r.CreatedAt.Before(auth.CreatedAt) ||
				(r.CreatedAt.Equal(auth.CreatedAt) && r.Name < auth.Name) {
				auth = r
			}
		}
		pair.AnsweredAt = auth.CreatedAt
		pair.Answer = auth.Answer
		pair.ExtraContext = auth.ExtraContext
	}
	return s.cold.Insert(ctx, pair)
}

func (s *Sweeper) removePair(q *mailbox.Question, rs []*mailbox.Response) error {
	if err := s.store.Remove(mailbox.KindQuestion, q.ID); err != nil {
		return fmt.Errorf("%w: remove question %s: %v", ErrStoreUnavailable, q.ID, err)
	}
	for _, r := range rs {
		stamp := responseStamp(r)
		if err := s.store.Remove(mailbox.KindResponse, stamp); err != nil {
			s.logger.Warn("response removal failed", "object", r.Name, "error", err)
		}
	}
	s.logger.Debug("pair swept", "id", q.ID, "responses", len(rs))
	return nil
}

// responseStamp recovers the store id (the filename stamp) from a listed
// response object.
func responseStamp(r *mailbox.Response) string {
	name := r.Name
	name = name[len("response-"):]
	return name[:len(name)-len(".md")]
}
