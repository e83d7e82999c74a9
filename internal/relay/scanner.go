package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/relayworks/pigeonhole/internal/audit"
	"github.com/relayworks/pigeonhole/internal/mailbox"
)

// Pair is a question matched with its authoritative response, ready for
// the dispatcher.
type Pair struct {
	Question *mailbox.Question
	Response *mailbox.Response
}

// Orphan is a diagnostic for a response with no matching question. The
// object stays in the store for manual inspection; a question appearing
// later (out-of-order store propagation) is matched by a later scan.
type Orphan struct {
	DiagnosticID string
	ResponseID   string
	Name         string
}

// Scanner pairs responses with their questions and commits the
// pending -> resolved transition. That compare-and-set is the commit point
// of the at-most-once relay invariant: a pair is emitted for first-time
// dispatch only if this scanner won the transition.
type Scanner struct {
	store  *mailbox.Store
	trail  *audit.Log
	logger *slog.Logger
}

// NewScanner creates a response scanner.
func NewScanner(store *mailbox.Store, trail *audit.Log, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		store:  store,
		trail:  trail,
		logger: logger.With("component", "scanner"),
	}
}

// Scan lists the store and returns every pair ready for relay plus orphan
// diagnostics. Ready means: a pending question whose transition to
// resolved committed in this scan, or a question already resolved but not
// yet archived (the dispatcher's implicit retry queue). Scan mutates
// nothing else and is idempotent when no new responses exist.
func (s *Scanner) Scan(ctx context.Context) ([]Pair, []Orphan, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	questions, badQuestions, err := s.store.Questions()
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	responses, badResponses, err := s.store.Responses()
	if err != nil {
		return nil, nil, fmt.Errorf("list responses: %w", err)
	}
	for _, m := range badQuestions {
		s.logger.Warn("skipping malformed question", "object", m.Name, "reason", m.Reason)
	}
	for _, m := range badResponses {
		s.logger.Warn("skipping malformed response", "object", m.Name, "reason", m.Reason)
	}

	byID := make(map[string]*mailbox.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	// Group responses by question id; the earliest created_at wins, object
	// name as deterministic tie-break.
	grouped := make(map[string][]*mailbox.Response)
	for _, r := range responses {
		grouped[r.ID] = append(grouped[r.ID], r)
	}
	for _, group := range grouped {
		sort.Slice(group, func(i, j int) bool {
			if !group[i].CreatedAt.Equal(group[j].CreatedAt) {
				return group[i].CreatedAt.Before(group[j].CreatedAt)
			}
			return group[i].Name < group[j].Name
		})
	}

	var pairs []Pair
	var orphans []Orphan
	for _, r := range responses {
		q, ok := byID[r.ID]
		if !ok {
			o := Orphan{
				DiagnosticID: fmt.Sprintf("orph_%s", uuid.New().String()[:8]),
				ResponseID:   r.ID,
				Name:         r.Name,
			}
			orphans = append(orphans, o)
			s.trail.Record(audit.EventOrphanResponse, r.ID, r.Name)
			s.logger.Warn("orphan response", "diagnostic", o.DiagnosticID, "object", r.Name)
			continue
		}

		authoritative := grouped[r.ID][0]
		if r.Name != authoritative.Name {
			// Duplicate for this scan; the authoritative response carries
			// the pair.
			s.logger.Debug("duplicate response ignored", "id", r.ID, "object", r.Name)
			continue
		}

		switch q.Status {
		case mailbox.StatusPending:
			if err := s.store.Advance(q.ID, mailbox.StatusPending, mailbox.StatusResolved); err != nil {
				var conflict *mailbox.StatusConflictError
				if errors.As(err, &conflict) {
					// Another scanner committed first; it owns the pair.
					s.logger.Debug("lost resolve race", "id", q.ID, "status", conflict.Got)
					continue
				}
				return nil, nil, fmt.Errorf("resolve %s: %w", q.ID, err)
			}
			q.Status = mailbox.StatusResolved
			pairs = append(pairs, Pair{Question: q, Response: authoritative})
			s.trail.Record(audit.EventResponseMatched, q.ID, authoritative.Answer)
			s.logger.Info("response matched", "id", q.ID, "answer", authoritative.Answer)

		case mailbox.StatusResolved:
			// Relayed before but never archived: re-emit for re-delivery.
			pairs = append(pairs, Pair{Question: q, Response: authoritative})
			s.logger.Debug("re-emitting resolved pair for relay retry", "id", q.ID)

		case mailbox.StatusArchived:
			// Late or duplicate arrival for a finished pair; expected,
			// not an error.
			s.logger.Debug("response for archived question ignored", "id", q.ID, "object", r.Name)
		}
	}

	return pairs, orphans, nil
}
