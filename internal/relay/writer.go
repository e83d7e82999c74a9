// Package relay implements the question/answer relay core: a writer that
// records questions for the human operator, a scanner that pairs answers
// back to them, a dispatcher that forwards resolved pairs to the
// orchestrator, and a sweeper that retires archived pairs. The service
// drives the three periodic stages on a tick.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayworks/pigeonhole/internal/audit"
	"github.com/relayworks/pigeonhole/internal/mailbox"
)

// ErrStoreUnavailable is returned when the mailbox store cannot be written
// after the bounded number of attempts. Fatal to the failing call only.
var ErrStoreUnavailable = errors.New("relay: mailbox store unavailable")

// ErrBadOptions is returned when a question's option count is invalid.
var ErrBadOptions = errors.New("relay: questions carry either no options or 2 to 4")

// defaultWriteAttempts bounds store write retries before an Ask gives up.
const defaultWriteAttempts = 3

// Writer records pending questions on behalf of the asker. Ask blocks the
// asker's control flow only for the write itself; waiting for the answer
// is the scanner's job.
type Writer struct {
	store    *mailbox.Store
	asker    string
	attempts int
	trail    *audit.Log
	logger   *slog.Logger
	now      func() time.Time
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriteAttempts bounds store write retries.
func WithWriteAttempts(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.attempts = n
		}
	}
}

// WithWriterClock injects the clock used for identifiers and timestamps.
func WithWriterClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a question writer for the given asker identity.
func NewWriter(store *mailbox.Store, asker string, trail *audit.Log, logger *slog.Logger, opts ...WriterOption) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		store:    store,
		asker:    asker,
		attempts: defaultWriteAttempts,
		trail:    trail,
		logger:   logger.With("component", "writer"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Ask durably records a pending question and returns its id. The id is
// derived from the current time at second resolution; a collision with an
// existing object gets a monotonic disambiguator. Write failures are
// retried up to the bounded attempt count, then surface as
// ErrStoreUnavailable.
func (w *Writer) Ask(ctx context.Context, text string, options []mailbox.Option, background string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("relay: question text required")
	}
	if n := len(options); n == 1 || n > 4 {
		return "", fmt.Errorf("%w, got %d", ErrBadOptions, n)
	}

	now := w.now()
	q := &mailbox.Question{
		CreatedAt: now,
		Asker:     w.asker,
		Text:      text,
		Options:   options,
		Context:   background,
		Status:    mailbox.StatusPending,
	}

	var lastErr error
	for attempt := 1; attempt <= w.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		// Re-derive the id each attempt so a collision created between
		// attempts still gets disambiguated.
		q.ID = w.store.UniqueID(mailbox.KindQuestion, now)

		err := w.store.CreateQuestion(q)
		if err == nil {
			w.trail.Record(audit.EventQuestionCreated, q.ID, text)
			w.logger.Info("question recorded", "id", q.ID, "options", len(options))
			return q.ID, nil
		}
		if errors.Is(err, mailbox.ErrExists) {
			// Lost a race on the disambiguated id; retry is free.
			w.logger.Debug("id collision, retrying", "id", q.ID)
			lastErr = err
			continue
		}

		lastErr = err
		w.logger.Warn("question write failed", "attempt", attempt, "error", err)
	}

	return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}
