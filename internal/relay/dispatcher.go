package relay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relayworks/pigeonhole/internal/audit"
	"github.com/relayworks/pigeonhole/internal/intake"
	"github.com/relayworks/pigeonhole/internal/mailbox"
)

// Dispatcher forwards resolved pairs to the orchestrator intake. Delivery
// is at-least-once at the intake boundary: only a successful deliver
// advances the question to archived, so a failed pair is re-emitted by the
// next scan and delivered again under the same id.
type Dispatcher struct {
	store  *mailbox.Store
	sink   intake.Intake
	trail  *audit.Log
	logger *slog.Logger
}

// NewDispatcher creates a relay dispatcher.
func NewDispatcher(store *mailbox.Store, sink intake.Intake, trail *audit.Log, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:  store,
		sink:   sink,
		trail:  trail,
		logger: logger.With("component", "dispatcher"),
	}
}

func delivery(p Pair) intake.Delivery {
	return intake.Delivery{
		ID:           p.Question.ID,
		Asker:        p.Question.Asker,
		Question:     p.Question.Text,
		Answer:       p.Response.Answer,
		ExtraContext: p.Response.ExtraContext,
		AskedAt:      p.Question.CreatedAt,
		AnsweredAt:   p.Response.CreatedAt,
	}
}

// Relay delivers one pair. On success the question advances
// resolved -> archived; on failure it stays resolved and is retried on
// the next tick.
func (d *Dispatcher) Relay(ctx context.Context, p Pair) error {
	if err := d.sink.Deliver(ctx, delivery(p)); err != nil {
		d.trail.Record(audit.EventRelayDeferred, p.Question.ID, err.Error())
		d.logger.Warn("relay deferred", "id", p.Question.ID, "error", err)
		return fmt.Errorf("deliver %s: %w", p.Question.ID, err)
	}

	if err := d.store.Advance(p.Question.ID, mailbox.StatusResolved, mailbox.StatusArchived); err != nil {
		// Delivered but not archived: the next tick re-delivers, which the
		// orchestrator's idempotent intake absorbs.
		d.logger.Warn("archive transition failed after delivery", "id", p.Question.ID, "error", err)
		return fmt.Errorf("archive %s: %w", p.Question.ID, err)
	}

	d.trail.Record(audit.EventPairRelayed, p.Question.ID, p.Response.Answer)
	d.logger.Info("pair relayed", "id", p.Question.ID)
	return nil
}

// Dispatch relays every pair in order, continuing past failures so one
// unreachable delivery never starves the rest of the queue. Returns the
// number successfully relayed.
func (d *Dispatcher) Dispatch(ctx context.Context, pairs []Pair) int {
	delivered := 0
	for _, p := range pairs {
		if ctx.Err() != nil {
			break
		}
		if err := d.Relay(ctx, p); err == nil {
			delivered++
		}
	}
	return delivered
}
