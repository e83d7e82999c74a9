// Package intake delivers resolved question/answer pairs to the
// orchestrator. Delivery is at-least-once: the dispatcher retries on the
// next tick until the question is archived, so every adapter carries the
// question id as an idempotency key.
package intake

import (
	"context"
	"errors"
	"time"
)

// ErrRetryLater marks a delivery refusal that should be retried on a later
// tick rather than treated as permanent.
var ErrRetryLater = errors.New("intake: retry later")

// Delivery is one resolved pair on its way to the orchestrator.
type Delivery struct {
	ID           string    `json:"id"`
	Asker        string    `json:"asker"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	ExtraContext string    `json:"extra_context,omitempty"`
	AskedAt      time.Time `json:"asked_at"`
	AnsweredAt   time.Time `json:"answered_at"`
}

// Intake is the orchestrator's side of the relay. Deliver must be safe to
// call more than once with the same Delivery.ID.
type Intake interface {
	Deliver(ctx context.Context, d Delivery) error
}

// Func adapts a plain function to the Intake interface.
type Func func(ctx context.Context, d Delivery) error

func (f Func) Deliver(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}
