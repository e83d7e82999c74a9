// Package schedule decides when relay ticks fire: either a fixed interval
// or a standard cron expression. The service computes the next firing time
// from a Spec instead of owning a loop, so tests drive ticks directly.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Spec defines a tick cadence.
type Spec struct {
	Kind     string        // "interval" or "cron"
	Interval time.Duration // interval kind
	Expr     string        // cron kind, standard 5-field expression
}

// Interval returns an interval spec.
func Interval(d time.Duration) Spec {
	return Spec{Kind: "interval", Interval: d}
}

// Cron returns a cron spec.
func Cron(expr string) Spec {
	return Spec{Kind: "cron", Expr: expr}
}

// Zero reports whether the spec is unset.
func (s Spec) Zero() bool {
	return s.Kind == ""
}

// Validate checks the spec is well-formed.
func (s Spec) Validate() error {
	switch s.Kind {
	case "interval":
		if s.Interval <= 0 {
			return fmt.Errorf("schedule: interval must be positive")
		}
	case "cron":
		if s.Expr == "" {
			return fmt.Errorf("schedule: cron expression required")
		}
		if _, err := cron.ParseStandard(s.Expr); err != nil {
			return fmt.Errorf("schedule: invalid cron expression: %w", err)
		}
	default:
		return fmt.Errorf("schedule: unknown kind %q (use interval or cron)", s.Kind)
	}
	return nil
}

// Next returns the first firing time strictly after from.
func (s Spec) Next(from time.Time) (time.Time, error) {
	switch s.Kind {
	case "interval":
		if s.Interval <= 0 {
			return time.Time{}, fmt.Errorf("schedule: interval must be positive")
		}
		return from.Add(s.Interval), nil
	case "cron":
		sched, err := cron.ParseStandard(s.Expr)
		if err != nil {
			return time.Time{}, fmt.Errorf("schedule: parse cron: %w", err)
		}
		return sched.Next(from), nil
	default:
		return time.Time{}, fmt.Errorf("schedule: unknown kind %q", s.Kind)
	}
}
