package relay

import (
	"fmt"
	"time"
)

// Window is the operating-hours gate: outside it no scan, dispatch, or
// sweep runs. A nil *Window is always open.
type Window struct {
	start int // minutes since local midnight
	end   int
	loc   *time.Location
}

// ParseWindow builds a window from "HH:MM" wall-clock bounds in the given
// timezone (empty means local time). start == end is rejected; a window
// may wrap midnight (e.g. 22:00 to 06:00).
func ParseWindow(start, end, timezone string) (*Window, error) {
	if start == "" && end == "" {
		return nil, nil
	}

	s, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("window start: %w", err)
	}
	e, err := parseClock(end)
	if err != nil {
		return nil, fmt.Errorf("window end: %w", err)
	}
	if s == e {
		return nil, fmt.Errorf("window start and end are both %s", start)
	}

	loc := time.Local
	if timezone != "" {
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("window timezone: %w", err)
		}
	}

	return &Window{start: s, end: e, loc: loc}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (use HH:MM): %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Contains reports whether t falls inside the window. The start bound is
// inclusive, the end bound exclusive.
func (w *Window) Contains(t time.Time) bool {
	if w == nil {
		return true
	}
	local := t.In(w.loc)
	minute := local.Hour()*60 + local.Minute()

	if w.start < w.end {
		return minute >= w.start && minute < w.end
	}
	// Wraps midnight.
	return minute >= w.start || minute < w.end
}

// String renders the window for status output.
func (w *Window) String() string {
	if w == nil {
		return "always"
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d %s",
		w.start/60, w.start%60, w.end/60, w.end%60, w.loc)
}
