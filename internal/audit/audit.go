// Package audit keeps an append-only JSONL trail of relay events. The
// trail is purely observational: an append failure is logged and never
// blocks the relay.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds written by the relay components.
const (
	EventQuestionCreated = "question_created"
	EventResponseMatched = "response_matched"
	EventPairRelayed     = "pair_relayed"
	EventRelayDeferred   = "relay_deferred"
	EventPairSwept       = "pair_swept"
	EventOrphanResponse  = "orphan_response"
)

// Event is one line of the trail.
type Event struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	QuestionID string    `json:"question_id"`
	At         time.Time `json:"at"`
	Detail     string    `json:"detail,omitempty"`
}

// Log is an append-only JSONL event log. A nil *Log is a valid no-op
// recorder, so callers never need to branch on whether auditing is enabled.
type Log struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// Open creates a log writing to path, creating parent directories as
// needed.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &Log{
		path:   path,
		logger: logger.With("component", "audit"),
		now:    time.Now,
	}, nil
}

func (l *Log) generateID() string {
	return fmt.Sprintf("evt_%s_%s", l.now().Format("20060102_150405"), uuid.New().String()[:8])
}

// Record appends one event. Failures are logged, never returned: auditing
// must not abort relay operations.
func (l *Log) Record(kind, questionID, detail string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	event := Event{
		EventID:    l.generateID(),
		Kind:       kind,
		QuestionID: questionID,
		At:         l.now(),
		Detail:     detail,
	}

	data, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("audit marshal failed", "kind", kind, "error", err)
		return
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		l.logger.Warn("audit append failed", "kind", kind, "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.logger.Warn("audit write failed", "kind", kind, "error", err)
		return
	}

	l.logger.Debug("audit event", "kind", kind, "question", questionID, "event", event.EventID)
}

// Events reloads the trail from disk. Malformed lines are skipped, not
// fatal: the trail is written by this process but may be truncated by a
// crash mid-append.
func (l *Log) Events() ([]Event, error) {
	if l == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}
