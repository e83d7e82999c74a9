package mailbox

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a Question. Transitions are strictly
// pending -> resolved -> archived; Advance rejects anything else.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusArchived Status = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusResolved, StatusArchived:
		return true
	}
	return false
}

// Next returns the successor status, or "" when s is terminal.
func (s Status) Next() Status {
	switch s {
	case StatusPending:
		return StatusResolved
	case StatusResolved:
		return StatusArchived
	}
	return ""
}

// Kind selects one of the two object families in the store.
type Kind string

const (
	KindQuestion Kind = "pending"
	KindResponse Kind = "response"
)

// IDLayout is the timestamp layout used for object identifiers: second
// resolution, numeric zone offset, no characters that are unsafe in
// filenames.
const IDLayout = "20060102T150405-0700"

// Option is one labeled choice offered to the operator.
type Option struct {
	Label       string `yaml:"label" json:"label"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Question is a pending decision written by the asker. The operator never
// edits it; answers arrive as separate Response objects correlated by ID.
type Question struct {
	ID        string
	CreatedAt time.Time
	Asker     string
	Text      string
	Options   []Option
	Context   string
	Status    Status

	// Name is the object name this question was read from (not serialized).
	Name string
}

// Response is an answer written out-of-band by the human operator.
// ID must equal the ID of the question it answers.
type Response struct {
	ID           string
	CreatedAt    time.Time
	From         string
	Answer       string
	ExtraContext string

	// Name is the object name this response was read from (not serialized).
	Name string
}

// MalformedEntryError reports an object that could not be structurally
// parsed. Callers skip the object and leave it in place.
type MalformedEntryError struct {
	Name   string
	Reason string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("mailbox: malformed entry %s: %s", e.Name, e.Reason)
}

// StatusConflictError reports a failed compare-and-set on a question's
// status: the stored status no longer matched the expected one.
type StatusConflictError struct {
	ID   string
	Want Status
	Got  Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("mailbox: status conflict on %s: want %s, got %s", e.ID, e.Want, e.Got)
}
