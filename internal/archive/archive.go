// Package archive is the optional cold store for swept question/answer
// pairs: a local SQLite database the sweeper inserts into before removing
// a pair from the mailbox. Rows carry a BLAKE2b checksum of the canonical
// pair JSON so later audits can detect tampering or corruption.
package archive

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no archived pair exists under an id.
var ErrNotFound = errors.New("archive: pair not found")

// Pair is one archived question/answer pair.
type Pair struct {
	ID           string    `json:"id"`
	AskedAt      time.Time `json:"asked_at"`
	AnsweredAt   time.Time `json:"answered_at"`
	Asker        string    `json:"asker"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	ExtraContext string    `json:"extra_context,omitempty"`
	SweptAt      time.Time `json:"-"`
	Checksum     string    `json:"-"`
}

// Checksum computes the BLAKE2b-256 digest of the pair's canonical JSON.
// Timestamps are normalized to UTC first, matching how rows are stored,
// so Verify recomputes the same digest after a round trip.
func Checksum(p Pair) string {
	p.AskedAt = p.AskedAt.UTC()
	p.AnsweredAt = p.AnsweredAt.UTC()
	data, _ := json.Marshal(p)
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store is the SQLite-backed cold archive.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	mu     sync.Mutex
}

// Open opens (creating if needed) the archive database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive db: %w", err)
	}

	// WAL mode for better concurrency with readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("wal mode: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With("component", "archive"),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS archived_pairs (
			id            TEXT PRIMARY KEY,
			asked_at      TEXT NOT NULL,
			answered_at   TEXT NOT NULL,
			asker         TEXT NOT NULL,
			question      TEXT NOT NULL,
			answer        TEXT NOT NULL,
			extra_context TEXT NOT NULL DEFAULT '',
			checksum      TEXT NOT NULL,
			swept_at      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pairs_swept ON archived_pairs(swept_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Insert stores one swept pair. Re-inserting an id replaces the row, so a
// sweep retried after a partial failure stays idempotent.
func (s *Store) Insert(ctx context.Context, p Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.SweptAt.IsZero() {
		p.SweptAt = time.Now()
	}
	p.Checksum = Checksum(p)

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO archived_pairs
		 (id, asked_at, answered_at, asker, question, answer, extra_context, checksum, swept_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.AskedAt.UTC().Format(time.RFC3339),
		p.AnsweredAt.UTC().Format(time.RFC3339),
		p.Asker, p.Question, p.Answer, p.ExtraContext, p.Checksum,
		p.SweptAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert pair %s: %w", p.ID, err)
	}

	s.logger.Debug("pair archived", "id", p.ID)
	return nil
}

// Get retrieves one archived pair by question id.
func (s *Store) Get(ctx context.Context, id string) (*Pair, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, asked_at, answered_at, asker, question, answer, extra_context, checksum, swept_at
		 FROM archived_pairs WHERE id = ?`, id)

	p, err := scanPair(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return p, nil
}

// Recent returns up to n pairs, most recently swept first.
func (s *Store) Recent(ctx context.Context, n int) ([]Pair, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, asked_at, answered_at, asker, question, answer, extra_context, checksum, swept_at
		 FROM archived_pairs ORDER BY swept_at DESC, id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var pairs []Pair
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, *p)
	}
	return pairs, rows.Err()
}

// Count returns the number of archived pairs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM archived_pairs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pairs: %w", err)
	}
	return n, nil
}

// Verify recomputes the checksum of a stored pair and reports whether it
// matches the recorded one.
func (s *Store) Verify(ctx context.Context, id string) (bool, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return Checksum(*p) == p.Checksum, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPair(row rowScanner) (*Pair, error) {
	var p Pair
	var askedAt, answeredAt, sweptAt string
	if err := row.Scan(&p.ID, &askedAt, &answeredAt, &p.Asker, &p.Question,
		&p.Answer, &p.ExtraContext, &p.Checksum, &sweptAt); err != nil {
		return nil, err
	}

	var err error
	if p.AskedAt, err = time.Parse(time.RFC3339, askedAt); err != nil {
		return nil, fmt.Errorf("parse asked_at for %s: %w", p.ID, err)
	}
	if p.AnsweredAt, err = time.Parse(time.RFC3339, answeredAt); err != nil {
		return nil, fmt.Errorf("parse answered_at for %s: %w", p.ID, err)
	}
	if p.SweptAt, err = time.Parse(time.RFC3339, sweptAt); err != nil {
		return nil, fmt.Errorf("parse swept_at for %s: %w", p.ID, err)
	}
	return &p, nil
}
