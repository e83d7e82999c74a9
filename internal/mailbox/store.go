// Package mailbox implements the shared durable surface between the asker
// and the human operator: a directory of question and response objects with
// rename-to-publish atomicity, so a reader never observes a partially
// written object.
package mailbox

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no object exists under the given id.
	ErrNotFound = errors.New("mailbox: object not found")
	// ErrExists is returned by Create when the object id is already taken.
	ErrExists = errors.New("mailbox: object already exists")
)

// Object is one raw store entry: the id from the object's name plus its
// payload bytes. Decoding is left to the caller so malformed entries can be
// skipped instead of aborting a listing.
type Object struct {
	ID      string
	Name    string
	Payload []byte
}

// Store is a directory-backed object store with two object families
// (questions and responses). It is designed for a single writer process
// plus out-of-band human writers; all publication goes through a temp file
// and an atomic rename.
type Store struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// New opens (creating if needed) a store rooted at dir.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create mailbox dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger.With("component", "mailbox"),
	}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

func objectName(kind Kind, id string) string {
	return fmt.Sprintf("%s-%s.md", kind, id)
}

func (s *Store) objectPath(kind Kind, id string) string {
	return filepath.Join(s.dir, objectName(kind, id))
}

// Put publishes payload under (kind, id), overwriting any previous object.
// The payload is written completely to a temporary file, synced, and then
// renamed into place.
func (s *Store) Put(kind Kind, id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publish(kind, id, payload)
}

// Create publishes payload under (kind, id) only if the id is not already
// taken. Returns ErrExists otherwise.
func (s *Store) Create(kind Kind, id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.objectPath(kind, id)); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, objectName(kind, id))
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat object: %w", err)
	}
	return s.publish(kind, id, payload)
}

// publish writes payload to a temp file in the store directory and renames
// it to its final name. Callers hold s.mu.
func (s *Store) publish(kind Kind, id string, payload []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp object: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp object: %w", err)
	}

	final := s.objectPath(kind, id)
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish object: %w", err)
	}

	s.logger.Debug("object published", "kind", string(kind), "id", id, "bytes", len(payload))
	return nil
}

// Get reads the raw payload of a single object.
func (s *Store) Get(kind Kind, id string) ([]byte, error) {
	data, err := os.ReadFile(s.objectPath(kind, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objectName(kind, id))
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// List re-reads the directory and returns every object of the given kind,
// sorted by object name. Nothing is cached between calls. Objects that
// disappear between the directory read and the file read are skipped (a
// concurrent remove, not an error).
func (s *Store) List(kind Kind) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read mailbox dir: %w", err)
	}

	prefix := string(kind) + "-"
	var objects []Object
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read object %s: %w", name, err)
		}
		objects = append(objects, Object{
			ID:      strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".md"),
			Name:    name,
			Payload: data,
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// Remove deletes an object. Removing an object that does not exist returns
// ErrNotFound.
func (s *Store) Remove(kind Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.objectPath(kind, id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, objectName(kind, id))
		}
		return fmt.Errorf("remove object: %w", err)
	}
	s.logger.Debug("object removed", "kind", string(kind), "id", id)
	return nil
}

// Exists reports whether an object is present under (kind, id).
func (s *Store) Exists(kind Kind, id string) bool {
	_, err := os.Stat(s.objectPath(kind, id))
	return err == nil
}

// UniqueID derives an identifier from t at second resolution and, when that
// id is already taken by an object of kind, appends a monotonically
// increasing disambiguator until a free one is found.
func (s *Store) UniqueID(kind Kind, t time.Time) string {
	base := t.Format(IDLayout)
	id := base
	for n := 2; s.Exists(kind, id); n++ {
		id = fmt.Sprintf("%s.%d", base, n)
	}
	return id
}

// PutQuestion encodes and publishes a question under its own id.
func (s *Store) PutQuestion(q *Question) error {
	payload, err := EncodeQuestion(q)
	if err != nil {
		return fmt.Errorf("encode question %s: %w", q.ID, err)
	}
	return s.Put(KindQuestion, q.ID, payload)
}

// CreateQuestion encodes and publishes a question, failing with ErrExists
// if its id is already taken.
func (s *Store) CreateQuestion(q *Question) error {
	payload, err := EncodeQuestion(q)
	if err != nil {
		return fmt.Errorf("encode question %s: %w", q.ID, err)
	}
	return s.Create(KindQuestion, q.ID, payload)
}

// Question reads and decodes a single question by id.
func (s *Store) Question(id string) (*Question, error) {
	data, err := s.Get(KindQuestion, id)
	if err != nil {
		return nil, err
	}
	return DecodeQuestion(objectName(KindQuestion, id), data)
}

// Questions lists every decodable question. Malformed objects are returned
// separately so the caller can log them; they stay in the store untouched.
func (s *Store) Questions() ([]*Question, []*MalformedEntryError, error) {
	objects, err := s.List(KindQuestion)
	if err != nil {
		return nil, nil, err
	}

	var questions []*Question
	var malformed []*MalformedEntryError
	for _, obj := range objects {
		q, err := DecodeQuestion(obj.Name, obj.Payload)
		if err != nil {
			var me *MalformedEntryError
			if errors.As(err, &me) {
				malformed = append(malformed, me)
				continue
			}
			return nil, nil, err
		}
		questions = append(questions, q)
	}
	return questions, malformed, nil
}

// PutResponse encodes and publishes a response under the given object stamp
// (the stamp names the file; correlation uses the payload id).
func (s *Store) PutResponse(stamp string, r *Response) error {
	payload, err := EncodeResponse(r)
	if err != nil {
		return fmt.Errorf("encode response %s: %w", r.ID, err)
	}
	return s.Put(KindResponse, stamp, payload)
}

// Responses lists every decodable response, with malformed objects returned
// separately.
func (s *Store) Responses() ([]*Response, []*MalformedEntryError, error) {
	objects, err := s.List(KindResponse)
	if err != nil {
		return nil, nil, err
	}

	var responses []*Response
	var malformed []*MalformedEntryError
	for _, obj := range objects {
		r, err := DecodeResponse(obj.Name, obj.Payload)
		if err != nil {
			var me *MalformedEntryError
			if errors.As(err, &me) {
				malformed = append(malformed, me)
				continue
			}
			return nil, nil, err
		}
		responses = append(responses, r)
	}
	return responses, malformed, nil
}

// Advance performs a compare-and-set status transition on a question: the
// stored status must equal from, and to must be from's immediate successor.
// The rewritten object goes through the same temp-and-rename publish path.
func (s *Store) Advance(id string, from, to Status) error {
	if from.Next() != to {
		return fmt.Errorf("mailbox: invalid transition %s -> %s for %s", from, to, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.objectPath(KindQuestion, id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, objectName(KindQuestion, id))
		}
		return fmt.Errorf("read object: %w", err)
	}

	q, err := DecodeQuestion(objectName(KindQuestion, id), data)
	if err != nil {
		return err
	}
	if q.Status != from {
		return &StatusConflictError{ID: id, Want: from, Got: q.Status}
	}

	q.Status = to
	payload, err := EncodeQuestion(q)
	if err != nil {
		return fmt.Errorf("encode question %s: %w", id, err)
	}
	if err := s.publish(KindQuestion, id, payload); err != nil {
		return err
	}

	s.logger.Debug("status advanced", "id", id, "from", string(from), "to", string(to))
	return nil
}
