package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/oshokin/equipment-monitor/internal/config"
	domain "github.com/oshokin/equipment-monitor/internal/domain/equipment"
	"github.com/oshokin/equipment-monitor/internal/logger"
)

// Store is the durable FIFO of events pending submission to the API.
type Store interface {
	Load(ctx context.Context) error
	Append(ctx context.Context, event domain.Event) error
	Snapshot() []domain.Event
	CommitCleared(ctx context.Context, count int) error
	Flush(ctx context.Context) error
	Len() int
}

// schemaVersion tags the on-disk document for forward migration.
const schemaVersion = 1

// document is the on-disk envelope of the queue blob.
type document struct {
	// SchemaVersion tags the layout of the blob.
	SchemaVersion int `json:"schema_version"`
	// Events is the pending event sequence in arrival order.
	Events []domain.Event `json:"events"`
}

// errNegativeCount is returned when CommitCleared receives a negative count.
var errNegativeCount = errors.New("commit count must not be negative")

// FileStore keeps the queue in memory and mirrors it to a JSON file on disk.
// The in-memory sequence is the source of truth: a failed persist keeps the
// events and the next successful write restores a consistent blob.
type FileStore struct {
	// path is the filesystem location of the JSON blob.
	path string
	// events is the pending sequence in arrival order.
	events []domain.Event
	// mu serializes appends, snapshots and commits.
	mu sync.Mutex
}

// NewFileStore creates a queue store backed by the JSON file at the provided path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: filepath.Clean(path),
	}
}

// Load restores the persisted queue at startup.
// A missing or corrupt file yields an empty queue, never an error:
// losing a stale blob is preferable to refusing to start.
func (s *FileStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Queue file unreadable, starting empty", "path", s.path, "error", err)
		}

		s.events = nil

		return nil
	}

	var doc document
	if err = json.Unmarshal(contents, &doc); err != nil {
		logger.WarnKV(ctx, "Queue file corrupt, starting empty", "path", s.path, "error", err)

		s.events = nil

		return nil
	}

	s.events = doc.Events

	logger.InfoKV(ctx, "Queue restored", "pending", len(s.events))

	return nil
}

// Append adds the event to the tail and persists the full sequence.
// On persistence failure the event stays in memory and the error is returned;
// a later append or flush re-persists a consistent blob.
func (s *FileStore) Append(ctx context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	if err := s.persist(); err != nil {
		logger.ErrorKV(ctx, "Queue persist failed, event kept in memory", "error", err)

		return err
	}

	return nil
}

// Snapshot returns a copy of the current queue without clearing it,
// so a failed submit leaves the queue untouched.
func (s *FileStore) Snapshot() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]domain.Event, len(s.events))
	copy(snapshot, s.events)

	return snapshot
}

// CommitCleared removes exactly the first count events and persists the rest.
// Events appended after the snapshot was taken survive the commit.
func (s *FileStore) CommitCleared(ctx context.Context, count int) error {
	if count < 0 {
		return errNegativeCount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if count > len(s.events) {
		count = len(s.events)
	}

	remaining := make([]domain.Event, len(s.events)-count)
	copy(remaining, s.events[count:])
	s.events = remaining

	if err := s.persist(); err != nil {
		logger.ErrorKV(ctx, "Queue persist failed after commit", "error", err)

		return err
	}

	return nil
}

// Flush persists the current in-memory sequence.
// Called once during shutdown so nothing pending is lost across restarts.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.persist()
}

// Len returns the number of pending events.
func (s *FileStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.events)
}

// persist writes the full sequence to disk. Callers must hold mu.
func (s *FileStore) persist() error {
	doc := document{
		SchemaVersion: schemaVersion,
		Events:        s.events,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}

	if err = os.WriteFile(s.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write queue file: %w", err)
	}

	return nil
}
