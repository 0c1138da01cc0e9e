package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// MaxRetryCount is the redrive cap. Items that reach it are dropped from the
// queue without another network attempt.
const MaxRetryCount = 3

// QueuedCompletion is a completion request the server has not yet confirmed.
// Every item belongs to exactly one user; items without one are treated as
// corrupt and cause the whole queue to be discarded, because ownership cannot
// be safely inferred on a shared device.
type QueuedCompletion struct {
	UserID           string `json:"user_id"`
	LessonID         string `json:"lesson_id"`
	PhaseNumber      int    `json:"phase_number"`
	TimeSpentSeconds int    `json:"time_spent_seconds"`
	IdempotencyKey   string `json:"idempotency_key"`
	CompletedAt      string `json:"completed_at"` // client clock, RFC 3339
	RetryCount       int    `json:"retry_count"`
}

// QueueStore is durable local storage for the completion queue and the
// last-known authenticated user.
type QueueStore interface {
	// Load returns the queued items. A corrupt store reads as empty.
	Load() ([]QueuedCompletion, error)

	// Save replaces the queued items.
	Save(items []QueuedCompletion) error

	// LastUser returns the identity the queue currently belongs to,
	// empty when none was recorded.
	LastUser() (string, error)

	// SetLastUser records the identity the queue belongs to.
	SetLastUser(userID string) error
}

// queueFile is the on-disk JSON shape of FileQueueStore.
type queueFile struct {
	Queue []QueuedCompletion `json:"completion-queue"`
	User  string             `json:"completion-queue-user"`
}

// FileQueueStore keeps the queue in a single JSON file. On read, any
// unparseable content or items missing a user identity discard the whole
// queue rather than guess at ownership.
type FileQueueStore struct {
	path string
	mu   sync.Mutex
}

// NewFileQueueStore returns a store backed by the JSON file at path. The file
// is created on first Save.
func NewFileQueueStore(path string) *FileQueueStore {
	return &FileQueueStore{path: path}
}

func (s *FileQueueStore) read() queueFile {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return queueFile{}
	}
	var f queueFile
	if err := json.Unmarshal(raw, &f); err != nil {
		log.Warn().Str("path", s.path).Err(err).Msg("completion queue file corrupt, discarding")
		return queueFile{}
	}
	for _, it := range f.Queue {
		if it.UserID == "" {
			log.Warn().Str("path", s.path).Msg("completion queue has unowned items, discarding queue")
			f.Queue = nil
			break
		}
	}
	return f
}

func (s *FileQueueStore) write(f queueFile) error {
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load implements QueueStore.
func (s *FileQueueStore) Load() ([]QueuedCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().Queue, nil
}

// Save implements QueueStore.
func (s *FileQueueStore) Save(items []QueuedCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.read()
	f.Queue = items
	return s.write(f)
}

// LastUser implements QueueStore.
func (s *FileQueueStore) LastUser() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().User, nil
}

// SetLastUser implements QueueStore.
func (s *FileQueueStore) SetLastUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.read()
	f.User = userID
	return s.write(f)
}

// MemoryQueueStore is an in-process QueueStore for tests.
type MemoryQueueStore struct {
	mu    sync.Mutex
	items []QueuedCompletion
	user  string
}

// NewMemoryQueueStore returns an empty in-memory store.
func NewMemoryQueueStore() *MemoryQueueStore { return &MemoryQueueStore{} }

// Load implements QueueStore.
func (s *MemoryQueueStore) Load() ([]QueuedCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]QueuedCompletion, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Save implements QueueStore.
func (s *MemoryQueueStore) Save(items []QueuedCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]QueuedCompletion, len(items))
	copy(s.items, items)
	return nil
}

// LastUser implements QueueStore.
func (s *MemoryQueueStore) LastUser() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, nil
}

// SetLastUser implements QueueStore.
func (s *MemoryQueueStore) SetLastUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = userID
	return nil
}
