package client

import (
	"os"
	"path/filepath"
	"testing"
)

func newFileStore(t *testing.T) *FileQueueStore {
	t.Helper()
	return NewFileQueueStore(filepath.Join(t.TempDir(), "queue.json"))
}

func TestFileQueueStore_RoundTrip(t *testing.T) {
	s := newFileStore(t)

	items, err := s.Load()
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("fresh store expected empty queue, got %d", len(items))
	}

	in := []QueuedCompletion{
		{UserID: "u1", LessonID: "l1", PhaseNumber: 2, TimeSpentSeconds: 90, IdempotencyKey: "k1", RetryCount: 1},
		{UserID: "u1", LessonID: "l2", PhaseNumber: 1, TimeSpentSeconds: 10, IdempotencyKey: "k2"},
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 items, got %d", len(out))
	}
	if out[0].IdempotencyKey != "k1" || out[0].RetryCount != 1 || out[1].LessonID != "l2" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestFileQueueStore_LastUser(t *testing.T) {
	s := newFileStore(t)

	u, err := s.LastUser()
	if err != nil || u != "" {
		t.Fatalf("fresh store LastUser = %q, %v", u, err)
	}
	if err := s.SetLastUser("alice"); err != nil {
		t.Fatalf("SetLastUser: %v", err)
	}
	u, err = s.LastUser()
	if err != nil || u != "alice" {
		t.Fatalf("LastUser = %q, %v", u, err)
	}

	// Changing the owner must not lose the queue and vice versa.
	if err := s.Save([]QueuedCompletion{{UserID: "alice", LessonID: "l1", PhaseNumber: 1, IdempotencyKey: "k"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.SetLastUser("alice2"); err != nil {
		t.Fatalf("SetLastUser again: %v", err)
	}
	items, _ := s.Load()
	if len(items) != 1 {
		t.Fatalf("queue lost on SetLastUser: %d items", len(items))
	}
}

func TestFileQueueStore_CorruptFileReadsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	s := NewFileQueueStore(path)

	items, err := s.Load()
	if err != nil {
		t.Fatalf("Load corrupt: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("corrupt file should read as empty queue, got %d", len(items))
	}
}

func TestFileQueueStore_UnownedItemsDiscardQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	raw := `{"completion-queue":[{"user_id":"u1","lesson_id":"l1","phase_number":1,"idempotency_key":"k1"},{"lesson_id":"legacy","phase_number":2,"idempotency_key":"k2"}],"completion-queue-user":"u1"}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	s := NewFileQueueStore(path)

	items, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("queue with unowned items must be discarded wholesale, got %d", len(items))
	}
	// The recorded owner survives the sweep.
	if u, _ := s.LastUser(); u != "u1" {
		t.Fatalf("LastUser = %q", u)
	}
}

func TestMemoryQueueStore_IsolatedCopies(t *testing.T) {
	s := NewMemoryQueueStore()
	in := []QueuedCompletion{{UserID: "u1", LessonID: "l1", PhaseNumber: 1, IdempotencyKey: "k"}}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	in[0].RetryCount = 99 // mutating caller slice must not affect the store

	out, _ := s.Load()
	if out[0].RetryCount != 0 {
		t.Fatalf("store shares memory with caller slice")
	}
	out[0].RetryCount = 42
	again, _ := s.Load()
	if again[0].RetryCount != 0 {
		t.Fatalf("Load returns aliased slice")
	}
}
