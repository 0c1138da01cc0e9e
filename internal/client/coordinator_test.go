package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

// fakeSender scripts per-call outcomes and records every request it sees.
type fakeSender struct {
	mu    sync.Mutex
	calls []CompletionRequest
	users []string
	// errs[i] is returned for call i; nil means success. Calls beyond the
	// script succeed.
	errs []error
	// block, when non-nil, is closed by the test to release an in-flight
	// Send. Used for the re-entrancy test.
	block chan struct{}
}

func (f *fakeSender) Send(_ context.Context, userID string, req CompletionRequest) (*CompletionResponse, error) {
	f.mu.Lock()
	n := len(f.calls)
	f.calls = append(f.calls, req)
	f.users = append(f.users, userID)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	if n < len(f.errs) && f.errs[n] != nil {
		return nil, f.errs[n]
	}
	now := time.Now().UTC()
	return &CompletionResponse{
		PhaseNumber: req.PhaseNumber,
		CompletedAt: &now,
		Message:     "ok",
	}, nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func transientErr() error {
	return &APIError{Status: http.StatusServiceUnavailable, Message: "down"}
}

func notFoundErr() error {
	return &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "phase not found"}
}

func newCoordinator(t *testing.T, store QueueStore, sender Sender, userID string) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(context.Background(), store, sender, userID, "lesson-1", 2)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	return c
}

func TestCoordinator_Success_ResetsKey(t *testing.T) {
	store := NewMemoryQueueStore()
	sender := &fakeSender{}
	c := newCoordinator(t, store, sender, "u1")

	res, err := c.CompletePhase(context.Background())
	if err != nil || res == nil {
		t.Fatalf("CompletePhase: res=%v err=%v", res, err)
	}
	firstKey := sender.calls[0].IdempotencyKey
	if firstKey == "" {
		t.Fatalf("expected a minted idempotency key")
	}

	// A new logical completion gets a fresh key.
	if _, err := c.CompletePhase(context.Background()); err != nil {
		t.Fatalf("second CompletePhase: %v", err)
	}
	if sender.calls[1].IdempotencyKey == firstKey {
		t.Fatalf("key must reset after success")
	}

	if items, _ := store.Load(); len(items) != 0 {
		t.Fatalf("successful completion must not be queued")
	}
}

func TestCoordinator_TransientFailure_QueuesAndKeepsKey(t *testing.T) {
	store := NewMemoryQueueStore()
	sender := &fakeSender{errs: []error{transientErr(), transientErr()}}

	var reported error
	c := newCoordinator(t, store, sender, "u1")
	c.OnError = func(err error) { reported = err }

	if _, err := c.CompletePhase(context.Background()); err == nil {
		t.Fatalf("expected transient failure")
	}
	if reported == nil {
		t.Fatalf("OnError not invoked")
	}

	items, _ := store.Load()
	if len(items) != 1 {
		t.Fatalf("expected 1 queued item, got %d", len(items))
	}
	if items[0].RetryCount != 0 || items[0].UserID != "u1" {
		t.Fatalf("queued item malformed: %+v", items[0])
	}

	// The retry reuses the same key across attempts.
	if _, err := c.CompletePhase(context.Background()); err == nil {
		t.Fatalf("expected second transient failure")
	}
	if sender.calls[0].IdempotencyKey != sender.calls[1].IdempotencyKey {
		t.Fatalf("idempotency key must survive transient failures")
	}
}

func TestCoordinator_PermanentFailure_DropsKeyWithoutQueueing(t *testing.T) {
	store := NewMemoryQueueStore()
	sender := &fakeSender{errs: []error{notFoundErr(), nil}}
	c := newCoordinator(t, store, sender, "u1")

	if _, err := c.CompletePhase(context.Background()); err == nil {
		t.Fatalf("expected permanent failure")
	}
	if items, _ := store.Load(); len(items) != 0 {
		t.Fatalf("permanent failure must not queue")
	}

	// Key was discarded, so the next attempt mints a new one.
	if _, err := c.CompletePhase(context.Background()); err != nil {
		t.Fatalf("retry after permanent failure: %v", err)
	}
	if sender.calls[0].IdempotencyKey == sender.calls[1].IdempotencyKey {
		t.Fatalf("key must be dropped on permanent failure")
	}
}

func TestCoordinator_ReentrantCallIsNoOp(t *testing.T) {
	store := NewMemoryQueueStore()
	sender := &fakeSender{block: make(chan struct{})}
	c := newCoordinator(t, store, sender, "u1")
	var reported []error
	c.OnError = func(err error) { reported = append(reported, err) }

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.CompletePhase(context.Background())
	}()

	// Wait until the first call is inside Send, then call again.
	for sender.callCount() == 0 {
		time.Sleep(time.Millisecond)
	}
	res, err := c.CompletePhase(context.Background())
	if res != nil || !errors.Is(err, ErrCompletionInFlight) {
		t.Fatalf("re-entrant call should report ErrCompletionInFlight, got res=%v err=%v", res, err)
	}
	if len(reported) != 0 {
		t.Fatalf("dropped duplicate must not reach OnError, got %v", reported)
	}

	close(sender.block)
	<-done
	if sender.callCount() != 1 {
		t.Fatalf("second call must not reach the sender, calls=%d", sender.callCount())
	}
}

func TestCoordinator_UserSwitchClearsQueue(t *testing.T) {
	store := NewMemoryQueueStore()
	_ = store.SetLastUser("alice")
	_ = store.Save([]QueuedCompletion{
		{UserID: "alice", LessonID: "l1", PhaseNumber: 1, IdempotencyKey: "k-alice"},
	})

	sender := &fakeSender{}
	newCoordinator(t, store, sender, "bob")

	if sender.callCount() != 0 {
		t.Fatalf("alice's items must never be sent under bob's session")
	}
	if items, _ := store.Load(); len(items) != 0 {
		t.Fatalf("queue must be cleared on user switch, got %d items", len(items))
	}
	if u, _ := store.LastUser(); u != "bob" {
		t.Fatalf("owner should now be bob, got %q", u)
	}
}

func TestCoordinator_ConstructionDrainsQueue(t *testing.T) {
	store := NewMemoryQueueStore()
	_ = store.SetLastUser("u1")
	_ = store.Save([]QueuedCompletion{
		{UserID: "u1", LessonID: "l1", PhaseNumber: 1, TimeSpentSeconds: 30, IdempotencyKey: "k1"},
	})

	sender := &fakeSender{}
	newCoordinator(t, store, sender, "u1")

	if sender.callCount() != 1 {
		t.Fatalf("expected queued item resent on construction, calls=%d", sender.callCount())
	}
	if sender.calls[0].IdempotencyKey != "k1" {
		t.Fatalf("redrive must reuse the stored key, got %q", sender.calls[0].IdempotencyKey)
	}
	if items, _ := store.Load(); len(items) != 0 {
		t.Fatalf("successful redrive must remove the item")
	}
}

func TestDrain_RetryCapSkipsNetworkCall(t *testing.T) {
	store := NewMemoryQueueStore()
	_ = store.SetLastUser("u1")
	_ = store.Save([]QueuedCompletion{
		{UserID: "u1", LessonID: "l1", PhaseNumber: 1, IdempotencyKey: "spent", RetryCount: MaxRetryCount},
	})

	sender := &fakeSender{}
	newCoordinator(t, store, sender, "u1")

	if sender.callCount() != 0 {
		t.Fatalf("capped item must be dropped without a network call")
	}
	if items, _ := store.Load(); len(items) != 0 {
		t.Fatalf("capped item must be removed")
	}
}

func TestDrain_TransientIncrementsPermanentRemoves(t *testing.T) {
	store := NewMemoryQueueStore()
	_ = store.SetLastUser("u1")
	_ = store.Save([]QueuedCompletion{
		{UserID: "u1", LessonID: "l1", PhaseNumber: 1, IdempotencyKey: "k-503", RetryCount: 1},
		{UserID: "u1", LessonID: "l2", PhaseNumber: 1, IdempotencyKey: "k-404"},
	})

	sender := &fakeSender{errs: []error{transientErr(), notFoundErr()}}
	newCoordinator(t, store, sender, "u1")

	items, _ := store.Load()
	if len(items) != 1 {
		t.Fatalf("expected only the 503 item kept, got %d", len(items))
	}
	if items[0].IdempotencyKey != "k-503" || items[0].RetryCount != 2 {
		t.Fatalf("transient item should stay with retry_count bumped: %+v", items[0])
	}
}

func TestDrain_NetworkErrorCountsAsTransient(t *testing.T) {
	store := NewMemoryQueueStore()
	_ = store.SetLastUser("u1")
	_ = store.Save([]QueuedCompletion{
		{UserID: "u1", LessonID: "l1", PhaseNumber: 1, IdempotencyKey: "k1"},
	})

	sender := &fakeSender{errs: []error{errors.New("connection refused")}}
	newCoordinator(t, store, sender, "u1")

	items, _ := store.Load()
	if len(items) != 1 || items[0].RetryCount != 1 {
		t.Fatalf("status-less failure must stay queued with bumped count: %+v", items)
	}
}
