package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrCompletionInFlight is returned by CompletePhase when a previous call on
// the same coordinator has not finished yet. The duplicate call is dropped;
// OnError is not invoked.
var ErrCompletionInFlight = errors.New("completion already in flight")

// Coordinator drives phase completion for one phase view: it tracks the time
// the student spends on the phase, submits the completion with an idempotency
// key, queues transient failures for redrive, and drains the queue on
// construction.
//
// The idempotency key is session-scoped: minted lazily on the first attempt,
// reused across retries of the same logical completion, and reset only when
// the server confirms success. Permanent failures drop the key because the
// same payload will keep failing.
type Coordinator struct {
	store  QueueStore
	sender Sender

	userID      string
	lessonID    string
	phaseNumber int

	// OnError is invoked on every failed completion attempt, after queue
	// handling. Optional.
	OnError func(error)

	now       func() time.Time
	startedAt time.Time

	mu         sync.Mutex
	completing bool
	key        string
}

// NewCoordinator builds a coordinator for one user's view of one phase.
//
// Construction performs the cross-user safety sweep: when the store's
// last-known user differs from userID the entire queue is cleared, so items
// enqueued under one identity are never sent under another on a shared
// device. Any items that survive the sweep are drained immediately.
func NewCoordinator(ctx context.Context, store QueueStore, sender Sender, userID, lessonID string, phaseNumber int) (*Coordinator, error) {
	c := &Coordinator{
		store:       store,
		sender:      sender,
		userID:      userID,
		lessonID:    lessonID,
		phaseNumber: phaseNumber,
		now:         time.Now,
	}
	c.startedAt = c.now()

	last, err := store.LastUser()
	if err != nil {
		return nil, fmt.Errorf("read queue owner: %w", err)
	}
	if last != "" && last != userID {
		log.Info().Msg("authenticated user changed, clearing completion queue")
		if err := store.Save(nil); err != nil {
			return nil, fmt.Errorf("clear completion queue: %w", err)
		}
	}
	if err := store.SetLastUser(userID); err != nil {
		return nil, fmt.Errorf("record queue owner: %w", err)
	}

	if err := c.Drain(ctx); err != nil {
		// Redrive problems must not block the phase view.
		log.Warn().Err(err).Msg("completion queue drain failed")
	}
	return c, nil
}

// CompletePhase submits the completion for the coordinator's phase. It never
// panics out of the call; failures are returned and passed to OnError. A call
// made while a previous one is still in flight does nothing and returns
// ErrCompletionInFlight.
func (c *Coordinator) CompletePhase(ctx context.Context) (res *CompletionResponse, err error) {
	c.mu.Lock()
	if c.completing {
		c.mu.Unlock()
		log.Warn().
			Str("lesson_id", c.lessonID).
			Int("phase_number", c.phaseNumber).
			Msg("completion already in flight, ignoring")
		return nil, ErrCompletionInFlight
	}
	c.completing = true
	if c.key == "" {
		c.key = uuid.NewString()
	}
	key := c.key
	c.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("complete phase: %v", r)
			c.reportError(err)
		}
		c.mu.Lock()
		c.completing = false
		c.mu.Unlock()
	}()

	spent := int(c.now().Sub(c.startedAt).Seconds())
	req := CompletionRequest{
		LessonID:         c.lessonID,
		PhaseNumber:      c.phaseNumber,
		TimeSpentSeconds: spent,
		IdempotencyKey:   key,
	}

	res, err = c.sender.Send(ctx, c.userID, req)
	if err == nil {
		c.mu.Lock()
		c.key = ""
		c.mu.Unlock()
		return res, nil
	}

	kind := Classify(err)
	if kind.Retryable() {
		// Keep the key so the redrive replays the same logical completion.
		if qErr := c.enqueue(req); qErr != nil {
			log.Error().Err(qErr).Msg("failed to queue completion for redrive")
		}
	} else {
		c.mu.Lock()
		c.key = ""
		c.mu.Unlock()
	}

	log.Warn().
		Str("lesson_id", c.lessonID).
		Int("phase_number", c.phaseNumber).
		Str("kind", kind.String()).
		Err(err).
		Msg("phase completion failed")
	c.reportError(err)
	return nil, err
}

func (c *Coordinator) enqueue(req CompletionRequest) error {
	items, err := c.store.Load()
	if err != nil {
		return err
	}
	items = append(items, QueuedCompletion{
		UserID:           c.userID,
		LessonID:         req.LessonID,
		PhaseNumber:      req.PhaseNumber,
		TimeSpentSeconds: req.TimeSpentSeconds,
		IdempotencyKey:   req.IdempotencyKey,
		CompletedAt:      c.now().UTC().Format(time.RFC3339),
		RetryCount:       0,
	})
	return c.store.Save(items)
}

func (c *Coordinator) reportError(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Drain resends queued completions belonging to the coordinator's user.
//
// Items owned by another user are removed without a network call, as are
// items that already reached MaxRetryCount. Remaining items are resent with
// their original idempotency key: success and permanent failure both remove
// the item, a transient failure increments its retry count in place.
func (c *Coordinator) Drain(ctx context.Context) error {
	items, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("load completion queue: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	kept := items[:0]
	for _, it := range items {
		if it.UserID != c.userID {
			log.Warn().Msg("dropping queued completion owned by another user")
			continue
		}
		if it.RetryCount >= MaxRetryCount {
			log.Warn().
				Str("lesson_id", it.LessonID).
				Int("phase_number", it.PhaseNumber).
				Msg("queued completion exceeded retry cap, dropping")
			continue
		}

		_, sendErr := c.sender.Send(ctx, c.userID, CompletionRequest{
			LessonID:         it.LessonID,
			PhaseNumber:      it.PhaseNumber,
			TimeSpentSeconds: it.TimeSpentSeconds,
			IdempotencyKey:   it.IdempotencyKey,
		})
		if sendErr == nil {
			continue
		}
		if Classify(sendErr).Retryable() {
			it.RetryCount++
			kept = append(kept, it)
			continue
		}
		log.Warn().
			Str("lesson_id", it.LessonID).
			Int("phase_number", it.PhaseNumber).
			Err(sendErr).
			Msg("queued completion rejected permanently, dropping")
	}

	return c.store.Save(kept)
}
