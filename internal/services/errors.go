// Package services defines the business logic for lessons, phase access,
// progress recording, and feedback. This file centralizes common service-level
// error values so that they can be consistently returned by service methods
// and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Lesson- and phase-related errors.
var (
	// ErrLessonNotFound indicates that the requested lesson does not exist.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrPhaseNotFound indicates that the requested phase does not exist
	// within the lesson.
	ErrPhaseNotFound = errors.New("phase not found")

	// ErrNoPhases is returned when a lesson has no phases at all. A lesson
	// without phases is a content configuration error, not a student error.
	ErrNoPhases = errors.New("lesson has no phases")

	// ErrPhaseLocked is returned when a student tries to act on a phase
	// whose previous phase has not been completed yet.
	ErrPhaseLocked = errors.New("previous phase must be completed first")
)

// Completion-related errors.
var (
	// ErrInvalidKey is returned when a completion request carries a
	// malformed idempotency key.
	ErrInvalidKey = errors.New("idempotency key must be a valid UUID")

	// ErrKeyConflict is returned when an idempotency key already recorded
	// for one phase is replayed against a different phase. The client is
	// reusing a key it should have rotated.
	ErrKeyConflict = errors.New("idempotency key already used for another phase")

	// ErrInvalidTimeSpent is returned when the reported time on a phase is
	// negative or exceeds MaxTimeSpentSeconds.
	ErrInvalidTimeSpent = errors.New("time spent must be between 0 and 86400 seconds")

	// ErrInvalidStatus is returned when a progress update names a status
	// outside the allowed set.
	ErrInvalidStatus = errors.New("invalid progress status")
)

// Feedback-related errors.
var (
	// ErrInvalidFeedback is returned when a feedback value is outside the
	// allowed set (currently -1 or 1).
	ErrInvalidFeedback = errors.New("feedback value must be -1 or 1")

	// ErrDuplicateFeedback is returned when a user attempts to leave feedback
	// on a phase that they have already rated.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)
