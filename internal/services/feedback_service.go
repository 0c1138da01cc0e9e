// Package services – FeedbackService
//
// This file implements the FeedbackService, which governs how students leave
// feedback (-1 or +1) on lesson phases. It enforces business rules (phase
// existence, value range, uniqueness) and persists feedback atomically in the
// database. Service-level errors (e.g. ErrInvalidFeedback, ErrPhaseNotFound,
// ErrDuplicateFeedback) are returned for predictable cases so handlers can
// map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
	"github.com/ledgerlab/go-lessons-backend/internal/repo"
)

// maxFeedbackCommentRunes caps the optional free-text comment length.
const maxFeedbackCommentRunes = 1000

// FeedbackService implements the use-cases around phase feedback.
// It validates the operation (phase existence, value, uniqueness) and persists
// the feedback using the provided GORM handle. The service is context-aware and
// safe to use inside transactions (it will open its own transaction per call).
type FeedbackService struct {
	// DB is the database handle used for all feedback operations.
	// The handle may be a plain *gorm.DB or a transaction-bound handle.
	DB *gorm.DB
}

// Leave records a feedback value for phaseID on behalf of userID.
//
// Semantics and validation:
//   - value must be exactly -1 (negative) or 1 (positive); otherwise ErrInvalidFeedback.
//   - phaseID must exist; otherwise ErrPhaseNotFound.
//   - comment is optional; it is trimmed and clipped to a sane length, and a
//     blank comment is stored as NULL.
//   - A user may leave at most one feedback per phase; attempting to do so
//     again yields ErrDuplicateFeedback.
//
// Concurrency & atomicity:
//   - The operation runs inside a transaction to ensure the existence check
//     and the insert are atomic.
func (s *FeedbackService) Leave(ctx context.Context, userID, phaseID string, value int, comment string) error {
	if value != -1 && value != 1 {
		return ErrInvalidFeedback
	}

	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxFeedbackCommentRunes {
		comment = string([]rune(comment)[:maxFeedbackCommentRunes])
	}
	var commentPtr *string
	if comment != "" {
		commentPtr = &comment
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) Verify the phase exists.
		if _, err := repo.GetPhase(ctx, tx, phaseID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPhaseNotFound
			}
			return err
		}

		// 2) Insert feedback with (phase_id, user_id) uniqueness semantics.
		fb := &domain.PhaseFeedback{
			ID:        uuid.NewString(),
			PhaseID:   phaseID,
			UserID:    userID,
			Value:     value,
			Comment:   commentPtr,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(fb).Error; err != nil {
			// Map duplicate key to a stable service error.
			if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicate(err) {
				return ErrDuplicateFeedback
			}
			return err
		}
		return nil
	})
}

// ListForPhase returns all feedback rows for a phase, newest first. The
// handler layer restricts this to teacher and admin roles.
func (s *FeedbackService) ListForPhase(ctx context.Context, phaseID string) ([]domain.PhaseFeedback, error) {
	if _, err := repo.GetPhase(ctx, s.DB, phaseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, err
	}
	return repo.ListPhaseFeedback(ctx, s.DB, phaseID)
}

// isDuplicate attempts to detect unique-constraint violations across drivers
// that may not map to gorm.ErrDuplicatedKey.
func isDuplicate(err error) bool {
	// SQLite typically: "UNIQUE constraint failed"
	// Postgres typically: "duplicate key value violates unique constraint"
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}
