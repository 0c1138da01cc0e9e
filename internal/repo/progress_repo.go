// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// StudentProgress model, including the single upsert used to record phase
// completions.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (exported as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Concurrency:
//   - UpsertProgress targets the (user_id, phase_id) unique index via an
//     ON CONFLICT clause. Two concurrent completions for the same pair
//     collapse onto a single row at the storage layer; no read-then-write
//     race exists here.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
)

// GetProgress fetches the progress record for (userID, phaseID), or
// ErrNotFound when the student has never touched the phase.
func GetProgress(ctx context.Context, db *gorm.DB, userID, phaseID string) (*domain.StudentProgress, error) {
	var p domain.StudentProgress
	err := db.WithContext(ctx).
		Where("user_id = ? AND phase_id = ?", userID, phaseID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProgressByIdempotencyKey looks up a progress record carrying the given
// idempotency key for this user, across all phases. A hit means the logical
// completion event was already recorded and the request is a replay.
func GetProgressByIdempotencyKey(ctx context.Context, db *gorm.DB, userID, key string) (*domain.StudentProgress, error) {
	var p domain.StudentProgress
	err := db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProgress writes a progress record keyed by (user_id, phase_id).
// If a row already exists for the pair, its mutable fields are overwritten;
// otherwise a new row is inserted. The record's ID is generated when empty.
func UpsertProgress(ctx context.Context, db *gorm.DB, rec *domain.StudentProgress) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = time.Now().UTC()

	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "phase_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"status",
				"started_at",
				"completed_at",
				"time_spent_seconds",
				"idempotency_key",
				"updated_at",
			}),
		}).
		Create(rec).Error
}

// ListLessonProgress returns the student's progress records for every phase of
// a lesson. Phases without a record are simply absent from the result; the
// service layer fills those in as not-started.
func ListLessonProgress(ctx context.Context, db *gorm.DB, userID, lessonID string) ([]domain.StudentProgress, error) {
	var out []domain.StudentProgress
	err := db.WithContext(ctx).
		Where("user_id = ? AND phase_id IN (?)",
			userID,
			db.Model(&domain.Phase{}).Select("id").Where("lesson_id = ?", lessonID),
		).
		Find(&out).Error
	return out, err
}
