// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Phase model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
)

// CreatePhase inserts a new phase row for a lesson. Phase numbers must be
// unique within a lesson; the database enforces this.
func CreatePhase(ctx context.Context, db *gorm.DB, lessonID string, phaseNumber int, title string, estimatedMinutes *int) (*domain.Phase, error) {
	p := &domain.Phase{
		ID:               uuid.NewString(),
		LessonID:         lessonID,
		PhaseNumber:      phaseNumber,
		Title:            title,
		EstimatedMinutes: estimatedMinutes,
		CreatedAt:        time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPhase fetches a phase by ID, or ErrNotFound if missing.
func GetPhase(ctx context.Context, db *gorm.DB, id string) (*domain.Phase, error) {
	var p domain.Phase
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPhaseByNumber resolves a (lesson, phase number) pair to a concrete phase,
// or ErrNotFound when the lesson has no such phase.
func GetPhaseByNumber(ctx context.Context, db *gorm.DB, lessonID string, phaseNumber int) (*domain.Phase, error) {
	var p domain.Phase
	err := db.WithContext(ctx).
		Where("lesson_id = ? AND phase_number = ?", lessonID, phaseNumber).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPhases returns all phases for a lesson ordered by phase number ascending.
// It returns an empty slice if the lesson has no phases.
func ListPhases(ctx context.Context, db *gorm.DB, lessonID string) ([]domain.Phase, error) {
	var out []domain.Phase
	err := db.WithContext(ctx).
		Where("lesson_id = ?", lessonID).
		Order("phase_number asc").
		Find(&out).Error
	return out, err
}

// CountPhases returns the number of phases belonging to a lesson.
func CountPhases(ctx context.Context, db *gorm.DB, lessonID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Phase{}).
		Where("lesson_id = ?", lessonID).
		Count(&total).Error
	return total, err
}
