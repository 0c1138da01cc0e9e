// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer and for teacher-facing rollups. Each function is context-aware and
// safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
)

// ProgressStats returns aggregate metadata for a user's progress rows: the
// total number of rows and the maximum UpdatedAt timestamp among those rows.
//
// It executes two lightweight queries against the student_progress table
// scoped to the provided userID. When the user has no progress, the returned
// count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        total progress rows for userID
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func ProgressStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.StudentProgress{}).Where("user_id = ?", userID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// PhaseCompletionRow is one line of the per-phase completion rollup for a
// lesson: how many distinct students completed the phase and the average time
// they reported spending on it.
type PhaseCompletionRow struct {
	PhaseID          string  `json:"phase_id"`
	PhaseNumber      int     `json:"phase_number"`
	Completions      int64   `json:"completions"`
	AvgTimeSpentSecs float64 `json:"avg_time_spent_seconds"`
}

// LessonCompletionStats aggregates completed progress rows per phase of a
// lesson, ordered by phase number. Phases with no completions still appear
// with zero counts so the rollup always covers the full lesson.
func LessonCompletionStats(ctx context.Context, db *gorm.DB, lessonID string) ([]PhaseCompletionRow, error) {
	var rows []PhaseCompletionRow
	err := db.WithContext(ctx).
		Model(&domain.Phase{}).
		Select(
			"phases.id AS phase_id, "+
				"phases.phase_number AS phase_number, "+
				"COUNT(sp.id) AS completions, "+
				"COALESCE(AVG(sp.time_spent_seconds), 0) AS avg_time_spent_secs",
		).
		Joins(
			"LEFT JOIN student_progress sp ON sp.phase_id = phases.id AND sp.status = ?",
			domain.StatusCompleted,
		).
		Where("phases.lesson_id = ?", lessonID).
		Group("phases.id, phases.phase_number").
		Order("phases.phase_number ASC").
		Scan(&rows).Error
	return rows, err
}
