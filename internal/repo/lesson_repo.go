// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Lesson model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a lesson is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateLesson inserts a new Lesson row with the given slug and title.
// The lesson ID is a randomly generated UUID (string), and CreatedAt is set to UTC.
//
// On success, it returns the persisted Lesson. On failure, it returns a DB error.
func CreateLesson(ctx context.Context, db *gorm.DB, slug, title, unit, description string) (*domain.Lesson, error) {
	l := &domain.Lesson{
		ID:          uuid.NewString(),
		Slug:        slug,
		Title:       title,
		Unit:        unit,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

// GetLesson fetches a single lesson by its ID. If the record does not exist,
// it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetLesson(ctx context.Context, db *gorm.DB, id string) (*domain.Lesson, error) {
	var l domain.Lesson
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLessonBySlug fetches a single lesson by its URL slug. If the record does
// not exist, it returns ErrNotFound. On other DB errors, the raw error is returned.
func GetLessonBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Lesson, error) {
	var l domain.Lesson
	if err := db.WithContext(ctx).Where("slug = ?", slug).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// CountLessons returns the total number of lessons matching the optional title
// search term. An empty search counts all lessons. On DB error, it returns the error.
func CountLessons(ctx context.Context, db *gorm.DB, search string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.Lesson{})
	if search != "" {
		q = q.Where("title LIKE ?", "%"+search+"%")
	}
	err := q.Count(&total).Error
	return total, err
}

// ListLessonsPage returns a paginated slice of lessons ordered by unit then
// title, optionally filtered by a title search term. Use CountLessons to
// obtain the total for pagination metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListLessonsPage(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.Lesson, error) {
	var out []domain.Lesson
	q := db.WithContext(ctx)
	if search != "" {
		q = q.Where("title LIKE ?", "%"+search+"%")
	}
	err := q.
		Order("unit asc, title asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
