package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
	"github.com/ledgerlab/go-lessons-backend/internal/repo"
)

// gormLessonRepo adapts the free functions in the repo package to the
// LessonRepo interface.
type gormLessonRepo struct{}

func (gormLessonRepo) CreateLesson(ctx context.Context, db *gorm.DB, slug, title, unit, description string) (*domain.Lesson, error) {
	return repo.CreateLesson(ctx, db, slug, title, unit, description)
}
func (gormLessonRepo) GetLesson(ctx context.Context, db *gorm.DB, id string) (*domain.Lesson, error) {
	return repo.GetLesson(ctx, db, id)
}
func (gormLessonRepo) GetLessonBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Lesson, error) {
	return repo.GetLessonBySlug(ctx, db, slug)
}
func (gormLessonRepo) CountLessons(ctx context.Context, db *gorm.DB, search string) (int64, error) {
	return repo.CountLessons(ctx, db, search)
}
func (gormLessonRepo) ListLessonsPage(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.Lesson, error) {
	return repo.ListLessonsPage(ctx, db, search, offset, limit)
}
func (gormLessonRepo) ListPhases(ctx context.Context, db *gorm.DB, lessonID string) ([]domain.Phase, error) {
	return repo.ListPhases(ctx, db, lessonID)
}

func newLessonSvc(db *gorm.DB) *LessonService {
	return NewLessonService(db, gormLessonRepo{})
}

func TestLessonCreate_NormalizesTitleAndSlug(t *testing.T) {
	db := newTestDB(t)
	svc := newLessonSvc(db)
	ctx := context.Background()

	l, err := svc.Create(ctx, "", "  gross   profit  margin ", " Unit 2 ", " intro ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if l.Title != "Gross Profit Margin" {
		t.Fatalf("title not normalized: %q", l.Title)
	}
	if l.Slug != "gross-profit-margin" {
		t.Fatalf("slug not derived: %q", l.Slug)
	}
	if l.Unit != "Unit 2" || l.Description != "intro" {
		t.Fatalf("fields not trimmed: %+v", l)
	}

	// Blank title fallback.
	l2, err := svc.Create(ctx, "manual-slug", "   ", "Unit 1", "")
	if err != nil {
		t.Fatalf("Create blank title: %v", err)
	}
	if l2.Title != "Untitled Lesson" || l2.Slug != "manual-slug" {
		t.Fatalf("fallback failed: %+v", l2)
	}
}

func TestLessonGet_ByIDThenSlug(t *testing.T) {
	db := newTestDB(t)
	svc := newLessonSvc(db)
	ctx := context.Background()

	created, err := svc.Create(ctx, "markup", "Markup", "Unit 1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	byID, err := svc.Get(ctx, created.ID)
	if err != nil || byID.ID != created.ID {
		t.Fatalf("Get by ID: %+v err=%v", byID, err)
	}
	bySlug, err := svc.Get(ctx, "markup")
	if err != nil || bySlug.ID != created.ID {
		t.Fatalf("Get by slug: %+v err=%v", bySlug, err)
	}
	if _, err := svc.Get(ctx, "nope"); !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("expected ErrLessonNotFound, got %v", err)
	}
}

func TestLessonListPage_DefaultsAndEmpty(t *testing.T) {
	db := newTestDB(t)
	svc := newLessonSvc(db)
	ctx := context.Background()

	items, total, err := svc.ListPage(ctx, "", 0, 0)
	if err != nil || total != 0 || len(items) != 0 {
		t.Fatalf("empty list: items=%d total=%d err=%v", len(items), total, err)
	}

	for _, title := range []string{"VAT Basics", "Payroll", "Cash Flow"} {
		if _, err := svc.Create(ctx, "", title, "Unit 1", ""); err != nil {
			t.Fatalf("seed %q: %v", title, err)
		}
	}

	items, total, err = svc.ListPage(ctx, "", -5, -1)
	if err != nil || total != 3 || len(items) != 3 {
		t.Fatalf("defaults: items=%d total=%d err=%v", len(items), total, err)
	}

	items, total, err = svc.ListPage(ctx, "Vat", 1, 10)
	if err != nil || total != 1 || len(items) != 1 {
		t.Fatalf("search: items=%d total=%d err=%v", len(items), total, err)
	}
}
