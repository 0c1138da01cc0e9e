// Package services – LessonService
//
// This file implements the LessonService, which manages the lesson catalog.
// It validates and normalizes titles and slugs, and coordinates repository
// operations for creating, listing (with pagination), and fetching lessons
// together with their phases.
//
// Service-level errors (e.g., ErrLessonNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
)

// LessonRepo defines the repository contract required by LessonService.
// Implementations are responsible for persistence of lesson aggregates.
type LessonRepo interface {
	// CreateLesson inserts a new lesson row.
	CreateLesson(ctx context.Context, db *gorm.DB, slug, title, unit, description string) (*domain.Lesson, error)

	// GetLesson fetches a lesson by ID.
	GetLesson(ctx context.Context, db *gorm.DB, id string) (*domain.Lesson, error)

	// GetLessonBySlug fetches a lesson by its URL slug.
	GetLessonBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Lesson, error)

	// CountLessons returns the total number of lessons for pagination.
	CountLessons(ctx context.Context, db *gorm.DB, search string) (int64, error)

	// ListLessonsPage returns a page of lessons.
	ListLessonsPage(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.Lesson, error)

	// ListPhases returns all phases of a lesson ordered by number.
	ListPhases(ctx context.Context, db *gorm.DB, lessonID string) ([]domain.Phase, error)
}

// LessonService provides catalog-level operations such as creating,
// listing, and fetching lessons. It enforces title and slug rules.
type LessonService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the lesson repository used by this service.
	Repo LessonRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
	// TitleLocale drives title casing for display titles.
	TitleLocale language.Tag
}

// NewLessonService constructs a LessonService with sane defaults for title handling.
func NewLessonService(db *gorm.DB, r LessonRepo) *LessonService {
	return &LessonService{
		DB:          db,
		Repo:        r,
		TitleMaxLen: 120,
		TitleLocale: language.English,
	}
}

// Create inserts a new lesson with a normalized title and slug.
// Blank titles fall back to "Untitled lesson"; blank slugs are derived
// from the title.
func (s *LessonService) Create(ctx context.Context, slug, title, unit, description string) (*domain.Lesson, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = "Untitled lesson"
	}
	title = s.clip(cases.Title(s.TitleLocale).String(title))

	slug = slugify(slug)
	if slug == "" {
		slug = slugify(title)
	}
	return s.Repo.CreateLesson(ctx, s.DB, slug, title, strings.TrimSpace(unit), strings.TrimSpace(description))
}

// Get fetches a lesson by ID or slug. IDs take precedence; when the ID lookup
// misses, the same value is retried as a slug so student-facing URLs work with
// either form.
func (s *LessonService) Get(ctx context.Context, idOrSlug string) (*domain.Lesson, error) {
	l, err := s.Repo.GetLesson(ctx, s.DB, idOrSlug)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	l, err = s.Repo.GetLessonBySlug(ctx, s.DB, idOrSlug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}
	return l, nil
}

// Phases returns the ordered phases of a lesson.
func (s *LessonService) Phases(ctx context.Context, lessonID string) ([]domain.Phase, error) {
	return s.Repo.ListPhases(ctx, s.DB, lessonID)
}

// ListPage returns a page of lessons with an optional title search term.
// It applies defaults for invalid page/pageSize and returns total count.
func (s *LessonService) ListPage(ctx context.Context, search string, page, pageSize int) ([]domain.Lesson, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountLessons(ctx, s.DB, search)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Lesson{}, 0, nil
	}

	items, err := s.Repo.ListLessonsPage(ctx, s.DB, search, offset, pageSize)
	return items, total, err
}

// clip truncates a lesson title to the configured maximum rune length.
func (s *LessonService) clip(title string) string {
	if s.TitleMaxLen > 0 && utf8.RuneCountInString(title) > s.TitleMaxLen {
		return string([]rune(title)[:s.TitleMaxLen])
	}
	return title
}

// normalizeTitle trims whitespace and collapses multiple spaces to one.
func normalizeTitle(s string) string {
	s = whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
	return s
}

// slugify lowercases and reduces a string to hyphen-separated alphanumerics.
func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugRE.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)

// nonSlugRE matches runs of characters that may not appear in a slug.
var nonSlugRE = regexp.MustCompile(`[^a-z0-9]+`)
