// Package seed loads an initial curriculum (lessons and their phases) from a
// JSON file into the database at startup. Loading is idempotent: lessons whose
// slug already exists are skipped, so restarts do not duplicate content.
package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ledgerlab/go-lessons-backend/internal/repo"
)

// PhaseSeed describes one phase of a seeded lesson.
type PhaseSeed struct {
	Number           int    `json:"number"`
	Title            string `json:"title"`
	EstimatedMinutes *int   `json:"estimated_minutes,omitempty"`
}

// LessonSeed describes one lesson and its phases.
type LessonSeed struct {
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	Unit        string      `json:"unit"`
	Description string      `json:"description"`
	Phases      []PhaseSeed `json:"phases"`
}

// Load reads the seed file at path and inserts any lessons not yet present.
// A lesson found by slug is left untouched, phases included. Returns the
// number of lessons inserted.
func Load(ctx context.Context, db *gorm.DB, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	var lessons []LessonSeed
	if err := json.Unmarshal(raw, &lessons); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	inserted := 0
	for _, ls := range lessons {
		if ls.Slug == "" || ls.Title == "" {
			return inserted, fmt.Errorf("seed lesson needs slug and title: %+v", ls)
		}
		if err := validatePhases(ls); err != nil {
			return inserted, err
		}

		_, err := repo.GetLessonBySlug(ctx, db, ls.Slug)
		if err == nil {
			log.Debug().Str("slug", ls.Slug).Msg("seed lesson already present, skipping")
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return inserted, fmt.Errorf("look up lesson %q: %w", ls.Slug, err)
		}

		lesson, err := repo.CreateLesson(ctx, db, ls.Slug, ls.Title, ls.Unit, ls.Description)
		if err != nil {
			return inserted, fmt.Errorf("create lesson %q: %w", ls.Slug, err)
		}
		for _, ph := range ls.Phases {
			if _, err := repo.CreatePhase(ctx, db, lesson.ID, ph.Number, ph.Title, ph.EstimatedMinutes); err != nil {
				return inserted, fmt.Errorf("create phase %d of %q: %w", ph.Number, ls.Slug, err)
			}
		}
		inserted++
		log.Info().Str("slug", ls.Slug).Int("phases", len(ls.Phases)).Msg("seeded lesson")
	}
	return inserted, nil
}

// validatePhases requires contiguous numbering from 1 so no lesson is seeded
// into a permanently locked state.
func validatePhases(ls LessonSeed) error {
	seen := make(map[int]bool, len(ls.Phases))
	for _, ph := range ls.Phases {
		if ph.Number < 1 || ph.Number > len(ls.Phases) {
			return fmt.Errorf("lesson %q: phase number %d out of range", ls.Slug, ph.Number)
		}
		if seen[ph.Number] {
			return fmt.Errorf("lesson %q: duplicate phase number %d", ls.Slug, ph.Number)
		}
		seen[ph.Number] = true
	}
	return nil
}
