// Package services – ProgressService
//
// This file implements ProgressService, the application-level component that
// records phase completions and assembles per-lesson progress views. It
// validates inputs, enforces the sequential unlock policy via AccessService,
// and persists completions through a single upsert keyed by (user, phase) so
// the operation is idempotent and safe under concurrent replays.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include user/lesson/phase identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
	"github.com/ledgerlab/go-lessons-backend/internal/repo"
)

// MaxTimeSpentSeconds caps the self-reported time on a phase at 24 hours.
// Values outside [0, MaxTimeSpentSeconds] are rejected with ErrInvalidTimeSpent.
const MaxTimeSpentSeconds = 86400

// Phase display statuses used in the per-lesson progress view.
const (
	PhaseStateCompleted = "completed"
	PhaseStateCurrent   = "current"
	PhaseStateAvailable = "available"
	PhaseStateLocked    = "locked"
)

// CompletionInput is the validated payload for recording a completion.
type CompletionInput struct {
	LessonID         string
	PhaseNumber      int
	TimeSpentSeconds int
	IdempotencyKey   string
}

// CompletionResult reports the outcome of a completion request.
type CompletionResult struct {
	PhaseID           string     `json:"phase_id"`
	PhaseNumber       int        `json:"phase_number"`
	CompletedAt       *time.Time `json:"completed_at"`
	NextPhaseUnlocked bool       `json:"next_phase_unlocked"`
	Message           string     `json:"message"`
	Replayed          bool       `json:"-"`
}

// PhaseProgressEntry is one phase in the per-lesson progress view.
type PhaseProgressEntry struct {
	PhaseID          string     `json:"phase_id"`
	PhaseNumber      int        `json:"phase_number"`
	Title            string     `json:"title"`
	Status           string     `json:"status"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	TimeSpentSeconds int        `json:"time_spent_seconds"`
}

// ProgressService records completions and builds progress views.
type ProgressService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Access evaluates the sequential unlock policy.
	Access *AccessService
}

// CompletePhase records a completed phase for userID.
//
// Semantics:
//   - The idempotency key must be a UUID; otherwise ErrInvalidKey.
//   - Lesson and phase must exist (ErrLessonNotFound, ErrPhaseNotFound).
//   - Replaying a key already recorded for the same phase returns the stored
//     outcome without writing anything.
//   - Replaying a key against a different phase yields ErrKeyConflict.
//   - Students must have completed the previous phase (ErrPhaseLocked);
//     teachers and admins bypass the sequence.
//   - TimeSpentSeconds outside [0, MaxTimeSpentSeconds] is ErrInvalidTimeSpent.
//   - CompletedAt is always the server clock; client timestamps are ignored.
//   - A repeat completion with a fresh key overwrites the stored row
//     (last completion wins) while preserving the original StartedAt.
func (s *ProgressService) CompletePhase(ctx context.Context, userID string, in CompletionInput) (*CompletionResult, error) {
	tr := otel.Tracer("services/ProgressService")
	ctx, span := tr.Start(ctx, "CompletePhase",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("lesson.id", in.LessonID),
			attribute.Int("phase.number", in.PhaseNumber),
		),
	)
	defer span.End()

	if _, err := uuid.Parse(in.IdempotencyKey); err != nil {
		return nil, ErrInvalidKey
	}
	if in.TimeSpentSeconds < 0 || in.TimeSpentSeconds > MaxTimeSpentSeconds {
		return nil, ErrInvalidTimeSpent
	}

	phase, err := repo.GetPhaseByNumber(ctx, s.DB, in.LessonID, in.PhaseNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Distinguish a missing lesson from a missing phase.
			if _, lerr := repo.GetLesson(ctx, s.DB, in.LessonID); lerr != nil {
				if errors.Is(lerr, gorm.ErrRecordNotFound) {
					return nil, ErrLessonNotFound
				}
				return nil, lerr
			}
			return nil, ErrPhaseNotFound
		}
		return nil, err
	}

	// Replay detection before any policy checks: a replayed request must get
	// the same answer it got the first time, even if the course content or
	// the student's role changed since.
	if prior, err := repo.GetProgressByIdempotencyKey(ctx, s.DB, userID, in.IdempotencyKey); err == nil {
		if prior.PhaseID != phase.ID {
			return nil, ErrKeyConflict
		}
		return s.buildResult(ctx, phase, prior, true)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ok, err := s.Access.CanAccessPhase(ctx, userID, in.LessonID, in.PhaseNumber)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPhaseLocked
	}

	now := time.Now().UTC()
	rec := &domain.StudentProgress{
		UserID:           userID,
		PhaseID:          phase.ID,
		Status:           domain.StatusCompleted,
		StartedAt:        &now,
		CompletedAt:      &now,
		TimeSpentSeconds: in.TimeSpentSeconds,
		IdempotencyKey:   in.IdempotencyKey,
	}
	// Preserve the original start time when the student re-completes a phase.
	if existing, err := repo.GetProgress(ctx, s.DB, userID, phase.ID); err == nil && existing.StartedAt != nil {
		rec.StartedAt = existing.StartedAt
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := repo.UpsertProgress(ctx, s.DB, rec); err != nil {
		return nil, err
	}
	return s.buildResult(ctx, phase, rec, false)
}

// buildResult assembles the response for a recorded (or replayed) completion.
func (s *ProgressService) buildResult(ctx context.Context, phase *domain.Phase, rec *domain.StudentProgress, replayed bool) (*CompletionResult, error) {
	next, err := repo.GetPhaseByNumber(ctx, s.DB, phase.LessonID, phase.PhaseNumber+1)
	unlocked := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	msg := fmt.Sprintf("Phase %d completed. This was the final phase.", phase.PhaseNumber)
	if unlocked {
		msg = fmt.Sprintf("Phase %d completed. Phase %d unlocked.", phase.PhaseNumber, next.PhaseNumber)
	}
	return &CompletionResult{
		PhaseID:           phase.ID,
		PhaseNumber:       phase.PhaseNumber,
		CompletedAt:       rec.CompletedAt,
		NextPhaseUnlocked: unlocked,
		Message:           msg,
		Replayed:          replayed,
	}, nil
}

// LessonProgress returns the per-phase progress view for a lesson: every
// phase in order, each labeled completed, current, available, or locked.
//
// For students the first uncompleted phase is "current" and everything after
// it is "locked". Teachers and admins see every uncompleted phase as
// "available" since the sequence does not apply to them.
func (s *ProgressService) LessonProgress(ctx context.Context, userID, lessonID string) ([]PhaseProgressEntry, error) {
	tr := otel.Tracer("services/ProgressService")
	ctx, span := tr.Start(ctx, "LessonProgress",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("lesson.id", lessonID),
		),
	)
	defer span.End()

	if _, err := repo.GetLesson(ctx, s.DB, lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}

	phases, err := repo.ListPhases(ctx, s.DB, lessonID)
	if err != nil {
		return nil, err
	}
	if len(phases) == 0 {
		return nil, ErrNoPhases
	}

	rows, err := repo.ListLessonProgress(ctx, s.DB, userID, lessonID)
	if err != nil {
		return nil, err
	}
	byPhase := make(map[string]domain.StudentProgress, len(rows))
	for _, r := range rows {
		byPhase[r.PhaseID] = r
	}

	role, err := s.Access.Role(ctx, userID)
	if err != nil {
		return nil, err
	}
	bypass := bypassesSequence(role)

	out := make([]PhaseProgressEntry, 0, len(phases))
	currentSeen := false
	for _, p := range phases {
		e := PhaseProgressEntry{
			PhaseID:     p.ID,
			PhaseNumber: p.PhaseNumber,
			Title:       p.Title,
		}
		if r, ok := byPhase[p.ID]; ok && r.Status == domain.StatusCompleted {
			e.Status = PhaseStateCompleted
			e.CompletedAt = r.CompletedAt
			e.TimeSpentSeconds = r.TimeSpentSeconds
		} else {
			switch {
			case bypass:
				e.Status = PhaseStateAvailable
			case !currentSeen:
				e.Status = PhaseStateCurrent
				currentSeen = true
			default:
				e.Status = PhaseStateLocked
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// MarkPhase records that the student has opened (or resumed) a phase without
// completing it. Completed phases are never demoted; completions go through
// CompletePhase only.
func (s *ProgressService) MarkPhase(ctx context.Context, userID, lessonID string, phaseNumber int, status string) error {
	tr := otel.Tracer("services/ProgressService")
	ctx, span := tr.Start(ctx, "MarkPhase",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("lesson.id", lessonID),
			attribute.Int("phase.number", phaseNumber),
		),
	)
	defer span.End()

	if status != domain.StatusNotStarted && status != domain.StatusInProgress {
		return ErrInvalidStatus
	}

	phase, err := repo.GetPhaseByNumber(ctx, s.DB, lessonID, phaseNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPhaseNotFound
		}
		return err
	}

	ok, err := s.Access.CanAccessPhase(ctx, userID, lessonID, phaseNumber)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPhaseLocked
	}

	now := time.Now().UTC()
	rec := &domain.StudentProgress{
		UserID:    userID,
		PhaseID:   phase.ID,
		Status:    status,
		StartedAt: &now,
	}
	if existing, err := repo.GetProgress(ctx, s.DB, userID, phase.ID); err == nil {
		if existing.Status == domain.StatusCompleted {
			return nil
		}
		if existing.StartedAt != nil {
			rec.StartedAt = existing.StartedAt
		}
		rec.TimeSpentSeconds = existing.TimeSpentSeconds
		rec.IdempotencyKey = existing.IdempotencyKey
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	return repo.UpsertProgress(ctx, s.DB, rec)
}

// LessonStats returns the per-phase completion rollup for a lesson. Intended
// for teacher and admin dashboards.
func (s *ProgressService) LessonStats(ctx context.Context, lessonID string) ([]repo.PhaseCompletionRow, error) {
	tr := otel.Tracer("services/ProgressService")
	ctx, span := tr.Start(ctx, "LessonStats",
		trace.WithAttributes(attribute.String("lesson.id", lessonID)),
	)
	defer span.End()

	if _, err := repo.GetLesson(ctx, s.DB, lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		return nil, err
	}
	return repo.LessonCompletionStats(ctx, s.DB, lessonID)
}
