// Package services – AccessService
//
// This file implements AccessService, the policy component that decides
// whether a user may open a given phase of a lesson. The policy is strictly
// sequential for students: phase 1 is always open, and phase N requires a
// completed record for phase N-1. Teachers and admins bypass the sequence
// entirely so they can review any part of a lesson.
//
// The service reads roles from the profiles table; a missing profile row is
// treated as the student role rather than an error, so brand-new accounts are
// subject to the normal sequence.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
	"github.com/ledgerlab/go-lessons-backend/internal/repo"
)

// AccessService evaluates the sequential unlock policy for lesson phases.
type AccessService struct {
	// DB is the GORM handle used for all lookups.
	DB *gorm.DB
}

// Role returns the user's role, defaulting to student when no profile exists.
func (s *AccessService) Role(ctx context.Context, userID string) (string, error) {
	p, err := repo.GetProfile(ctx, s.DB, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RoleStudent, nil
		}
		return "", err
	}
	return p.Role, nil
}

// bypassesSequence reports whether a role may open phases out of order.
func bypassesSequence(role string) bool {
	return role == domain.RoleTeacher || role == domain.RoleAdmin
}

// CanAccessPhase decides whether userID may open phase phaseNumber of the
// lesson. It returns:
//   - (true, nil) when access is allowed
//   - (false, nil) when the phase is locked for this student
//   - (false, err) for missing lessons/phases or DB failures
//
// Rules, in order:
//  1. The lesson and the addressed phase must exist (ErrLessonNotFound,
//     ErrPhaseNotFound). A lesson with zero phases yields ErrNoPhases.
//  2. Teachers and admins may open any phase.
//  3. Phase 1 is always open.
//  4. Phase N is open iff the student has a completed record for phase N-1.
func (s *AccessService) CanAccessPhase(ctx context.Context, userID, lessonID string, phaseNumber int) (bool, error) {
	tr := otel.Tracer("services/AccessService")
	ctx, span := tr.Start(ctx, "CanAccessPhase",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("lesson.id", lessonID),
			attribute.Int("phase.number", phaseNumber),
		),
	)
	defer span.End()

	if _, err := repo.GetLesson(ctx, s.DB, lessonID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrLessonNotFound
		}
		return false, err
	}

	total, err := repo.CountPhases(ctx, s.DB, lessonID)
	if err != nil {
		return false, err
	}
	if total == 0 {
		return false, ErrNoPhases
	}

	if _, err := repo.GetPhaseByNumber(ctx, s.DB, lessonID, phaseNumber); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrPhaseNotFound
		}
		return false, err
	}

	role, err := s.Role(ctx, userID)
	if err != nil {
		return false, err
	}
	if bypassesSequence(role) {
		return true, nil
	}

	if phaseNumber <= 1 {
		return true, nil
	}

	prev, err := repo.GetPhaseByNumber(ctx, s.DB, lessonID, phaseNumber-1)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Numbering gap: the phase before N does not exist, so the
			// sequence cannot be satisfied.
			return false, nil
		}
		return false, err
	}

	prog, err := repo.GetProgress(ctx, s.DB, userID, prev.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return prog.Status == domain.StatusCompleted, nil
}
