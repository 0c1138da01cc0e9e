package client

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoPhasesConfigured means the lesson has no phases at all. Callers should
// show a configuration-error message instead of redirecting in a loop.
var ErrNoPhasesConfigured = errors.New("lesson has no phases configured")

// ErrAccessCheckFailed wraps an access-policy evaluation failure. It is
// distinct from a denial: the caller must surface "unable to verify access,
// try again" rather than silently redirect the user to an earlier phase.
var ErrAccessCheckFailed = errors.New("unable to verify phase access")

// AccessChecker answers whether a user may open a phase. A false result is a
// policy denial; an error is an evaluation failure and means nothing about
// the user's actual progress.
type AccessChecker interface {
	CanAccessPhase(ctx context.Context, userID, lessonID string, phaseNumber int) (bool, error)
}

// Resolution is the navigation outcome for a requested phase.
type Resolution struct {
	// PhaseNumber is the phase to render.
	PhaseNumber int
	// Redirected is true when PhaseNumber differs from the request.
	Redirected bool
}

// ResolvePhase decides which phase to render when a user asks for phase
// requested of a lesson with totalPhases phases.
//
// Out-of-range requests clamp to phase 1 before any policy check, so the
// evaluator is never consulted for phases that do not exist. A denied request
// redirects to the latest phase the user can actually open, found by
// scanning backward from the request. Phase 1 is always accessible, so the
// scan terminates.
func ResolvePhase(ctx context.Context, checker AccessChecker, userID, lessonID string, requested, totalPhases int) (Resolution, error) {
	if totalPhases <= 0 {
		return Resolution{}, ErrNoPhasesConfigured
	}
	if requested < 1 || requested > totalPhases {
		return Resolution{PhaseNumber: 1, Redirected: requested != 1}, nil
	}

	allowed, err := checker.CanAccessPhase(ctx, userID, lessonID, requested)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: %v", ErrAccessCheckFailed, err)
	}
	if allowed {
		return Resolution{PhaseNumber: requested}, nil
	}

	for n := requested - 1; n >= 1; n-- {
		allowed, err = checker.CanAccessPhase(ctx, userID, lessonID, n)
		if err != nil {
			return Resolution{}, fmt.Errorf("%w: %v", ErrAccessCheckFailed, err)
		}
		if allowed {
			return Resolution{PhaseNumber: n, Redirected: true}, nil
		}
	}
	// Phase 1 must always be accessible; reaching here means the policy
	// evaluator broke its own contract.
	return Resolution{}, fmt.Errorf("%w: no accessible phase found", ErrAccessCheckFailed)
}
