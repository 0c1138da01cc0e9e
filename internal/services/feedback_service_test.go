package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
)

func TestFeedback_Leave_InvalidValue(t *testing.T) {
	db := newTestDB(t)
	svc := &FeedbackService{DB: db}

	err := svc.Leave(context.Background(), "u1", "p1", 0, "") // not -1 or 1
	if !errors.Is(err, ErrInvalidFeedback) {
		t.Fatalf("expected ErrInvalidFeedback, got %v", err)
	}
}

func TestFeedback_Leave_PhaseNotFound(t *testing.T) {
	db := newTestDB(t)
	svc := &FeedbackService{DB: db}

	err := svc.Leave(context.Background(), "u1", "missing", 1, "")
	if !errors.Is(err, ErrPhaseNotFound) {
		t.Fatalf("expected ErrPhaseNotFound, got %v", err)
	}
}

func TestFeedback_Leave_SuccessTrimsComment(t *testing.T) {
	db := newTestDB(t)
	svc := &FeedbackService{DB: db}
	_, phases := seedLesson(t, db, 1)
	ctx := context.Background()

	if err := svc.Leave(ctx, "u1", phases[0].ID, -1, "  too fast  "); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	var fb domain.PhaseFeedback
	if err := db.First(&fb, "phase_id = ? AND user_id = ?", phases[0].ID, "u1").Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if fb.Value != -1 || fb.Comment == nil || *fb.Comment != "too fast" {
		t.Fatalf("unexpected row: %+v", fb)
	}

	// Blank comments are stored as NULL.
	if err := svc.Leave(ctx, "u2", phases[0].ID, 1, "   "); err != nil {
		t.Fatalf("Leave(u2): %v", err)
	}
	// Use a fresh struct: reusing fb would leak its populated primary key
	// into the query conditions and match nothing.
	var fb2 domain.PhaseFeedback
	if err := db.First(&fb2, "phase_id = ? AND user_id = ?", phases[0].ID, "u2").Error; err != nil {
		t.Fatalf("load u2: %v", err)
	}
	if fb2.Comment != nil {
		t.Fatalf("blank comment should be NULL, got %q", *fb2.Comment)
	}
}

func TestFeedback_Leave_ClipsLongComment(t *testing.T) {
	db := newTestDB(t)
	svc := &FeedbackService{DB: db}
	_, phases := seedLesson(t, db, 1)

	long := strings.Repeat("x", maxFeedbackCommentRunes+500)
	if err := svc.Leave(context.Background(), "u1", phases[0].ID, 1, long); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	var fb domain.PhaseFeedback
	if err := db.First(&fb, "phase_id = ? AND user_id = ?", phases[0].ID, "u1").Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if fb.Comment == nil || len(*fb.Comment) != maxFeedbackCommentRunes {
		t.Fatalf("comment not clipped: len=%d", len(*fb.Comment))
	}
}

func TestFeedback_Leave_Duplicate(t *testing.T) {
	db := newTestDB(t)
	svc := &FeedbackService{DB: db}
	_, phases := seedLesson(t, db, 1)
	ctx := context.Background()

	if err := svc.Leave(ctx, "u1", phases[0].ID, 1, ""); err != nil {
		t.Fatalf("first: %v", err)
	}
	if err := svc.Leave(ctx, "u1", phases[0].ID, -1, ""); !errors.Is(err, ErrDuplicateFeedback) {
		t.Fatalf("expected ErrDuplicateFeedback, got %v", err)
	}
}

func TestFeedback_ListForPhase(t *testing.T) {
	db := newTestDB(t)
	svc := &FeedbackService{DB: db}
	_, phases := seedLesson(t, db, 1)
	ctx := context.Background()

	if _, err := svc.ListForPhase(ctx, "missing"); !errors.Is(err, ErrPhaseNotFound) {
		t.Fatalf("expected ErrPhaseNotFound, got %v", err)
	}

	if err := svc.Leave(ctx, "u1", phases[0].ID, 1, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rows, err := svc.ListForPhase(ctx, phases[0].ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("ListForPhase: rows=%d err=%v", len(rows), err)
	}
}
