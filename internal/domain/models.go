// Package domain defines the persistence models for lessons, phases, student
// progress, and phase feedback. These types are mapped with GORM and form the
// core data layer of the curriculum platform.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Progress status values stored in StudentProgress.Status.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Profile roles. Teachers and admins bypass sequential phase locking.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// Lesson represents one lesson in the curriculum. Lessons own an ordered set
// of phases that students work through sequentially.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Slug: URL-safe unique identifier used by the student-facing pages.
//   - Title: human-readable lesson title.
//   - Unit: owning curriculum unit label (free-form, e.g. "Unit 1").
//   - Description: short summary shown on the lesson catalog.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Lesson struct {
	ID          string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Slug        string         `json:"slug"        gorm:"type:varchar(128);not null;uniqueIndex"`
	Title       string         `json:"title"       gorm:"type:varchar(255);not null"`
	Unit        string         `json:"unit"        gorm:"type:varchar(64)"`
	Description string         `json:"description" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for Lesson.
func (Lesson) TableName() string { return "lessons" }

// Phase represents one sequential step within a lesson. Phase numbers are
// 1-based and dense within a lesson: a lesson with N phases carries numbers
// 1..N with no gaps. Phases are authored out of band and are immutable at
// runtime from this service's perspective.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - LessonID: foreign key to the owning lesson (unique with PhaseNumber).
//   - PhaseNumber: 1-based position within the lesson.
//   - Title: phase title shown in the lesson stepper.
//   - EstimatedMinutes: optional authoring estimate of phase duration.
type Phase struct {
	ID               string         `json:"id"                gorm:"type:char(36);primaryKey"`
	LessonID         string         `json:"lesson_id"         gorm:"type:char(36);not null;uniqueIndex:ux_lesson_phase_number,priority:1"`
	PhaseNumber      int            `json:"phase_number"      gorm:"not null;check:phase_number >= 1;uniqueIndex:ux_lesson_phase_number,priority:2"`
	Title            string         `json:"title"             gorm:"type:varchar(255);not null"`
	EstimatedMinutes *int           `json:"estimated_minutes,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"                 gorm:"index"`

	// Lesson is the parent lesson. Phases are cascade-deleted if their
	// lesson is removed.
	Lesson Lesson `json:"-" gorm:"foreignKey:LessonID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Phase.
func (Phase) TableName() string { return "phases" }

// StudentProgress records one student's completion state for one phase.
// At most one row exists per (user_id, phase_id); that unique index is the
// upsert conflict target for phase completion, so a same-phase duplicate can
// never produce two rows. The (user_id, idempotency_key) index is non-unique:
// it serves the replay lookup, while the cross-phase key-reuse conflict is
// detected by the service's read before the write.
//
// Invariant: when Status is "completed", CompletedAt is non-nil.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: identifier of the student (unique per phase).
//   - PhaseID: foreign key to the phase (unique per user).
//   - Status: not_started | in_progress | completed (enforced by DB check).
//   - StartedAt / CompletedAt: nullable lifecycle timestamps.
//   - TimeSpentSeconds: non-negative accumulated time for the phase.
//   - IdempotencyKey: client token bound to one logical completion event.
type StudentProgress struct {
	ID               string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	UserID           string         `json:"user_id"            gorm:"type:varchar(64);not null;uniqueIndex:ux_progress_user_phase,priority:1;index:ix_progress_user_idem,priority:1"`
	PhaseID          string         `json:"phase_id"           gorm:"type:char(36);not null;index;uniqueIndex:ux_progress_user_phase,priority:2"`
	Status           string         `json:"status"             gorm:"type:varchar(16);not null;default:'not_started';check:status IN ('not_started','in_progress','completed')"`
	StartedAt        *time.Time     `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at"`
	TimeSpentSeconds int            `json:"time_spent_seconds" gorm:"not null;default:0;check:time_spent_seconds >= 0"`
	IdempotencyKey   string         `json:"-"                  gorm:"type:char(36);index:ix_progress_user_idem,priority:2"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"                  gorm:"index"`

	// Phase is the phase this record tracks. Progress is cascade-deleted
	// if the underlying phase is removed.
	Phase Phase `json:"-" gorm:"foreignKey:PhaseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for StudentProgress.
func (StudentProgress) TableName() string { return "student_progress" }

// PhaseFeedback represents a student-provided rating on a phase. A user can
// leave one feedback entry per phase (enforced by unique index).
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - PhaseID: foreign key to the rated phase (unique per user).
//   - UserID: identifier of the feedback author (unique per phase).
//   - Value: +1 (positive) or -1 (negative).
//   - Comment: optional free-text note.
type PhaseFeedback struct {
	ID        string         `json:"id"                gorm:"type:char(36);primaryKey"`
	PhaseID   string         `json:"phase_id"          gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_phase_user"`
	UserID    string         `json:"user_id"           gorm:"type:varchar(64);not null;index;uniqueIndex:ux_feedback_phase_user"`
	Value     int            `json:"value"             gorm:"not null;check:value IN (-1,1)"`
	Comment   *string        `json:"comment,omitempty" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"                 gorm:"index"`

	// Phase is the rated phase. Feedback is cascade-deleted if the
	// underlying phase is removed.
	Phase Phase `json:"-" gorm:"foreignKey:PhaseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PhaseFeedback.
func (PhaseFeedback) TableName() string { return "phase_feedback" }

// Profile carries the identity attributes this service needs about a user:
// primarily the role, which decides whether sequential phase locking applies.
// Account management lives elsewhere; rows here mirror the auth provider.
type Profile struct {
	ID          string         `json:"id"           gorm:"type:varchar(64);primaryKey"`
	Role        string         `json:"role"         gorm:"type:varchar(16);not null;default:'student';check:role IN ('student','teacher','admin')"`
	DisplayName string         `json:"display_name" gorm:"type:varchar(255)"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }
