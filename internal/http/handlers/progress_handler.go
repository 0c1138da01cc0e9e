// Progress HTTP handlers.
//
// This file exposes the endpoints for recording and reading phase progress:
//   - POST /phases/complete                     (idempotent completion)
//   - GET  /lessons/{id}/progress               (per-phase progress view, ETag support)
//   - PUT  /lessons/{id}/phases/{n}/state       (mark a phase opened/resumed)
//   - GET  /lessons/{id}/phases/{n}/access      (unlock check for navigation)
//   - GET  /lessons/{id}/stats                  (completion rollup, staff only)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate domain/service errors into HTTP results. Completion requests
// are the hot path; replays are answered from the stored record and flagged
// via the X-Idempotent-Replay response header.
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ledgerlab/go-lessons-backend/internal/http/middleware"
	"github.com/ledgerlab/go-lessons-backend/internal/repo"
	"github.com/ledgerlab/go-lessons-backend/internal/services"
)

//
// DTOs
//

// CompletePhaseRequest is the JSON payload for recording a phase completion.
//
// The idempotency key is generated client-side once per completion attempt,
// so retries of the same attempt replay instead of double-recording. The
// lesson may be addressed by ID or slug.
type CompletePhaseRequest struct {
	LessonID         string `json:"lesson_id" binding:"required" example:"break-even-analysis"`
	PhaseNumber      int    `json:"phase_number" binding:"required,min=1" example:"2"`
	TimeSpentSeconds int    `json:"time_spent_seconds" binding:"gte=0,lte=86400" example:"840"`
	IdempotencyKey   string `json:"idempotency_key" binding:"required,uuid" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// MarkPhaseRequest is the JSON payload for a non-completing status change.
type MarkPhaseRequest struct {
	Status string `json:"status" binding:"required,oneof=not_started in_progress" example:"in_progress"`
}

// LessonProgressResponse wraps the per-phase progress view.
type LessonProgressResponse struct {
	LessonID string                        `json:"lesson_id"`
	Phases   []services.PhaseProgressEntry `json:"phases"`
}

// PhaseAccessResponse reports whether a phase is open for the current user.
type PhaseAccessResponse struct {
	LessonID    string `json:"lesson_id"`
	PhaseNumber int    `json:"phase_number"`
	Accessible  bool   `json:"accessible"`
}

// LessonStatsResponse wraps the staff-facing completion rollup.
type LessonStatsResponse struct {
	LessonID string                    `json:"lesson_id"`
	Phases   []repo.PhaseCompletionRow `json:"phases"`
}

// resolveLesson maps a path/body lesson reference (ID or slug) to a lesson,
// writing the HTTP error itself when resolution fails.
func (h *Handlers) resolveLesson(c *gin.Context, ref string) (string, bool) {
	l, err := h.lessonSvc.Get(c.Request.Context(), ref)
	if err != nil {
		if err == services.ErrLessonNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "lesson not found")
		} else {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return "", false
	}
	return l.ID, true
}

// phaseNumberParam parses the :n path segment, writing a 400 on failure.
func phaseNumberParam(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 1 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "phase number must be a positive integer")
		return 0, false
	}
	return n, true
}

//
// Handlers
//

// CompletePhase godoc
// @ID          completePhase
// @Summary     Record a phase completion
// @Description Idempotently marks a phase completed for the current user. Replaying the same
// @Description idempotency key returns the stored outcome; reusing a key for a different phase
// @Description is rejected with 409.
// @Tags        Progress
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.CompletePhaseRequest  true  "Completion payload"
//
// @Success     200  {object} services.CompletionResult
// @Header      200  {string} X-Idempotent-Replay "true when the request was a replay"
// @Failure     400  {object} handlers.ErrorResponse "Invalid request data"
// @Failure     403  {object} handlers.ErrorResponse "Previous phase must be completed"
// @Failure     404  {object} handlers.ErrorResponse "Lesson or phase not found"
// @Failure     409  {object} handlers.ErrorResponse "Idempotency key conflict"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /phases/complete [post]
func (h *Handlers) CompletePhase(c *gin.Context) {
	var req CompletePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failDetails(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request data", validationDetails(err))
		return
	}

	lessonID, okRes := h.resolveLesson(c, req.LessonID)
	if !okRes {
		return
	}

	res, err := h.progressSvc.CompletePhase(c.Request.Context(), userID(c), services.CompletionInput{
		LessonID:         lessonID,
		PhaseNumber:      req.PhaseNumber,
		TimeSpentSeconds: req.TimeSpentSeconds,
		IdempotencyKey:   req.IdempotencyKey,
	})
	if err != nil {
		switch err {
		case services.ErrInvalidKey:
			failDetails(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request data",
				map[string][]string{"idempotency_key": {"must be a valid UUID"}})
		case services.ErrInvalidTimeSpent:
			failDetails(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request data",
				map[string][]string{"time_spent_seconds": {"must be between 0 and 86400"}})
		case services.ErrLessonNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "lesson not found")
		case services.ErrPhaseNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "phase not found")
		case services.ErrPhaseLocked:
			fail(c, http.StatusForbidden, ErrCodePhaseLocked, "Previous phase must be completed")
		case services.ErrKeyConflict:
			fail(c, http.StatusConflict, ErrCodeKeyConflict, "idempotency key already used for another phase")
		case services.ErrNoPhases:
			fail(c, http.StatusInternalServerError, ErrCodeMisconfigured, "lesson has no phases")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	middleware.PhaseCompletions.WithLabelValues(strconv.FormatBool(res.Replayed)).Inc()
	if res.Replayed {
		c.Header("X-Idempotent-Replay", "true")
	}
	ok(c, http.StatusOK, res)
}

// GetLessonProgress godoc
// @ID          getLessonProgress
// @Summary     Per-phase progress for a lesson
// @Description Returns every phase of the lesson labeled completed, current, available, or locked
// @Description for the current user. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Progress
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       id             path    string  true  "Lesson ID or slug"
//
// @Success     200  {object} handlers.LessonProgressResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     404  {object} handlers.ErrorResponse "Lesson not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /lessons/{id}/progress [get]
func (h *Handlers) GetLessonProgress(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	lessonID, okRes := h.resolveLesson(c, c.Param("id"))
	if !okRes {
		return
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, isConcrete := h.progressSvc.(*services.ProgressService); isConcrete {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ProgressStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"progress:%s:%s:%d:%d"`, uid, lessonID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	entries, err := h.progressSvc.LessonProgress(ctx, uid, lessonID)
	if err != nil {
		switch err {
		case services.ErrLessonNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "lesson not found")
		case services.ErrNoPhases:
			fail(c, http.StatusInternalServerError, ErrCodeMisconfigured, "lesson has no phases")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, LessonProgressResponse{LessonID: lessonID, Phases: entries})
}

// MarkPhase godoc
// @ID          markPhase
// @Summary     Mark a phase opened or resumed
// @Description Records a non-completing status (not_started, in_progress) for a phase.
// @Description Completed phases are never demoted.
// @Tags        Progress
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Lesson ID or slug"
// @Param       n          path    int     true  "Phase number"  minimum(1)
// @Param       body       body    handlers.MarkPhaseRequest  true  "Status payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload"
// @Failure     403  {object} handlers.ErrorResponse "Phase locked"
// @Failure     404  {object} handlers.ErrorResponse "Lesson or phase not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /lessons/{id}/phases/{n}/state [put]
func (h *Handlers) MarkPhase(c *gin.Context) {
	var req MarkPhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be not_started or in_progress")
		return
	}
	n, okN := phaseNumberParam(c)
	if !okN {
		return
	}
	lessonID, okRes := h.resolveLesson(c, c.Param("id"))
	if !okRes {
		return
	}

	if err := h.progressSvc.MarkPhase(c.Request.Context(), userID(c), lessonID, n, req.Status); err != nil {
		switch err {
		case services.ErrInvalidStatus:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be not_started or in_progress")
		case services.ErrPhaseNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "phase not found")
		case services.ErrPhaseLocked:
			fail(c, http.StatusForbidden, ErrCodePhaseLocked, "Previous phase must be completed")
		case services.ErrNoPhases:
			fail(c, http.StatusInternalServerError, ErrCodeMisconfigured, "lesson has no phases")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}

// CheckPhaseAccess godoc
// @ID          checkPhaseAccess
// @Summary     Check whether a phase is open
// @Description Evaluates the sequential unlock policy for the current user without
// @Description recording anything. Used by clients to validate deep links before rendering.
// @Tags        Progress
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Lesson ID or slug"
// @Param       n          path    int     true  "Phase number"  minimum(1)
//
// @Success     200  {object} handlers.PhaseAccessResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid phase number"
// @Failure     404  {object} handlers.ErrorResponse "Lesson or phase not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /lessons/{id}/phases/{n}/access [get]
func (h *Handlers) CheckPhaseAccess(c *gin.Context) {
	n, okN := phaseNumberParam(c)
	if !okN {
		return
	}
	lessonID, okRes := h.resolveLesson(c, c.Param("id"))
	if !okRes {
		return
	}

	allowed, err := h.accessSvc.CanAccessPhase(c.Request.Context(), userID(c), lessonID, n)
	if err != nil {
		switch err {
		case services.ErrLessonNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "lesson not found")
		case services.ErrPhaseNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "phase not found")
		case services.ErrNoPhases:
			fail(c, http.StatusInternalServerError, ErrCodeMisconfigured, "lesson has no phases")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, PhaseAccessResponse{LessonID: lessonID, PhaseNumber: n, Accessible: allowed})
}

// GetLessonStats godoc
// @ID          getLessonStats
// @Summary     Completion rollup for a lesson
// @Description Returns per-phase completion counts and average reported time.
// @Description Requires the teacher or admin role.
// @Tags        Progress
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(teacher1)
// @Param       id         path    string  true  "Lesson ID or slug"
//
// @Success     200  {object} handlers.LessonStatsResponse
// @Failure     403  {object} handlers.ErrorResponse "Staff role required"
// @Failure     404  {object} handlers.ErrorResponse "Lesson not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /lessons/{id}/stats [get]
func (h *Handlers) GetLessonStats(c *gin.Context) {
	if !h.requireStaff(c) {
		return
	}
	lessonID, okRes := h.resolveLesson(c, c.Param("id"))
	if !okRes {
		return
	}

	rows, err := h.progressSvc.LessonStats(c.Request.Context(), lessonID)
	if err != nil {
		if err == services.ErrLessonNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "lesson not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, LessonStatsResponse{LessonID: lessonID, Phases: rows})
}
