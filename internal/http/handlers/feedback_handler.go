// Feedback HTTP handlers.
//
// This file exposes the REST endpoints for phase feedback:
//   - POST /phases/{id}/feedback  (create feedback)
//   - GET  /phases/{id}/feedback  (list feedback, staff only)
//
// Handlers in this file are transport-thin: they validate input, delegate to
// application services, and translate domain/service errors into HTTP results.
// Feedback values are constrained to {-1, +1} to represent "too hard / didn't
// help" and "helped me" reactions respectively.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ledgerlab/go-lessons-backend/internal/services"
)

// LeaveFeedbackRequest is the JSON payload for creating feedback on a phase.
//
// Value must be one of:
//   - +1 : positive feedback
//   - -1 : negative feedback
//
// The binding tag enforces the domain constraint at the transport layer.
type LeaveFeedbackRequest struct {
	// Value is the feedback signal: +1 (positive) or -1 (negative).
	Value int `json:"value" binding:"required,oneof=-1 1" example:"1"`
	// Comment optionally explains the rating.
	Comment string `json:"comment,omitempty" example:"The worked example made it click"`
}

// LeaveFeedback godoc
// @ID          leaveFeedback
// @Summary     Leave feedback on a phase
// @Description Records positive (+1) or negative (-1) feedback for a lesson phase.
// @Tags        Feedback
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Phase ID (UUID)"        format(uuid) example(fa4dfbe0-c3bf-47bd-b32f-d7de221cf43b)
// @Param       body       body    handlers.LeaveFeedbackRequest true "Feedback payload"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid payload"
// @Failure     404  {object} handlers.ErrorResponse "Phase not found"
// @Failure     409  {object} handlers.ErrorResponse "Feedback already exists"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /phases/{id}/feedback [post]
func (h *Handlers) LeaveFeedback(c *gin.Context) {
	var req LeaveFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must be -1 or 1")
		return
	}

	uid := userID(c)
	phaseID := c.Param("id")

	if err := h.fbSvc.Leave(c.Request.Context(), uid, phaseID, req.Value, req.Comment); err != nil {
		switch err {
		case services.ErrPhaseNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "phase not found")
		case services.ErrInvalidFeedback:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value must be -1 or 1")
		case services.ErrDuplicateFeedback:
			fail(c, http.StatusConflict, ErrCodeConflict, "feedback already exists")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	noContent(c)
}

// ListPhaseFeedback godoc
// @ID          listPhaseFeedback
// @Summary     List feedback for a phase
// @Description Returns all feedback left on a phase, newest first. Requires the teacher or admin role.
// @Tags        Feedback
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(teacher1)
// @Param       id         path    string  true  "Phase ID (UUID)"        format(uuid)
//
// @Success     200  {array}  domain.PhaseFeedback
// @Failure     403  {object} handlers.ErrorResponse "Staff role required"
// @Failure     404  {object} handlers.ErrorResponse "Phase not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal server error"
// @Router      /phases/{id}/feedback [get]
func (h *Handlers) ListPhaseFeedback(c *gin.Context) {
	if !h.requireStaff(c) {
		return
	}

	rows, err := h.fbSvc.ListForPhase(c.Request.Context(), c.Param("id"))
	if err != nil {
		if err == services.ErrPhaseNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "phase not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, rows)
}
