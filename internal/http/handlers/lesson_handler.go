// Lesson HTTP handlers.
//
// This file exposes REST endpoints for catalog resources:
//   - POST   /lessons          (create, staff only)
//   - GET    /lessons          (list, paginated)
//   - GET    /lessons/{id}     (fetch with phases; accepts ID or slug)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ledgerlab/go-lessons-backend/internal/domain"
	"github.com/ledgerlab/go-lessons-backend/internal/services"
)

//
// DTOs
//

// CreateLessonRequest is the JSON payload for creating a lesson.
type CreateLessonRequest struct {
	// Slug optionally sets the URL slug; derived from the title when empty.
	Slug string `json:"slug" example:"break-even-analysis"`
	// Title is the display title (1-255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Break-even Analysis"`
	// Unit groups lessons in the curriculum.
	Unit string `json:"unit" example:"Unit 2"`
	// Description is an optional short summary.
	Description string `json:"description" example:"Fixed vs variable costs"`
}

// ListLessonsResponse wraps a page of lessons and pagination information.
type ListLessonsResponse struct {
	Lessons    []domain.Lesson `json:"lessons"`
	Pagination Pagination      `json:"pagination"`
}

// LessonDetailResponse is a lesson together with its ordered phases.
type LessonDetailResponse struct {
	Lesson domain.Lesson  `json:"lesson"`
	Phases []domain.Phase `json:"phases"`
}

//
// Handlers
//

// CreateLesson godoc
// @ID          createLesson
// @Summary     Create a new lesson
// @Description Creates a lesson in the catalog. Requires the teacher or admin role.
// @Tags        Lessons
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(teacher1)
// @Param       body       body    handlers.CreateLessonRequest  true  "Create lesson payload"
//
// @Success     201  {object}  domain.Lesson
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Staff role required"
// @Failure     409  {object}  handlers.ErrorResponse  "Slug already exists"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /lessons [post]
func (h *Handlers) CreateLesson(c *gin.Context) {
	if !h.requireStaff(c) {
		return
	}

	var req CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1-255 chars)")
		return
	}

	l, err := h.lessonSvc.Create(c.Request.Context(), req.Slug, req.Title, req.Unit, req.Description)
	if err != nil {
		if isUniqueViolation(err) {
			fail(c, http.StatusConflict, ErrCodeConflict, "lesson slug already exists")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		return
	}
	ok(c, http.StatusCreated, l)
}

// ListLessons godoc
// @ID          listLessons
// @Summary     List lessons (paginated)
// @Description Returns a page of the lesson catalog, optionally filtered by a title search term.
// @Tags        Lessons
// @Produce     json
//
// @Param       q          query   string  false "Title search term"
// @Param       page       query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListLessonsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /lessons [get]
func (h *Handlers) ListLessons(c *gin.Context) {
	page, pageSize := clampPagination(c)
	search := strings.TrimSpace(c.Query("q"))

	items, total, err := h.lessonSvc.ListPage(c.Request.Context(), search, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListLessonsResponse{
		Lessons: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetLesson godoc
// @ID          getLesson
// @Summary     Fetch a lesson with its phases
// @Description Returns a lesson and its ordered phases. The path segment may be a lesson ID or slug.
// @Tags        Lessons
// @Produce     json
//
// @Param       id  path  string  true  "Lesson ID or slug"  example(break-even-analysis)
//
// @Success     200  {object} handlers.LessonDetailResponse
// @Failure     404  {object} handlers.ErrorResponse "Lesson not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /lessons/{id} [get]
func (h *Handlers) GetLesson(c *gin.Context) {
	ctx := c.Request.Context()

	l, err := h.lessonSvc.Get(ctx, c.Param("id"))
	if err != nil {
		if err == services.ErrLessonNotFound {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "lesson not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	phases, err := h.lessonSvc.Phases(ctx, l.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, LessonDetailResponse{Lesson: *l, Phases: phases})
}

// isUniqueViolation detects unique-constraint failures from the SQLite driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}
