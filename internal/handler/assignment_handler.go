package handler

import (
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/klaslab/school-api/internal/service"
	appErrors "github.com/klaslab/school-api/pkg/errors"
	"github.com/klaslab/school-api/pkg/response"
)

// AssignmentHandler exposes the assignment and submission endpoints.
// Teacher routes are scoped to classes the caller owns; the Submit
// route is the student side of the workflow.
type AssignmentHandler struct {
	service *service.AssignmentService
}

// NewAssignmentHandler creates a new handler.
func NewAssignmentHandler(svc *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: svc}
}

// Create publishes an assignment to one of the teacher's classes.
func (h *AssignmentHandler) Create(c *gin.Context) {
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	assignment, err := h.service.Create(c.Request.Context(), c.Param("id"), currentClaims(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Update applies edits to one of the teacher's assignments.
func (h *AssignmentHandler) Update(c *gin.Context) {
	var req service.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}

	assignment, err := h.service.Update(c.Request.Context(), c.Param("id"), currentClaims(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Delete removes an assignment that has no submissions yet.
func (h *AssignmentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), currentClaims(c).UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByClass returns the assignments of one of the teacher's classes.
func (h *AssignmentHandler) ListByClass(c *gin.Context) {
	page, pageSize := pageParams(c)
	assignments, pagination, err := h.service.ListByClass(c.Request.Context(), c.Param("id"), currentClaims(c).UserID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Submissions lists the submissions received for one assignment.
func (h *AssignmentHandler) Submissions(c *gin.Context) {
	submissions, err := h.service.Submissions(c.Request.Context(), c.Param("id"), currentClaims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Submit uploads a student's submission file for an assignment.
func (h *AssignmentHandler) Submit(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "submission file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open uploaded file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read uploaded file"))
		return
	}

	submission, err := h.service.Submit(c.Request.Context(), c.Param("id"), currentClaims(c).UserID, data, fileHeader.Filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// DownloadLink issues a short-lived signed URL for a submission file.
func (h *AssignmentHandler) DownloadLink(c *gin.Context) {
	token, expiresAt, err := h.service.DownloadToken(c.Request.Context(), c.Param("id"), currentClaims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"url":        "/files?token=" + url.QueryEscape(token),
		"expires_at": expiresAt,
	}, nil)
}

// Download streams a submission file behind a signed token. The token
// is the only credential, so the route sits outside the JWT group.
func (h *AssignmentHandler) Download(c *gin.Context) {
	file, err := h.service.OpenDownload(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat submission file"))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+stat.Name()+`"`)
	http.ServeContent(c.Writer, c.Request, stat.Name(), stat.ModTime(), file)
}

// Grade scores a submission. Grading again overwrites the earlier
// grade.
func (h *AssignmentHandler) Grade(c *gin.Context) {
	var req service.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}

	submission, err := h.service.Grade(c.Request.Context(), c.Param("id"), currentClaims(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}
