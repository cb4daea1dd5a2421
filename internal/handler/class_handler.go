package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/klaslab/school-api/internal/models"
	"github.com/klaslab/school-api/internal/service"
	appErrors "github.com/klaslab/school-api/pkg/errors"
	"github.com/klaslab/school-api/pkg/response"
)

// ClassHandler exposes the teacher class endpoints. Every route is
// scoped to the authenticated teacher's own classes.
type ClassHandler struct {
	service *service.ClassService
}

// NewClassHandler creates a new handler.
func NewClassHandler(svc *service.ClassService) *ClassHandler {
	return &ClassHandler{service: svc}
}

// Create opens a new class section for the calling teacher.
func (h *ClassHandler) Create(c *gin.Context) {
	var req service.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}

	class, err := h.service.Create(c.Request.Context(), currentClaims(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Get returns one of the teacher's classes with its detail fields.
func (h *ClassHandler) Get(c *gin.Context) {
	class, err := h.service.Get(c.Request.Context(), c.Param("id"), currentClaims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Update applies edits to one of the teacher's classes.
func (h *ClassHandler) Update(c *gin.Context) {
	var req service.UpdateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid class payload"))
		return
	}

	class, err := h.service.Update(c.Request.Context(), c.Param("id"), currentClaims(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Deactivate closes one of the teacher's classes.
func (h *ClassHandler) Deactivate(c *gin.Context) {
	if err := h.service.Deactivate(c.Request.Context(), c.Param("id"), currentClaims(c).UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// List returns the calling teacher's classes.
func (h *ClassHandler) List(c *gin.Context) {
	filter := models.ClassFilter{
		TeacherID: currentClaims(c).UserID,
		Search:    c.Query("search"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	classes, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, pagination)
}

// EnrollStudent adds a student to one of the teacher's active classes.
func (h *ClassHandler) EnrollStudent(c *gin.Context) {
	var req service.EnrollStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment payload"))
		return
	}

	enrollment, err := h.service.EnrollStudent(c.Request.Context(), c.Param("id"), currentClaims(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// Roster lists the students enrolled in one of the teacher's classes.
func (h *ClassHandler) Roster(c *gin.Context) {
	roster, err := h.service.Roster(c.Request.Context(), c.Param("id"), currentClaims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}
