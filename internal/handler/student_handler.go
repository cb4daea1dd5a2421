package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/klaslab/school-api/internal/service"
	"github.com/klaslab/school-api/pkg/response"
)

// StudentHandler exposes the student self-service endpoints. Every
// route reads the student id from the JWT, never from the request.
type StudentHandler struct {
	service *service.StudentService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(svc *service.StudentService) *StudentHandler {
	return &StudentHandler{service: svc}
}

// Classes lists the classes the student is enrolled in.
func (h *StudentHandler) Classes(c *gin.Context) {
	classes, err := h.service.Classes(c.Request.Context(), currentClaims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Attendance returns the student's own attendance records, optionally
// narrowed to one class.
func (h *StudentHandler) Attendance(c *gin.Context) {
	page, pageSize := pageParams(c)
	records, pagination, err := h.service.Attendance(c.Request.Context(), currentClaims(c).UserID, c.Query("class_id"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Assignments lists the assignments across the student's classes.
func (h *StudentHandler) Assignments(c *gin.Context) {
	pendingOnly, _ := strconv.ParseBool(c.Query("pending_only"))
	page, pageSize := pageParams(c)

	assignments, pagination, err := h.service.Assignments(c.Request.Context(), currentClaims(c).UserID, pendingOnly, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, pagination)
}

// Grades lists the student's graded submissions.
func (h *StudentHandler) Grades(c *gin.Context) {
	grades, err := h.service.Grades(c.Request.Context(), currentClaims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Dashboard returns the student's aggregate overview.
func (h *StudentHandler) Dashboard(c *gin.Context) {
	dashboard, err := h.service.Dashboard(c.Request.Context(), currentClaims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}
