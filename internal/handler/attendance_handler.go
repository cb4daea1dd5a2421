package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/klaslab/school-api/internal/models"
	"github.com/klaslab/school-api/internal/service"
	appErrors "github.com/klaslab/school-api/pkg/errors"
	"github.com/klaslab/school-api/pkg/response"
)

// AttendanceHandler exposes the teacher attendance endpoints.
type AttendanceHandler struct {
	service *service.AttendanceService
}

// NewAttendanceHandler creates a new handler.
func NewAttendanceHandler(svc *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark records attendance for one student on one date. Marking the
// same student and date again overwrites the earlier record.
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance payload"))
		return
	}

	record, err := h.service.MarkSingle(c.Request.Context(), c.Param("id"), currentClaims(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// MarkBulk records attendance for a whole class in one shot and
// returns the resulting sheet.
func (h *AttendanceHandler) MarkBulk(c *gin.Context) {
	var req service.BulkMarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk attendance payload"))
		return
	}

	sheet, err := h.service.MarkBulk(c.Request.Context(), c.Param("id"), currentClaims(c).UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, nil)
}

// List returns attendance records filtered by class, student, date
// range and status.
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := models.AttendanceFilter{
		ClassID:   c.Query("class_id"),
		StudentID: c.Query("student_id"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	var err error
	if filter.FromDate, err = parseDateQuery(c, "from_date"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.ToDate, err = parseDateQuery(c, "to_date"); err != nil {
		response.Error(c, err)
		return
	}
	if raw := c.Query("status"); raw != "" {
		status := models.AttendanceStatus(raw)
		if !status.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be PRESENT, ABSENT or LATE"))
			return
		}
		filter.Status = &status
	}

	records, pagination, err := h.service.List(c.Request.Context(), currentClaims(c).UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Summary returns aggregate attendance figures for a class.
func (h *AttendanceHandler) Summary(c *gin.Context) {
	summary, err := h.service.ClassSummary(c.Request.Context(), c.Param("id"), currentClaims(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// StudentHistory returns one student's attendance within a class.
func (h *AttendanceHandler) StudentHistory(c *gin.Context) {
	page, pageSize := pageParams(c)
	records, pagination, err := h.service.StudentAttendance(c.Request.Context(), c.Param("id"), currentClaims(c).UserID, c.Param("studentId"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination)
}

// Export streams a class attendance sheet as CSV or PDF.
func (h *AttendanceHandler) Export(c *gin.Context) {
	classID := c.Param("id")
	format := c.DefaultQuery("format", "csv")

	data, contentType, err := h.service.ExportSheet(c.Request.Context(), classID, currentClaims(c).UserID, c.Query("date"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("attendance-%s-%s.%s", classID, c.Query("date"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func parseDateQuery(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, name+" must be formatted as YYYY-MM-DD")
	}
	return &parsed, nil
}
