package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/models"
	appErrors "github.com/klaslab/school-api/pkg/errors"
	"github.com/klaslab/school-api/pkg/export"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, att *models.Attendance) error
	BulkUpsert(ctx context.Context, records []models.Attendance) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error)
	Counts(ctx context.Context, classID string) (*models.AttendanceCounts, error)
}

type attendanceCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// MarkAttendanceRequest marks one student on one date.
type MarkAttendanceRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required"`
}

// BulkAttendanceEntry is one row of a bulk marking request.
type BulkAttendanceEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
}

// BulkMarkAttendanceRequest marks a whole class session at once.
type BulkMarkAttendanceRequest struct {
	Date    string                `json:"date" validate:"required,datetime=2006-01-02"`
	Records []BulkAttendanceEntry `json:"records" validate:"required,min=1,dive"`
}

// AttendanceService provides attendance marking, querying, summaries
// and exports for teachers.
type AttendanceService struct {
	repo       attendanceRepository
	classes    classOwnershipRepository
	cache      attendanceCache
	summaryTTL time.Duration
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAttendanceService constructs an AttendanceService instance.
func NewAttendanceService(repo attendanceRepository, classes classOwnershipRepository, cache attendanceCache, summaryTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if summaryTTL <= 0 {
		summaryTTL = 5 * time.Minute
	}
	return &AttendanceService{repo: repo, classes: classes, cache: cache, summaryTTL: summaryTTL, validator: validate, logger: logger}
}

// MarkSingle records one student's status for a date. Marking the same
// (class, student, date) again overwrites the previous status.
func (s *AttendanceService) MarkSingle(ctx context.Context, classID, teacherID string, req MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	if _, err := requireOwnedClass(ctx, s.classes, classID, teacherID, true); err != nil {
		return nil, err
	}
	if err := requireEnrolled(ctx, s.classes, classID, req.StudentID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in this class")
	}

	status := models.AttendanceStatus(req.Status)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be PRESENT, ABSENT or LATE")
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	att := &models.Attendance{
		ClassID:           classID,
		StudentID:         req.StudentID,
		Date:              date,
		Status:            status,
		MarkedByTeacherID: teacherID,
	}
	if err := s.repo.Upsert(ctx, att); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}

	s.invalidateSummary(ctx, classID)
	return att, nil
}

// MarkBulk records a whole session in one shot. Every record is
// validated before anything is written; one bad record fails the whole
// batch. Returns the complete sheet for the class and date.
func (s *AttendanceService) MarkBulk(ctx context.Context, classID, teacherID string, req BulkMarkAttendanceRequest) ([]models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk attendance payload")
	}

	if _, err := requireOwnedClass(ctx, s.classes, classID, teacherID, true); err != nil {
		return nil, err
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	seen := make(map[string]bool, len(req.Records))
	records := make([]models.Attendance, 0, len(req.Records))
	for _, entry := range req.Records {
		status := models.AttendanceStatus(entry.Status)
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q for student %s", entry.Status, entry.StudentID))
		}
		if seen[entry.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s appears more than once", entry.StudentID))
		}
		seen[entry.StudentID] = true
		if err := requireEnrolled(ctx, s.classes, classID, entry.StudentID); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not enrolled in this class", entry.StudentID))
		}
		records = append(records, models.Attendance{
			ClassID:           classID,
			StudentID:         entry.StudentID,
			Date:              date,
			Status:            status,
			MarkedByTeacherID: teacherID,
		})
	}

	if err := s.repo.BulkUpsert(ctx, records); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}

	s.invalidateSummary(ctx, classID)

	sheet, err := s.repo.ListByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance sheet")
	}
	return sheet, nil
}

// List returns the class's attendance records matching the filter.
func (s *AttendanceService) List(ctx context.Context, teacherID string, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	if filter.ClassID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	if _, err := requireOwnedClass(ctx, s.classes, filter.ClassID, teacherID, false); err != nil {
		return nil, nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "status must be PRESENT, ABSENT or LATE")
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	return records, models.NewPagination(page, pageSize, total), nil
}

// ClassSummary aggregates the class's attendance. The percentage counts
// late arrivals as attended; with no records it is zero, never NaN.
func (s *AttendanceService) ClassSummary(ctx context.Context, classID, teacherID string) (*models.AttendanceSummary, error) {
	class, err := requireOwnedClass(ctx, s.classes, classID, teacherID, false)
	if err != nil {
		return nil, err
	}

	cacheKey := summaryCacheKey(classID)
	if s.cache != nil {
		var cached models.AttendanceSummary
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	counts, err := s.repo.Counts(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}

	summary := &models.AttendanceSummary{
		ClassID:              classID,
		ClassName:            class.Name,
		TotalStudents:        counts.TotalStudents,
		TotalSessions:        counts.TotalSessions,
		TotalPresent:         counts.TotalPresent,
		TotalAbsent:          counts.TotalAbsent,
		TotalLate:            counts.TotalLate,
		AttendancePercentage: attendancePercentage(counts.TotalPresent, counts.TotalLate, counts.TotalRecords),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.summaryTTL); err != nil {
			s.logger.Warn("failed to cache attendance summary", zap.String("class_id", classID), zap.Error(err))
		}
	}
	return summary, nil
}

// StudentAttendance returns one enrolled student's history in the class.
func (s *AttendanceService) StudentAttendance(ctx context.Context, classID, teacherID, studentID string, page, pageSize int) ([]models.AttendanceRecord, *models.Pagination, error) {
	if _, err := requireOwnedClass(ctx, s.classes, classID, teacherID, false); err != nil {
		return nil, nil, err
	}
	if err := requireEnrolled(ctx, s.classes, classID, studentID); err != nil {
		return nil, nil, err
	}

	filter := models.AttendanceFilter{ClassID: classID, StudentID: studentID, Page: page, PageSize: pageSize}
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page, pageSize = models.NormalizePage(page, pageSize)
	return records, models.NewPagination(page, pageSize, total), nil
}

// ExportSheet renders one session's sheet as CSV or PDF.
func (s *AttendanceService) ExportSheet(ctx context.Context, classID, teacherID, dateStr, format string) ([]byte, string, error) {
	class, err := requireOwnedClass(ctx, s.classes, classID, teacherID, false)
	if err != nil {
		return nil, "", err
	}
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.UTC)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	records, err := s.repo.ListByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance sheet")
	}

	sheet := export.Sheet{
		Title:   fmt.Sprintf("Attendance - %s - %s", class.Name, dateStr),
		Columns: []string{"Student", "Status", "Marked By", "Marked At"},
	}
	for _, record := range records {
		sheet.Rows = append(sheet.Rows, []string{
			record.StudentName,
			string(record.Status),
			record.MarkedByTeacherName,
			record.MarkedAt.UTC().Format(time.RFC3339),
		})
	}

	switch format {
	case "pdf":
		data, err := export.PDF(sheet)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return data, "application/pdf", nil
	case "csv", "":
		data, err := export.CSV(sheet)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return data, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func (s *AttendanceService) invalidateSummary(ctx context.Context, classID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, summaryCacheKey(classID)); err != nil {
		s.logger.Warn("failed to invalidate attendance summary cache", zap.String("class_id", classID), zap.Error(err))
	}
}

func summaryCacheKey(classID string) string {
	return "attendance:summary:" + classID
}

// attendancePercentage counts PRESENT and LATE as attended, rounded to
// two decimals. Zero records yields zero.
func attendancePercentage(present, late, records int) float64 {
	if records == 0 {
		return 0
	}
	return math.Round(float64(present+late)/float64(records)*100*100) / 100
}
