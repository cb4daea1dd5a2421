package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/models"
	"github.com/klaslab/school-api/internal/repository"
	appErrors "github.com/klaslab/school-api/pkg/errors"
)

type studentClassRepository interface {
	ListStudentClasses(ctx context.Context, studentID string) ([]models.StudentClassDetail, error)
	IsStudentEnrolled(ctx context.Context, classID, studentID string) (bool, error)
}

type studentAttendanceRepository interface {
	ListByStudent(ctx context.Context, studentID, classID string, page, pageSize int) ([]models.AttendanceRecord, int, error)
	StudentCounts(ctx context.Context, studentID string) (*models.AttendanceCounts, error)
}

type studentAssignmentRepository interface {
	ListStudentAssignments(ctx context.Context, studentID string, pendingOnly bool, page, pageSize int) ([]models.StudentAssignment, int, error)
	ListStudentGrades(ctx context.Context, studentID string) ([]models.StudentGrade, error)
	StudentDashboardCounts(ctx context.Context, studentID string) (*repository.DashboardCounts, error)
}

type studentNotificationRepository interface {
	UnreadCount(ctx context.Context, studentID string) (int, error)
}

// StudentService provides the student-facing read side: classes,
// attendance, assignments, grades and the dashboard.
type StudentService struct {
	classes       studentClassRepository
	attendance    studentAttendanceRepository
	assignments   studentAssignmentRepository
	notifications studentNotificationRepository
	cache         attendanceCache
	dashboardTTL  time.Duration
	logger        *zap.Logger
}

// NewStudentService constructs a StudentService instance.
func NewStudentService(classes studentClassRepository, attendance studentAttendanceRepository, assignments studentAssignmentRepository, notifications studentNotificationRepository, cache attendanceCache, dashboardTTL time.Duration, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dashboardTTL <= 0 {
		dashboardTTL = 2 * time.Minute
	}
	return &StudentService{
		classes:       classes,
		attendance:    attendance,
		assignments:   assignments,
		notifications: notifications,
		cache:         cache,
		dashboardTTL:  dashboardTTL,
		logger:        logger,
	}
}

// Classes returns every class the student is enrolled in.
func (s *StudentService) Classes(ctx context.Context, studentID string) ([]models.StudentClassDetail, error) {
	classes, err := s.classes.ListStudentClasses(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Attendance returns the student's own attendance history, optionally
// scoped to one enrolled class.
func (s *StudentService) Attendance(ctx context.Context, studentID, classID string, page, pageSize int) ([]models.AttendanceRecord, *models.Pagination, error) {
	if classID != "" {
		if err := requireEnrolled(ctx, s.classes, classID, studentID); err != nil {
			return nil, nil, err
		}
	}

	records, total, err := s.attendance.ListByStudent(ctx, studentID, classID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page, pageSize = models.NormalizePage(page, pageSize)
	return records, models.NewPagination(page, pageSize, total), nil
}

// Assignments returns the student's assignments with submission state
// and an overdue flag. When pendingOnly is set, the repository excludes
// submitted assignments before paginating, so pages and totals cover
// pending ones only.
func (s *StudentService) Assignments(ctx context.Context, studentID string, pendingOnly bool, page, pageSize int) ([]models.StudentAssignment, *models.Pagination, error) {
	assignments, total, err := s.assignments.ListStudentAssignments(ctx, studentID, pendingOnly, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}

	today := models.DateOnly(time.Now())
	for i := range assignments {
		assignments[i].Overdue = !assignments[i].Submitted && models.DateOnly(assignments[i].DueDate).Before(today)
	}

	page, pageSize = models.NormalizePage(page, pageSize)
	return assignments, models.NewPagination(page, pageSize, total), nil
}

// Grades returns the student's graded submissions.
func (s *StudentService) Grades(ctx context.Context, studentID string) ([]models.StudentGrade, error) {
	grades, err := s.assignments.ListStudentGrades(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// Dashboard aggregates the student's home screen counters, cached for a
// short TTL.
func (s *StudentService) Dashboard(ctx context.Context, studentID string) (*models.StudentDashboard, error) {
	cacheKey := "dashboard:student:" + studentID
	if s.cache != nil {
		var cached models.StudentDashboard
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	counts, err := s.assignments.StudentDashboardCounts(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate dashboard")
	}
	attendance, err := s.attendance.StudentCounts(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	unread, err := s.notifications.UnreadCount(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}

	dashboard := &models.StudentDashboard{
		EnrolledClasses:      counts.EnrolledClasses,
		TotalAssignments:     counts.TotalAssignments,
		PendingAssignments:   counts.PendingAssignments,
		GradedSubmissions:    counts.GradedSubmissions,
		AverageGrade:         counts.AverageGrade,
		AttendancePercentage: attendancePercentage(attendance.TotalPresent, attendance.TotalLate, attendance.TotalRecords),
		UnreadNotifications:  unread,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, dashboard, s.dashboardTTL); err != nil {
			s.logger.Warn("failed to cache student dashboard", zap.String("student_id", studentID), zap.Error(err))
		}
	}
	return dashboard, nil
}
