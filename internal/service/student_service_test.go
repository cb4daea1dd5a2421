package service

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/models"
	"github.com/klaslab/school-api/internal/repository"
	appErrors "github.com/klaslab/school-api/pkg/errors"
)

// studentClassesMock adds the student-side listing on top of the shared
// ownership mock.
type studentClassesMock struct {
	*mockClassAccess
	details map[string][]models.StudentClassDetail
}

func (m *studentClassesMock) ListStudentClasses(ctx context.Context, studentID string) ([]models.StudentClassDetail, error) {
	return m.details[studentID], nil
}

// studentAttendanceMock reads the same records the attendance mock
// maintains.
type studentAttendanceMock struct {
	repo *mockAttendanceRepo
}

func (m *studentAttendanceMock) ListByStudent(ctx context.Context, studentID, classID string, page, pageSize int) ([]models.AttendanceRecord, int, error) {
	return m.repo.List(ctx, models.AttendanceFilter{StudentID: studentID, ClassID: classID, Page: page, PageSize: pageSize})
}

func (m *studentAttendanceMock) StudentCounts(ctx context.Context, studentID string) (*models.AttendanceCounts, error) {
	counts := &models.AttendanceCounts{}
	for _, att := range m.repo.records {
		if att.StudentID != studentID {
			continue
		}
		counts.TotalRecords++
		switch att.Status {
		case models.AttendancePresent:
			counts.TotalPresent++
		case models.AttendanceAbsent:
			counts.TotalAbsent++
		case models.AttendanceLate:
			counts.TotalLate++
		}
	}
	return counts, nil
}

// studentAssignmentsMock derives the student read views from the
// assignment mock's maps.
type studentAssignmentsMock struct {
	repo            *mockAssignmentRepo
	enrolledClasses int
}

func (m *studentAssignmentsMock) submissionFor(assignmentID, studentID string) *models.Submission {
	for _, sub := range m.repo.submissions {
		if sub.AssignmentID == assignmentID && sub.StudentID == studentID {
			return sub
		}
	}
	return nil
}

func (m *studentAssignmentsMock) ListStudentAssignments(ctx context.Context, studentID string, pendingOnly bool, page, pageSize int) ([]models.StudentAssignment, int, error) {
	var result []models.StudentAssignment
	for _, assignment := range m.repo.assignments {
		item := models.StudentAssignment{
			AssignmentID: assignment.ID,
			Title:        assignment.Title,
			DueDate:      assignment.DueDate,
			ClassID:      assignment.ClassID,
		}
		if sub := m.submissionFor(assignment.ID, studentID); sub != nil {
			item.Submitted = true
			item.SubmittedAt = &sub.SubmittedAt
			item.Grade = sub.Grade
		}
		if pendingOnly && item.Submitted {
			continue
		}
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DueDate.After(result[j].DueDate)
	})

	total := len(result)
	page, pageSize = models.NormalizePage(page, pageSize)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return result[start:end], total, nil
}

func (m *studentAssignmentsMock) ListStudentGrades(ctx context.Context, studentID string) ([]models.StudentGrade, error) {
	var result []models.StudentGrade
	for _, sub := range m.repo.submissions {
		if sub.StudentID != studentID || sub.Grade == nil {
			continue
		}
		grade := models.StudentGrade{
			AssignmentID: sub.AssignmentID,
			SubmittedAt:  sub.SubmittedAt,
			Grade:        *sub.Grade,
			Remarks:      sub.Remarks,
		}
		if assignment, ok := m.repo.assignments[sub.AssignmentID]; ok {
			grade.AssignmentTitle = assignment.Title
		}
		result = append(result, grade)
	}
	return result, nil
}

func (m *studentAssignmentsMock) StudentDashboardCounts(ctx context.Context, studentID string) (*repository.DashboardCounts, error) {
	counts := &repository.DashboardCounts{EnrolledClasses: m.enrolledClasses}
	var gradeSum float64
	for _, assignment := range m.repo.assignments {
		counts.TotalAssignments++
		sub := m.submissionFor(assignment.ID, studentID)
		if sub == nil {
			counts.PendingAssignments++
			continue
		}
		if sub.Grade != nil {
			counts.GradedSubmissions++
			gradeSum += *sub.Grade
		}
	}
	if counts.GradedSubmissions > 0 {
		counts.AverageGrade = gradeSum / float64(counts.GradedSubmissions)
	}
	return counts, nil
}

type studentNotificationsMock struct {
	unread int
}

func (m *studentNotificationsMock) UnreadCount(ctx context.Context, studentID string) (int, error) {
	return m.unread, nil
}

// TestStudentWalk exercises the student flow end to end: submit an
// assignment, receive a grade, then read grades and the dashboard.
func TestStudentWalk(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	assignmentRepo := newMockAssignmentRepo()
	assignmentSvc := newAssignmentService(assignmentRepo, classes)

	assignment, err := assignmentSvc.Create(context.Background(), "c1", "t1", CreateAssignmentRequest{
		Title: "Essay", DueDate: futureDate(),
	})
	require.NoError(t, err)
	sub, err := assignmentSvc.Submit(context.Background(), assignment.ID, "s1", nil, "")
	require.NoError(t, err)
	_, err = assignmentSvc.Grade(context.Background(), sub.ID, "t1", GradeSubmissionRequest{Grade: 88})
	require.NoError(t, err)

	attendanceRepo := newMockAttendanceRepo()
	require.NoError(t, attendanceRepo.Upsert(context.Background(), &models.Attendance{
		ClassID: "c1", StudentID: "s1", Date: time.Now(), Status: models.AttendancePresent,
	}))

	svc := NewStudentService(
		&studentClassesMock{mockClassAccess: classes},
		&studentAttendanceMock{repo: attendanceRepo},
		&studentAssignmentsMock{repo: assignmentRepo, enrolledClasses: 1},
		&studentNotificationsMock{unread: 2},
		nil, time.Minute, zap.NewNop(),
	)

	grades, err := svc.Grades(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.InDelta(t, 88.0, grades[0].Grade, 0.001)
	assert.Equal(t, "Essay", grades[0].AssignmentTitle)

	assignments, _, err := svc.Assignments(context.Background(), "s1", false, 1, 20)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.True(t, assignments[0].Submitted)
	assert.False(t, assignments[0].Overdue)

	dashboard, err := svc.Dashboard(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, dashboard.EnrolledClasses)
	assert.Equal(t, 1, dashboard.GradedSubmissions)
	assert.Zero(t, dashboard.PendingAssignments)
	assert.InDelta(t, 88.0, dashboard.AverageGrade, 0.001)
	assert.InDelta(t, 100.0, dashboard.AttendancePercentage, 0.001)
	assert.Equal(t, 2, dashboard.UnreadNotifications)
}

func TestStudentAttendanceRequiresEnrollmentForFilter(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	svc := NewStudentService(
		&studentClassesMock{mockClassAccess: classes},
		&studentAttendanceMock{repo: newMockAttendanceRepo()},
		&studentAssignmentsMock{repo: newMockAssignmentRepo()},
		&studentNotificationsMock{},
		nil, time.Minute, zap.NewNop(),
	)

	_, _, err := svc.Attendance(context.Background(), "s1", "c1", 1, 20)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentAssignmentsOverdueAndPendingFilter(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	assignmentRepo := newMockAssignmentRepo()

	assignmentRepo.assignments["past"] = &models.Assignment{
		ID: "past", ClassID: "c1", Title: "Late homework",
		DueDate: time.Now().UTC().AddDate(0, 0, -3),
	}
	assignmentRepo.assignments["done"] = &models.Assignment{
		ID: "done", ClassID: "c1", Title: "Finished homework",
		DueDate: time.Now().UTC().AddDate(0, 0, 3),
	}
	assignmentRepo.submissions["sub-1"] = &models.Submission{
		ID: "sub-1", AssignmentID: "done", StudentID: "s1", SubmittedAt: time.Now().UTC(),
	}

	svc := NewStudentService(
		&studentClassesMock{mockClassAccess: classes},
		&studentAttendanceMock{repo: newMockAttendanceRepo()},
		&studentAssignmentsMock{repo: assignmentRepo, enrolledClasses: 1},
		&studentNotificationsMock{},
		nil, time.Minute, zap.NewNop(),
	)

	all, _, err := svc.Assignments(context.Background(), "s1", false, 1, 20)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, item := range all {
		if item.AssignmentID == "past" {
			assert.True(t, item.Overdue)
		} else {
			assert.False(t, item.Overdue)
		}
	}

	// The pending filter runs before pagination: with a page of one the
	// first page must still hold the unsubmitted assignment even though
	// the submitted one sorts first, and the total counts pending only.
	pending, pagination, err := svc.Assignments(context.Background(), "s1", true, 1, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "past", pending[0].AssignmentID)
	assert.True(t, pending[0].Overdue)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.False(t, pagination.HasNext)
}
