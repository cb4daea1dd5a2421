package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/models"
	appErrors "github.com/klaslab/school-api/pkg/errors"
)

// mockClassRepo layers the full class repository surface on top of
// mockClassAccess so class and attendance services can share state.
type mockClassRepo struct {
	*mockClassAccess
	nextID    int
	enrollErr error
}

func newMockClassRepo() *mockClassRepo {
	return &mockClassRepo{mockClassAccess: newMockClassAccess()}
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return class, nil
}

func (m *mockClassRepo) FindDetail(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.ClassDetail{Class: *class, EnrolledCount: len(m.enrollments[id])}, nil
}

func (m *mockClassRepo) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		m.nextID++
		class.ID = fmt.Sprintf("class-%d", m.nextID)
	}
	m.classes[class.ID] = class
	return nil
}

func (m *mockClassRepo) Update(ctx context.Context, class *models.Class) error {
	m.classes[class.ID] = class
	return nil
}

func (m *mockClassRepo) Deactivate(ctx context.Context, id string) error {
	class, ok := m.classes[id]
	if !ok {
		return sql.ErrNoRows
	}
	class.Active = false
	return nil
}

func (m *mockClassRepo) ListByTeacher(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	var result []models.ClassDetail
	for _, class := range m.classes {
		if class.TeacherID == filter.TeacherID {
			result = append(result, models.ClassDetail{Class: *class})
		}
	}
	return result, len(result), nil
}

func (m *mockClassRepo) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if m.enrollErr != nil {
		return m.enrollErr
	}
	if m.enrollments[enrollment.ClassID][enrollment.StudentID] {
		return &pq.Error{Code: "23505"}
	}
	m.enroll(enrollment.ClassID, enrollment.StudentID)
	if enrollment.ID == "" {
		enrollment.ID = "e-" + enrollment.StudentID
	}
	return nil
}

func (m *mockClassRepo) ListClassStudents(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	var result []models.EnrollmentDetail
	for studentID := range m.enrollments[classID] {
		result = append(result, models.EnrollmentDetail{Enrollment: models.Enrollment{ClassID: classID, StudentID: studentID}})
	}
	return result, nil
}

type mockCourseLookup struct {
	courses map[string]*models.Course
}

func (m *mockCourseLookup) FindByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return course, nil
}

func newClassService(repo *mockClassRepo) *ClassService {
	courses := &mockCourseLookup{courses: map[string]*models.Course{
		"math101":  {ID: "math101", Name: "Calculus", Code: "MATH101", Active: true},
		"retired1": {ID: "retired1", Name: "Latin", Code: "LAT100", Active: false},
	}}
	users := &mockUserLookup{users: map[string]*models.User{
		"s1": {ID: "s1", Name: "Student One", Email: "s1@example.com", Role: models.RoleStudent, Active: true},
		"s2": {ID: "s2", Name: "Student Two", Email: "s2@example.com", Role: models.RoleStudent, Active: false},
		"t2": {ID: "t2", Name: "Other Teacher", Email: "t2@example.com", Role: models.RoleTeacher, Active: true},
	}}
	return NewClassService(repo, courses, users, nil, validator.New(), zap.NewNop())
}

func TestCreateClassInactiveCourse(t *testing.T) {
	svc := newClassService(newMockClassRepo())

	_, err := svc.Create(context.Background(), "t1", CreateClassRequest{
		CourseID: "retired1", Name: "Latin A", Semester: "2026-FALL",
		StartDate: "2026-09-01", EndDate: "2026-12-18",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOperation.Code, appErrors.FromError(err).Code)
}

func TestCreateClassEndBeforeStart(t *testing.T) {
	svc := newClassService(newMockClassRepo())

	_, err := svc.Create(context.Background(), "t1", CreateClassRequest{
		CourseID: "math101", Name: "Calc A", Semester: "2026-FALL",
		StartDate: "2026-09-01", EndDate: "2026-08-01",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollRejectsInactiveStudent(t *testing.T) {
	repo := newMockClassRepo()
	svc := newClassService(repo)

	class, err := svc.Create(context.Background(), "t1", CreateClassRequest{
		CourseID: "math101", Name: "Calc A", Semester: "2026-FALL",
		StartDate: "2026-09-01", EndDate: "2026-12-18",
	})
	require.NoError(t, err)

	_, err = svc.EnrollStudent(context.Background(), class.ID, "t1", EnrollStudentRequest{StudentID: "s2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.EnrollStudent(context.Background(), class.ID, "t1", EnrollStudentRequest{StudentID: "t2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollDuplicateConflicts(t *testing.T) {
	repo := newMockClassRepo()
	svc := newClassService(repo)

	class, err := svc.Create(context.Background(), "t1", CreateClassRequest{
		CourseID: "math101", Name: "Calc A", Semester: "2026-FALL",
		StartDate: "2026-09-01", EndDate: "2026-12-18",
	})
	require.NoError(t, err)

	_, err = svc.EnrollStudent(context.Background(), class.ID, "t1", EnrollStudentRequest{StudentID: "s1"})
	require.NoError(t, err)

	_, err = svc.EnrollStudent(context.Background(), class.ID, "t1", EnrollStudentRequest{StudentID: "s1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDeactivateClassTwice(t *testing.T) {
	repo := newMockClassRepo()
	svc := newClassService(repo)

	class, err := svc.Create(context.Background(), "t1", CreateClassRequest{
		CourseID: "math101", Name: "Calc A", Semester: "2026-FALL",
		StartDate: "2026-09-01", EndDate: "2026-12-18",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), class.ID, "t1"))

	err = svc.Deactivate(context.Background(), class.ID, "t1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOperation.Code, appErrors.FromError(err).Code)
}

func TestEnrollIntoInactiveClass(t *testing.T) {
	repo := newMockClassRepo()
	svc := newClassService(repo)

	class, err := svc.Create(context.Background(), "t1", CreateClassRequest{
		CourseID: "math101", Name: "Calc A", Semester: "2026-FALL",
		StartDate: "2026-09-01", EndDate: "2026-12-18",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(context.Background(), class.ID, "t1"))

	_, err = svc.EnrollStudent(context.Background(), class.ID, "t1", EnrollStudentRequest{StudentID: "s1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

// TestTeacherWalk exercises the whole teacher flow: open a class,
// enroll students, mark a session and read the summary back.
func TestTeacherWalk(t *testing.T) {
	repo := newMockClassRepo()
	classSvc := newClassService(repo)
	attendanceSvc := newAttendanceService(newMockAttendanceRepo(), repo.mockClassAccess)

	class, err := classSvc.Create(context.Background(), "t1", CreateClassRequest{
		CourseID: "math101", Name: "Calc A", Semester: "2026-FALL",
		StartDate: "2026-09-01", EndDate: "2026-12-18",
	})
	require.NoError(t, err)

	_, err = classSvc.EnrollStudent(context.Background(), class.ID, "t1", EnrollStudentRequest{StudentID: "s1"})
	require.NoError(t, err)
	repo.enroll(class.ID, "s3")

	roster, err := classSvc.Roster(context.Background(), class.ID, "t1")
	require.NoError(t, err)
	assert.Len(t, roster, 2)

	sheet, err := attendanceSvc.MarkBulk(context.Background(), class.ID, "t1", BulkMarkAttendanceRequest{
		Date: "2026-09-07",
		Records: []BulkAttendanceEntry{
			{StudentID: "s1", Status: "PRESENT"},
			{StudentID: "s3", Status: "ABSENT"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, sheet, 2)

	summary, err := attendanceSvc.ClassSummary(context.Background(), class.ID, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalSessions)
	assert.InDelta(t, 50.0, summary.AttendancePercentage, 0.001)
}
