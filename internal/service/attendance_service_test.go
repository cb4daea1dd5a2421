package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/models"
	appErrors "github.com/klaslab/school-api/pkg/errors"
)

type mockClassAccess struct {
	classes     map[string]*models.Class
	enrollments map[string]map[string]bool
}

func newMockClassAccess() *mockClassAccess {
	return &mockClassAccess{
		classes:     make(map[string]*models.Class),
		enrollments: make(map[string]map[string]bool),
	}
}

func (m *mockClassAccess) addClass(class *models.Class) {
	m.classes[class.ID] = class
}

func (m *mockClassAccess) enroll(classID, studentID string) {
	if m.enrollments[classID] == nil {
		m.enrollments[classID] = make(map[string]bool)
	}
	m.enrollments[classID][studentID] = true
}

func (m *mockClassAccess) FindOwnedByTeacher(ctx context.Context, classID, teacherID string, activeOnly bool) (*models.Class, error) {
	class, ok := m.classes[classID]
	if !ok || class.TeacherID != teacherID {
		return nil, sql.ErrNoRows
	}
	if activeOnly && !class.Active {
		return nil, sql.ErrNoRows
	}
	return class, nil
}

func (m *mockClassAccess) IsStudentEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	return m.enrollments[classID][studentID], nil
}

type mockAttendanceRepo struct {
	records map[string]*models.Attendance
	bulkErr error
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{records: make(map[string]*models.Attendance)}
}

func attendanceKey(att *models.Attendance) string {
	return fmt.Sprintf("%s|%s|%s", att.ClassID, att.StudentID, att.Date.Format("2006-01-02"))
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, att *models.Attendance) error {
	att.Date = models.DateOnly(att.Date)
	copied := *att
	m.records[attendanceKey(att)] = &copied
	return nil
}

func (m *mockAttendanceRepo) BulkUpsert(ctx context.Context, records []models.Attendance) error {
	if m.bulkErr != nil {
		return m.bulkErr
	}
	for i := range records {
		if err := m.Upsert(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	var result []models.AttendanceRecord
	for _, att := range m.records {
		if filter.ClassID != "" && att.ClassID != filter.ClassID {
			continue
		}
		if filter.StudentID != "" && att.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != nil && att.Status != *filter.Status {
			continue
		}
		result = append(result, models.AttendanceRecord{Attendance: *att})
	}
	return result, len(result), nil
}

func (m *mockAttendanceRepo) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	date = models.DateOnly(date)
	var result []models.AttendanceRecord
	for _, att := range m.records {
		if att.ClassID == classID && att.Date.Equal(date) {
			result = append(result, models.AttendanceRecord{Attendance: *att})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

func (m *mockAttendanceRepo) Counts(ctx context.Context, classID string) (*models.AttendanceCounts, error) {
	counts := &models.AttendanceCounts{}
	sessions := make(map[string]bool)
	for _, att := range m.records {
		if att.ClassID != classID {
			continue
		}
		counts.TotalRecords++
		sessions[att.Date.Format("2006-01-02")] = true
		switch att.Status {
		case models.AttendancePresent:
			counts.TotalPresent++
		case models.AttendanceAbsent:
			counts.TotalAbsent++
		case models.AttendanceLate:
			counts.TotalLate++
		}
	}
	counts.TotalSessions = len(sessions)
	return counts, nil
}

func newAttendanceService(repo *mockAttendanceRepo, classes *mockClassAccess) *AttendanceService {
	return NewAttendanceService(repo, classes, nil, time.Minute, validator.New(), zap.NewNop())
}

func activeClass(id, teacherID string) *models.Class {
	return &models.Class{ID: id, TeacherID: teacherID, Name: "Algebra I", Active: true}
}

func TestMarkSingleOverwrites(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	repo := newMockAttendanceRepo()
	svc := newAttendanceService(repo, classes)

	_, err := svc.MarkSingle(context.Background(), "c1", "t1", MarkAttendanceRequest{
		StudentID: "s1", Date: "2026-03-10", Status: "ABSENT",
	})
	require.NoError(t, err)

	// Marking the same key again replaces the status instead of adding
	// a second row.
	att, err := svc.MarkSingle(context.Background(), "c1", "t1", MarkAttendanceRequest{
		StudentID: "s1", Date: "2026-03-10", Status: "PRESENT",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AttendancePresent, att.Status)
	assert.Len(t, repo.records, 1)
	assert.Equal(t, models.AttendancePresent, repo.records[attendanceKey(att)].Status)
}

func TestMarkSingleForeignClass(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	svc := newAttendanceService(newMockAttendanceRepo(), classes)

	_, err := svc.MarkSingle(context.Background(), "c1", "other-teacher", MarkAttendanceRequest{
		StudentID: "s1", Date: "2026-03-10", Status: "PRESENT",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMarkSingleUnenrolledStudent(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	svc := newAttendanceService(newMockAttendanceRepo(), classes)

	_, err := svc.MarkSingle(context.Background(), "c1", "t1", MarkAttendanceRequest{
		StudentID: "stranger", Date: "2026-03-10", Status: "PRESENT",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMarkBulkRejectsWholeBatch(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	repo := newMockAttendanceRepo()
	svc := newAttendanceService(repo, classes)

	_, err := svc.MarkBulk(context.Background(), "c1", "t1", BulkMarkAttendanceRequest{
		Date: "2026-03-10",
		Records: []BulkAttendanceEntry{
			{StudentID: "s1", Status: "PRESENT"},
			{StudentID: "not-enrolled", Status: "PRESENT"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.records, "no record may land when any entry is invalid")
}

func TestMarkBulkReturnsFullSheet(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	classes.enroll("c1", "s2")
	repo := newMockAttendanceRepo()
	svc := newAttendanceService(repo, classes)

	sheet, err := svc.MarkBulk(context.Background(), "c1", "t1", BulkMarkAttendanceRequest{
		Date: "2026-03-10",
		Records: []BulkAttendanceEntry{
			{StudentID: "s1", Status: "PRESENT"},
			{StudentID: "s2", Status: "LATE"},
		},
	})
	require.NoError(t, err)
	assert.Len(t, sheet, 2)
}

func TestMarkBulkDuplicateStudent(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	svc := newAttendanceService(newMockAttendanceRepo(), classes)

	_, err := svc.MarkBulk(context.Background(), "c1", "t1", BulkMarkAttendanceRequest{
		Date: "2026-03-10",
		Records: []BulkAttendanceEntry{
			{StudentID: "s1", Status: "PRESENT"},
			{StudentID: "s1", Status: "ABSENT"},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestClassSummaryZeroSessions(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	svc := newAttendanceService(newMockAttendanceRepo(), classes)

	summary, err := svc.ClassSummary(context.Background(), "c1", "t1")
	require.NoError(t, err)
	assert.Zero(t, summary.TotalSessions)
	assert.Zero(t, summary.AttendancePercentage)
}

func TestClassSummaryCountsLateAsAttended(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	for _, s := range []string{"s1", "s2", "s3", "s4"} {
		classes.enroll("c1", s)
	}
	repo := newMockAttendanceRepo()
	svc := newAttendanceService(repo, classes)

	_, err := svc.MarkBulk(context.Background(), "c1", "t1", BulkMarkAttendanceRequest{
		Date: "2026-03-10",
		Records: []BulkAttendanceEntry{
			{StudentID: "s1", Status: "PRESENT"},
			{StudentID: "s2", Status: "PRESENT"},
			{StudentID: "s3", Status: "LATE"},
			{StudentID: "s4", Status: "ABSENT"},
		},
	})
	require.NoError(t, err)

	summary, err := svc.ClassSummary(context.Background(), "c1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalSessions)
	assert.InDelta(t, 75.0, summary.AttendancePercentage, 0.001)
}

func TestAttendancePercentageRounding(t *testing.T) {
	assert.InDelta(t, 66.67, attendancePercentage(2, 0, 3), 0.001)
	assert.Zero(t, attendancePercentage(0, 0, 0))
	assert.InDelta(t, 100.0, attendancePercentage(1, 1, 2), 0.001)
}

func TestExportSheetCSV(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	repo := newMockAttendanceRepo()
	svc := newAttendanceService(repo, classes)

	_, err := svc.MarkSingle(context.Background(), "c1", "t1", MarkAttendanceRequest{
		StudentID: "s1", Date: "2026-03-10", Status: "PRESENT",
	})
	require.NoError(t, err)

	data, contentType, err := svc.ExportSheet(context.Background(), "c1", "t1", "2026-03-10", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(data), "PRESENT")
}
