package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klaslab/school-api/internal/models"
)

func TestAttendanceUpsertNormalizesDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("INSERT INTO attendance").WillReturnResult(sqlmock.NewResult(1, 1))

	att := &models.Attendance{
		ClassID:           "c1",
		StudentID:         "s1",
		Date:              time.Date(2026, 3, 10, 14, 30, 45, 0, time.UTC),
		Status:            models.AttendancePresent,
		MarkedByTeacherID: "t1",
	}
	err := repo.Upsert(context.Background(), att)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), att.Date)
	assert.NotEmpty(t, att.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertRunsInOneTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	records := []models.Attendance{
		{ClassID: "c1", StudentID: "s1", Date: time.Now(), Status: models.AttendancePresent, MarkedByTeacherID: "t1"},
		{ClassID: "c1", StudentID: "s2", Date: time.Now(), Status: models.AttendanceLate, MarkedByTeacherID: "t1"},
	}
	err := repo.BulkUpsert(context.Background(), records)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO attendance").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO attendance").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	records := []models.Attendance{
		{ClassID: "c1", StudentID: "s1", Date: time.Now(), Status: models.AttendancePresent, MarkedByTeacherID: "t1"},
		{ClassID: "c1", StudentID: "s2", Date: time.Now(), Status: models.AttendanceAbsent, MarkedByTeacherID: "t1"},
	}
	err := repo.BulkUpsert(context.Background(), records)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	err := repo.BulkUpsert(context.Background(), nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"total_students", "total_sessions", "total_records", "total_present", "total_absent", "total_late"}).
		AddRow(10, 4, 40, 30, 6, 4)
	mock.ExpectQuery("SELECT").WithArgs("c1").WillReturnRows(rows)

	counts, err := repo.Counts(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 10, counts.TotalStudents)
	assert.Equal(t, 30, counts.TotalPresent)
	assert.Equal(t, 4, counts.TotalLate)
	assert.NoError(t, mock.ExpectationsWereMet())
}
