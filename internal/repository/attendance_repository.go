package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/klaslab/school-api/internal/models"
)

// AttendanceRepository provides database access for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates a new instance of AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceUpsert = `INSERT INTO attendance (id, class_id, student_id, date, status, marked_by_teacher_id, marked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (class_id, student_id, date)
DO UPDATE SET status = EXCLUDED.status, marked_by_teacher_id = EXCLUDED.marked_by_teacher_id, marked_at = EXCLUDED.marked_at`

// Upsert writes one attendance row, overwriting the status if the
// (class, student, date) key already exists.
func (r *AttendanceRepository) Upsert(ctx context.Context, att *models.Attendance) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	att.Date = models.DateOnly(att.Date)
	if att.MarkedAt.IsZero() {
		att.MarkedAt = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, attendanceUpsert,
		att.ID, att.ClassID, att.StudentID, att.Date, att.Status, att.MarkedByTeacherID, att.MarkedAt); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// BulkUpsert writes a batch of attendance rows in one transaction.
// Either every row lands or none does.
func (r *AttendanceRepository) BulkUpsert(ctx context.Context, records []models.Attendance) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk attendance: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for i := range records {
		att := &records[i]
		if att.ID == "" {
			att.ID = uuid.NewString()
		}
		att.Date = models.DateOnly(att.Date)
		if att.MarkedAt.IsZero() {
			att.MarkedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, attendanceUpsert,
			att.ID, att.ClassID, att.StudentID, att.Date, att.Status, att.MarkedByTeacherID, att.MarkedAt); err != nil {
			return fmt.Errorf("bulk upsert attendance: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk attendance: %w", err)
	}
	committed = true
	return nil
}

// List returns attendance records matching the filter with total count.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	baseQuery := `FROM attendance a
	JOIN classes cl ON cl.id = a.class_id
	JOIN users s ON s.id = a.student_id
	JOIN users t ON t.id = a.marked_by_teacher_id
	WHERE 1=1`
	var args []interface{}

	if filter.ClassID != "" {
		baseQuery += fmt.Sprintf(" AND a.class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.StudentID != "" {
		baseQuery += fmt.Sprintf(" AND a.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.FromDate != nil {
		baseQuery += fmt.Sprintf(" AND a.date >= $%d", len(args)+1)
		args = append(args, models.DateOnly(*filter.FromDate))
	}
	if filter.ToDate != nil {
		baseQuery += fmt.Sprintf(" AND a.date <= $%d", len(args)+1)
		args = append(args, models.DateOnly(*filter.ToDate))
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND a.status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}

	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT a.id, a.class_id, a.student_id, a.date, a.status, a.marked_by_teacher_id, a.marked_at,
		cl.name AS class_name, s.name AS student_name, t.name AS marked_by_teacher_name
	%s ORDER BY a.date DESC, s.name ASC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}

	return records, total, nil
}

// ListByClassAndDate returns the full sheet for one class session.
func (r *AttendanceRepository) ListByClassAndDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT a.id, a.class_id, a.student_id, a.date, a.status, a.marked_by_teacher_id, a.marked_at,
		cl.name AS class_name, s.name AS student_name, t.name AS marked_by_teacher_name
	FROM attendance a
	JOIN classes cl ON cl.id = a.class_id
	JOIN users s ON s.id = a.student_id
	JOIN users t ON t.id = a.marked_by_teacher_id
	WHERE a.class_id = $1 AND a.date = $2
	ORDER BY s.name ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, classID, models.DateOnly(date)); err != nil {
		return nil, fmt.Errorf("list attendance sheet: %w", err)
	}
	return records, nil
}

// Counts aggregates raw attendance totals for a class.
func (r *AttendanceRepository) Counts(ctx context.Context, classID string) (*models.AttendanceCounts, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM enrollments e WHERE e.class_id = $1) AS total_students,
		COUNT(DISTINCT a.date) AS total_sessions,
		COUNT(a.id) AS total_records,
		COUNT(a.id) FILTER (WHERE a.status = 'PRESENT') AS total_present,
		COUNT(a.id) FILTER (WHERE a.status = 'ABSENT') AS total_absent,
		COUNT(a.id) FILTER (WHERE a.status = 'LATE') AS total_late
	FROM attendance a
	WHERE a.class_id = $1`
	var counts models.AttendanceCounts
	if err := r.db.GetContext(ctx, &counts, query, classID); err != nil {
		return nil, fmt.Errorf("attendance counts: %w", err)
	}
	return &counts, nil
}

// StudentCounts aggregates one student's attendance across all classes.
func (r *AttendanceRepository) StudentCounts(ctx context.Context, studentID string) (*models.AttendanceCounts, error) {
	const query = `SELECT
		0 AS total_students,
		COUNT(DISTINCT (a.class_id, a.date)) AS total_sessions,
		COUNT(a.id) AS total_records,
		COUNT(a.id) FILTER (WHERE a.status = 'PRESENT') AS total_present,
		COUNT(a.id) FILTER (WHERE a.status = 'ABSENT') AS total_absent,
		COUNT(a.id) FILTER (WHERE a.status = 'LATE') AS total_late
	FROM attendance a
	WHERE a.student_id = $1`
	var counts models.AttendanceCounts
	if err := r.db.GetContext(ctx, &counts, query, studentID); err != nil {
		return nil, fmt.Errorf("student attendance counts: %w", err)
	}
	return &counts, nil
}

// ListByStudent returns a student's own attendance history, optionally
// scoped to one class.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID, classID string, page, pageSize int) ([]models.AttendanceRecord, int, error) {
	filter := models.AttendanceFilter{
		StudentID: studentID,
		ClassID:   classID,
		Page:      page,
		PageSize:  pageSize,
	}
	return r.List(ctx, filter)
}
