package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/klaslab/school-api/internal/models"
)

// ClassRepository provides database access for classes and enrollments.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new instance of ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

const classColumns = `id, course_id, teacher_id, name, semester, start_date, end_date, active, created_at, updated_at`

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE id = $1 LIMIT 1`, classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// FindOwnedByTeacher returns the class only when the teacher owns it,
// optionally restricted to active classes. sql.ErrNoRows covers both a
// missing class and someone else's class, so callers cannot tell the
// two apart.
func (r *ClassRepository) FindOwnedByTeacher(ctx context.Context, classID, teacherID string, activeOnly bool) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE id = $1 AND teacher_id = $2`, classColumns)
	if activeOnly {
		query += ` AND active`
	}
	query += ` LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, classID, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find owned class: %w", err)
	}
	return &class, nil
}

// FindDetail returns a class with course and teacher lookups.
func (r *ClassRepository) FindDetail(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `SELECT cl.id, cl.course_id, cl.teacher_id, cl.name, cl.semester, cl.start_date, cl.end_date, cl.active, cl.created_at, cl.updated_at,
		c.name AS course_name, c.code AS course_code, c.credits AS course_credits,
		t.name AS teacher_name,
		(SELECT COUNT(*) FROM enrollments e WHERE e.class_id = cl.id) AS enrolled_count
	FROM classes cl
	JOIN courses c ON c.id = cl.course_id
	JOIN users t ON t.id = cl.teacher_id
	WHERE cl.id = $1 LIMIT 1`
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class detail: %w", err)
	}
	return &detail, nil
}

// Create inserts a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, course_id, teacher_id, name, semester, start_date, end_date, active, created_at, updated_at)
VALUES (:id, :course_id, :teacher_id, :name, :semester, :start_date, :end_date, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update updates mutable fields of a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, semester = :semester, start_date = :start_date, end_date = :end_date, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Deactivate marks a class inactive.
func (r *ClassRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE classes SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate class: %w", err)
	}
	return nil
}

// ListByTeacher returns the teacher's classes with total count.
func (r *ClassRepository) ListByTeacher(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	baseQuery := `FROM classes cl
	JOIN courses c ON c.id = cl.course_id
	JOIN users t ON t.id = cl.teacher_id
	WHERE cl.teacher_id = $1`
	args := []interface{}{filter.TeacherID}

	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND (LOWER(cl.name) LIKE $%d OR LOWER(c.name) LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT cl.id, cl.course_id, cl.teacher_id, cl.name, cl.semester, cl.start_date, cl.end_date, cl.active, cl.created_at, cl.updated_at,
		c.name AS course_name, c.code AS course_code, c.credits AS course_credits,
		t.name AS teacher_name,
		(SELECT COUNT(*) FROM enrollments e WHERE e.class_id = cl.id) AS enrolled_count
	%s ORDER BY cl.start_date DESC, cl.name ASC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}

	return classes, total, nil
}

// CreateEnrollment registers a student into a class. The unique index
// on (student_id, class_id) is the duplicate guard.
func (r *ClassRepository) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, class_id, student_id, enrolled_at)
VALUES (:id, :class_id, :student_id, :enrolled_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// IsStudentEnrolled checks membership of a student in a class.
func (r *ClassRepository) IsStudentEnrolled(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM enrollments WHERE class_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return true, nil
}

// ListClassStudents returns the roster of a class ordered by name.
func (r *ClassRepository) ListClassStudents(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.class_id, e.student_id, e.enrolled_at,
		s.name AS student_name, s.email AS student_email,
		cl.name AS class_name
	FROM enrollments e
	JOIN users s ON s.id = e.student_id
	JOIN classes cl ON cl.id = e.class_id
	WHERE e.class_id = $1
	ORDER BY s.name ASC`
	var roster []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return roster, nil
}

// ListStudentClasses returns the classes a student is enrolled in.
func (r *ClassRepository) ListStudentClasses(ctx context.Context, studentID string) ([]models.StudentClassDetail, error) {
	const query = `SELECT cl.id AS class_id, cl.name AS class_name,
		c.code AS course_code, c.name AS course_name, c.credits,
		t.name AS teacher_name,
		cl.semester, cl.start_date, cl.end_date, cl.active,
		e.enrolled_at
	FROM enrollments e
	JOIN classes cl ON cl.id = e.class_id
	JOIN courses c ON c.id = cl.course_id
	JOIN users t ON t.id = cl.teacher_id
	WHERE e.student_id = $1
	ORDER BY cl.start_date DESC`
	var classes []models.StudentClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, studentID); err != nil {
		return nil, fmt.Errorf("list student classes: %w", err)
	}
	return classes, nil
}

// EnrolledClassIDs returns the ids of every class the student belongs to.
func (r *ClassRepository) EnrolledClassIDs(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT class_id FROM enrollments WHERE student_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrolled class ids: %w", err)
	}
	return ids, nil
}
