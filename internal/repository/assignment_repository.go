package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/klaslab/school-api/internal/models"
)

// AssignmentRepository provides database access for assignments and
// submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new instance of AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, class_id, title, description, due_date, created_by_teacher_id, created_at, updated_at`

// FindByID returns an assignment by identifier.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE id = $1 LIMIT 1`, assignmentColumns)
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO assignments (id, class_id, title, description, due_date, created_by_teacher_id, created_at, updated_at)
VALUES (:id, :class_id, :title, :description, :due_date, :created_by_teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update updates mutable fields of an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET title = :title, description = :description, due_date = :due_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment. Callers must check HasSubmissions first;
// the foreign key from submissions is the backstop.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// HasSubmissions reports whether any submission references the
// assignment.
func (r *AssignmentRepository) HasSubmissions(ctx context.Context, assignmentID string) (bool, error) {
	const query = `SELECT 1 FROM submissions WHERE assignment_id = $1 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, assignmentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check submissions: %w", err)
	}
	return true, nil
}

// ListByClass returns the assignments of a class with derived
// submission counts.
func (r *AssignmentRepository) ListByClass(ctx context.Context, classID string, page, pageSize int) ([]models.AssignmentDetail, int, error) {
	page, pageSize = models.NormalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT a.id, a.class_id, a.title, a.description, a.due_date, a.created_by_teacher_id, a.created_at, a.updated_at,
		cl.name AS class_name, t.name AS created_by_teacher_name,
		COUNT(s.id) AS total_submissions,
		COUNT(s.id) FILTER (WHERE s.grade IS NOT NULL) AS graded_submissions,
		COUNT(s.id) FILTER (WHERE s.grade IS NULL) AS pending_submissions
	FROM assignments a
	JOIN classes cl ON cl.id = a.class_id
	JOIN users t ON t.id = a.created_by_teacher_id
	LEFT JOIN submissions s ON s.assignment_id = a.id
	WHERE a.class_id = $1
	GROUP BY a.id, cl.name, t.name
	ORDER BY a.due_date DESC LIMIT %d OFFSET %d`, pageSize, offset)

	var assignments []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &assignments, listQuery, classID); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	const countQuery = `SELECT COUNT(*) FROM assignments WHERE class_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, classID); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}

	return assignments, total, nil
}

// CreateSubmission inserts a submission. The unique index on
// (assignment_id, student_id) rejects a second attempt.
func (r *AssignmentRepository) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO submissions (id, assignment_id, student_id, file_url, submitted_at, grade, remarks, graded_by_teacher_id, graded_at)
VALUES (:id, :assignment_id, :student_id, :file_url, :submitted_at, :grade, :remarks, :graded_by_teacher_id, :graded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindSubmission returns a submission by identifier.
func (r *AssignmentRepository) FindSubmission(ctx context.Context, id string) (*models.Submission, error) {
	const query = `SELECT id, assignment_id, student_id, file_url, submitted_at, grade, remarks, graded_by_teacher_id, graded_at
	FROM submissions WHERE id = $1 LIMIT 1`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &sub, nil
}

// SubmissionExists checks whether the student already submitted for the
// assignment.
func (r *AssignmentRepository) SubmissionExists(ctx context.Context, assignmentID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM submissions WHERE assignment_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, assignmentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check submission: %w", err)
	}
	return true, nil
}

// GradeSubmission records or overwrites a grade.
func (r *AssignmentRepository) GradeSubmission(ctx context.Context, id string, grade float64, remarks *string, teacherID string, gradedAt time.Time) error {
	const query = `UPDATE submissions SET grade = $2, remarks = $3, graded_by_teacher_id = $4, graded_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, grade, remarks, teacherID, gradedAt); err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	return nil
}

// ListSubmissions returns the submissions of an assignment with
// student lookups.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	const query = `SELECT s.id, s.assignment_id, s.student_id, s.file_url, s.submitted_at, s.grade, s.remarks, s.graded_by_teacher_id, s.graded_at,
		a.title AS assignment_title,
		st.name AS student_name, st.email AS student_email,
		g.name AS graded_by_teacher_name
	FROM submissions s
	JOIN assignments a ON a.id = s.assignment_id
	JOIN users st ON st.id = s.student_id
	LEFT JOIN users g ON g.id = s.graded_by_teacher_id
	WHERE s.assignment_id = $1
	ORDER BY s.submitted_at ASC`
	var subs []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &subs, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// ListStudentAssignments returns assignments across every class the
// student is enrolled in, with the student's own submission folded in.
// With pendingOnly set, unsubmitted assignments are selected before the
// LIMIT applies, and the count matches.
func (r *AssignmentRepository) ListStudentAssignments(ctx context.Context, studentID string, pendingOnly bool, page, pageSize int) ([]models.StudentAssignment, int, error) {
	page, pageSize = models.NormalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	pending := ""
	if pendingOnly {
		pending = " WHERE s.id IS NULL"
	}

	listQuery := fmt.Sprintf(`SELECT a.id AS assignment_id, a.title, a.description, a.due_date,
		cl.id AS class_id, cl.name AS class_name, c.code AS course_code, t.name AS teacher_name,
		s.id IS NOT NULL AS submitted, s.submitted_at, s.grade
	FROM assignments a
	JOIN classes cl ON cl.id = a.class_id
	JOIN courses c ON c.id = cl.course_id
	JOIN users t ON t.id = cl.teacher_id
	JOIN enrollments e ON e.class_id = cl.id AND e.student_id = $1
	LEFT JOIN submissions s ON s.assignment_id = a.id AND s.student_id = $1%s
	ORDER BY a.due_date DESC LIMIT %d OFFSET %d`, pending, pageSize, offset)

	var assignments []models.StudentAssignment
	if err := r.db.SelectContext(ctx, &assignments, listQuery, studentID); err != nil {
		return nil, 0, fmt.Errorf("list student assignments: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*)
	FROM assignments a
	JOIN enrollments e ON e.class_id = a.class_id AND e.student_id = $1
	LEFT JOIN submissions s ON s.assignment_id = a.id AND s.student_id = $1%s`, pending)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, studentID); err != nil {
		return nil, 0, fmt.Errorf("count student assignments: %w", err)
	}

	return assignments, total, nil
}

// ListStudentGrades returns the student's graded submissions.
func (r *AssignmentRepository) ListStudentGrades(ctx context.Context, studentID string) ([]models.StudentGrade, error) {
	const query = `SELECT s.assignment_id, a.title AS assignment_title,
		cl.name AS class_name, c.code AS course_code,
		s.submitted_at, s.grade, s.remarks,
		g.name AS graded_by_teacher_name
	FROM submissions s
	JOIN assignments a ON a.id = s.assignment_id
	JOIN classes cl ON cl.id = a.class_id
	JOIN courses c ON c.id = cl.course_id
	JOIN users g ON g.id = s.graded_by_teacher_id
	WHERE s.student_id = $1 AND s.grade IS NOT NULL
	ORDER BY s.graded_at DESC`
	var grades []models.StudentGrade
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}

// DashboardCounts groups the aggregate numbers feeding the student
// dashboard.
type DashboardCounts struct {
	EnrolledClasses    int     `db:"enrolled_classes"`
	TotalAssignments   int     `db:"total_assignments"`
	PendingAssignments int     `db:"pending_assignments"`
	GradedSubmissions  int     `db:"graded_submissions"`
	AverageGrade       float64 `db:"average_grade"`
}

// StudentDashboardCounts aggregates the enrollment, assignment and
// grade numbers for one student.
func (r *AssignmentRepository) StudentDashboardCounts(ctx context.Context, studentID string) (*DashboardCounts, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM enrollments e WHERE e.student_id = $1) AS enrolled_classes,
		(SELECT COUNT(*) FROM assignments a JOIN enrollments e ON e.class_id = a.class_id AND e.student_id = $1) AS total_assignments,
		(SELECT COUNT(*) FROM assignments a
			JOIN enrollments e ON e.class_id = a.class_id AND e.student_id = $1
			LEFT JOIN submissions s ON s.assignment_id = a.id AND s.student_id = $1
			WHERE s.id IS NULL) AS pending_assignments,
		(SELECT COUNT(*) FROM submissions s WHERE s.student_id = $1 AND s.grade IS NOT NULL) AS graded_submissions,
		COALESCE((SELECT AVG(s.grade) FROM submissions s WHERE s.student_id = $1 AND s.grade IS NOT NULL), 0) AS average_grade`
	var counts DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query, studentID); err != nil {
		return nil, fmt.Errorf("student dashboard counts: %w", err)
	}
	return &counts, nil
}
