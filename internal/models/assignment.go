package models

import "time"

// Assignment is coursework published to a class by its teacher.
type Assignment struct {
	ID                 string    `db:"id" json:"id"`
	ClassID            string    `db:"class_id" json:"class_id"`
	Title              string    `db:"title" json:"title"`
	Description        string    `db:"description" json:"description"`
	DueDate            time.Time `db:"due_date" json:"due_date"`
	CreatedByTeacherID string    `db:"created_by_teacher_id" json:"created_by_teacher_id"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail enriches an assignment with lookups and derived
// submission counts. Counts are computed, never stored.
type AssignmentDetail struct {
	Assignment
	ClassName           string `db:"class_name" json:"class_name"`
	CreatedByTeacherName string `db:"created_by_teacher_name" json:"created_by_teacher_name"`
	TotalSubmissions    int    `db:"total_submissions" json:"total_submissions"`
	GradedSubmissions   int    `db:"graded_submissions" json:"graded_submissions"`
	PendingSubmissions  int    `db:"pending_submissions" json:"pending_submissions"`
}

// StudentAssignment is the student-facing view of an assignment with
// the caller's own submission state folded in.
type StudentAssignment struct {
	AssignmentID  string     `db:"assignment_id" json:"assignment_id"`
	Title         string     `db:"title" json:"title"`
	Description   string     `db:"description" json:"description"`
	DueDate       time.Time  `db:"due_date" json:"due_date"`
	ClassID       string     `db:"class_id" json:"class_id"`
	ClassName     string     `db:"class_name" json:"class_name"`
	CourseCode    string     `db:"course_code" json:"course_code"`
	TeacherName   string     `db:"teacher_name" json:"teacher_name"`
	Submitted     bool       `db:"submitted" json:"submitted"`
	SubmittedAt   *time.Time `db:"submitted_at" json:"submitted_at,omitempty"`
	Grade         *float64   `db:"grade" json:"grade,omitempty"`
	Overdue       bool       `json:"overdue"`
}
