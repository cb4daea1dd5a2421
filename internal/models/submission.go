package models

import "time"

// Submission is a student's one-shot answer to an assignment. Unique
// per (assignment_id, student_id); grading overwrites in place.
type Submission struct {
	ID                string     `db:"id" json:"id"`
	AssignmentID      string     `db:"assignment_id" json:"assignment_id"`
	StudentID         string     `db:"student_id" json:"student_id"`
	FileURL           *string    `db:"file_url" json:"file_url,omitempty"`
	SubmittedAt       time.Time  `db:"submitted_at" json:"submitted_at"`
	Grade             *float64   `db:"grade" json:"grade,omitempty"`
	Remarks           *string    `db:"remarks" json:"remarks,omitempty"`
	GradedByTeacherID *string    `db:"graded_by_teacher_id" json:"graded_by_teacher_id,omitempty"`
	GradedAt          *time.Time `db:"graded_at" json:"graded_at,omitempty"`
}

// Graded reports whether the submission carries a grade.
func (s *Submission) Graded() bool {
	return s.Grade != nil
}

// SubmissionDetail enriches a submission with read-side lookups.
type SubmissionDetail struct {
	Submission
	AssignmentTitle     string  `db:"assignment_title" json:"assignment_title"`
	StudentName         string  `db:"student_name" json:"student_name"`
	StudentEmail        string  `db:"student_email" json:"student_email"`
	GradedByTeacherName *string `db:"graded_by_teacher_name" json:"graded_by_teacher_name,omitempty"`
}

// StudentGrade is the student-facing view of a graded submission.
type StudentGrade struct {
	AssignmentID        string    `db:"assignment_id" json:"assignment_id"`
	AssignmentTitle     string    `db:"assignment_title" json:"assignment_title"`
	ClassName           string    `db:"class_name" json:"class_name"`
	CourseCode          string    `db:"course_code" json:"course_code"`
	SubmittedAt         time.Time `db:"submitted_at" json:"submitted_at"`
	Grade               float64   `db:"grade" json:"grade"`
	Remarks             *string   `db:"remarks" json:"remarks,omitempty"`
	GradedByTeacherName string    `db:"graded_by_teacher_name" json:"graded_by_teacher_name"`
}
