package models

import "time"

// Enrollment registers a student into a class. Unique per
// (student_id, class_id).
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail enriches an enrollment with student and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	ClassName    string `db:"class_name" json:"class_name"`
}

// StudentClassDetail is the student-facing view of an enrolled class.
type StudentClassDetail struct {
	ClassID     string    `db:"class_id" json:"class_id"`
	ClassName   string    `db:"class_name" json:"class_name"`
	CourseCode  string    `db:"course_code" json:"course_code"`
	CourseName  string    `db:"course_name" json:"course_name"`
	Credits     int       `db:"credits" json:"credits"`
	TeacherName string    `db:"teacher_name" json:"teacher_name"`
	Semester    string    `db:"semester" json:"semester"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	Active      bool      `db:"active" json:"active"`
	EnrolledAt  time.Time `db:"enrolled_at" json:"enrolled_at"`
}
