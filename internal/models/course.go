package models

import "time"

// Course is a unit of study offered by a department.
type Course struct {
	ID           string    `db:"id" json:"id"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	Credits      int       `db:"credits" json:"credits"`
	Description  string    `db:"description" json:"description"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches a course with department info.
type CourseDetail struct {
	Course
	DepartmentName string `db:"department_name" json:"department_name"`
	ActiveClasses  int    `db:"active_classes" json:"active_classes"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	DepartmentID string
	Search       string
	Page         int
	PageSize     int
}
