package models

import "time"

// Department groups courses under a named faculty unit.
type Department struct {
	ID                 string    `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Description        string    `db:"description" json:"description"`
	HeadOfDepartmentID *string   `db:"head_of_department_id" json:"head_of_department_id,omitempty"`
	Active             bool      `db:"active" json:"active"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// DepartmentDetail enriches a department with read-side lookups.
type DepartmentDetail struct {
	Department
	HeadOfDepartmentName *string `db:"head_of_department_name" json:"head_of_department_name,omitempty"`
	ActiveCourses        int     `db:"active_courses" json:"active_courses"`
}

// DepartmentFilter provides filters for listing departments.
type DepartmentFilter struct {
	Search   string
	Page     int
	PageSize int
}
