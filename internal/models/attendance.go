package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "PRESENT"
	AttendanceAbsent  AttendanceStatus = "ABSENT"
	AttendanceLate    AttendanceStatus = "LATE"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// DateOnly strips the time-of-day component, keeping the UTC calendar
// date. Attendance rows are keyed by this value.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Attendance is one student's status in one class on one calendar date.
// Unique per (class_id, student_id, date); marking again overwrites.
type Attendance struct {
	ID                string           `db:"id" json:"id"`
	ClassID           string           `db:"class_id" json:"class_id"`
	StudentID         string           `db:"student_id" json:"student_id"`
	Date              time.Time        `db:"date" json:"date"`
	Status            AttendanceStatus `db:"status" json:"status"`
	MarkedByTeacherID string           `db:"marked_by_teacher_id" json:"marked_by_teacher_id"`
	MarkedAt          time.Time        `db:"marked_at" json:"marked_at"`
}

// AttendanceRecord extends the row with read-side lookups.
type AttendanceRecord struct {
	Attendance
	ClassName           string `db:"class_name" json:"class_name"`
	StudentName         string `db:"student_name" json:"student_name"`
	MarkedByTeacherName string `db:"marked_by_teacher_name" json:"marked_by_teacher_name"`
}

// AttendanceFilter scopes listing queries. All filters are conjunctive
// and dates compare on the calendar date only.
type AttendanceFilter struct {
	ClassID   string
	StudentID string
	FromDate  *time.Time
	ToDate    *time.Time
	Status    *AttendanceStatus
	Page      int
	PageSize  int
}

// AttendanceCounts aggregates raw totals for a class.
type AttendanceCounts struct {
	TotalStudents int `db:"total_students"`
	TotalSessions int `db:"total_sessions"`
	TotalRecords  int `db:"total_records"`
	TotalPresent  int `db:"total_present"`
	TotalAbsent   int `db:"total_absent"`
	TotalLate     int `db:"total_late"`
}

// AttendanceSummary is the teacher-facing aggregate for a class.
type AttendanceSummary struct {
	ClassID              string  `json:"class_id"`
	ClassName            string  `json:"class_name"`
	TotalStudents        int     `json:"total_students"`
	TotalSessions        int     `json:"total_sessions"`
	TotalPresent         int     `json:"total_present"`
	TotalAbsent          int     `json:"total_absent"`
	TotalLate            int     `json:"total_late"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}
