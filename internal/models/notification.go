package models

import "time"

// Notification is an in-app message, either individually targeted
// (recipient_id set) or broadcast to a whole role (recipient_id null,
// recipient_role set).
type Notification struct {
	ID            string    `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	Message       string    `db:"message" json:"message"`
	RecipientID   *string   `db:"recipient_id" json:"recipient_id,omitempty"`
	RecipientRole *UserRole `db:"recipient_role" json:"recipient_role,omitempty"`
	Read          bool      `db:"read" json:"read"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// StudentDashboard aggregates a student's home screen counters.
type StudentDashboard struct {
	EnrolledClasses      int     `json:"enrolled_classes"`
	TotalAssignments     int     `json:"total_assignments"`
	PendingAssignments   int     `json:"pending_assignments"`
	GradedSubmissions    int     `json:"graded_submissions"`
	AverageGrade         float64 `json:"average_grade"`
	AttendancePercentage float64 `json:"attendance_percentage"`
	UnreadNotifications  int     `json:"unread_notifications"`
}
