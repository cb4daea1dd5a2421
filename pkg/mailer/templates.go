package mailer

import "fmt"

// EnrollmentEmail renders the class enrollment notification body.
func EnrollmentEmail(studentName, className, courseName, teacherName string) (subject, body string) {
	subject = fmt.Sprintf("Enrolled in %s", className)
	body = fmt.Sprintf(`<html><body>
<h2>Welcome to %s!</h2>
<p>Dear %s,</p>
<p>You have been enrolled in a new class.</p>
<ul>
<li><strong>Class:</strong> %s</li>
<li><strong>Course:</strong> %s</li>
<li><strong>Teacher:</strong> %s</li>
</ul>
<p>Log in to view class materials, assignments and your attendance.</p>
<p>School Management System &mdash; this is an automated email, please do not reply.</p>
</body></html>`, className, studentName, className, courseName, teacherName)
	return subject, body
}

// GradedEmail renders the assignment graded notification body.
func GradedEmail(studentName, assignmentTitle string, grade float64) (subject, body string) {
	subject = fmt.Sprintf("Assignment Graded: %s", assignmentTitle)
	body = fmt.Sprintf(`<html><body>
<h2>Assignment Graded</h2>
<p>Dear %s,</p>
<p>Your submission for <strong>%s</strong> has been graded.</p>
<p style="font-size:24px"><strong>%.2f%%</strong></p>
<p>Log in to view detailed feedback and remarks.</p>
<p>School Management System &mdash; this is an automated email, please do not reply.</p>
</body></html>`, studentName, assignmentTitle, grade)
	return subject, body
}
