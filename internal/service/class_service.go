package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/models"
	appErrors "github.com/klaslab/school-api/pkg/errors"
	"github.com/klaslab/school-api/pkg/mailer"
)

type classRepository interface {
	classOwnershipRepository
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetail(ctx context.Context, id string) (*models.ClassDetail, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Deactivate(ctx context.Context, id string) error
	ListByTeacher(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error
	ListClassStudents(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
}

type classCourseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type classUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateClassRequest carries the class creation payload.
type CreateClassRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	Name      string `json:"name" validate:"required,max=150"`
	Semester  string `json:"semester" validate:"required,max=30"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// UpdateClassRequest carries editable class fields.
type UpdateClassRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=150"`
	Semester  *string `json:"semester" validate:"omitempty,max=30"`
	StartDate *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

// EnrollStudentRequest carries the enrollment payload.
type EnrollStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// ClassService provides the teacher-facing class management use cases.
type ClassService struct {
	repo      classRepository
	courses   classCourseLookup
	users     classUserLookup
	mail      mailer.Mailer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService instance.
func NewClassService(repo classRepository, courses classCourseLookup, users classUserLookup, mail mailer.Mailer, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{repo: repo, courses: courses, users: users, mail: mail, validator: validate, logger: logger}
}

// Create opens a new class on an active course, owned by the calling
// teacher.
func (s *ClassService) Create(ctx context.Context, teacherID string, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidOperation, "course is inactive")
	}

	startDate, endDate, err := parseClassDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	class := &models.Class{
		CourseID:  req.CourseID,
		TeacherID: teacherID,
		Name:      req.Name,
		Semester:  req.Semester,
		StartDate: startDate,
		EndDate:   endDate,
		Active:    true,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Get returns one of the teacher's classes with course and roster info.
func (s *ClassService) Get(ctx context.Context, classID, teacherID string) (*models.ClassDetail, error) {
	if _, err := requireOwnedClass(ctx, s.repo, classID, teacherID, false); err != nil {
		return nil, err
	}
	detail, err := s.repo.FindDetail(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return detail, nil
}

// Update applies edits to one of the teacher's classes.
func (s *ClassService) Update(ctx context.Context, classID, teacherID string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := requireOwnedClass(ctx, s.repo, classID, teacherID, false)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		class.Name = *req.Name
	}
	if req.Semester != nil {
		class.Semester = *req.Semester
	}
	start := class.StartDate.Format("2006-01-02")
	end := class.EndDate.Format("2006-01-02")
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	if req.StartDate != nil || req.EndDate != nil {
		startDate, endDate, err := parseClassDates(start, end)
		if err != nil {
			return nil, err
		}
		class.StartDate = startDate
		class.EndDate = endDate
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Deactivate closes one of the teacher's classes.
func (s *ClassService) Deactivate(ctx context.Context, classID, teacherID string) error {
	class, err := requireOwnedClass(ctx, s.repo, classID, teacherID, false)
	if err != nil {
		return err
	}
	if !class.Active {
		return appErrors.Clone(appErrors.ErrInvalidOperation, "class is already inactive")
	}
	if err := s.repo.Deactivate(ctx, classID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate class")
	}
	return nil
}

// List returns the teacher's classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, *models.Pagination, error) {
	classes, total, err := s.repo.ListByTeacher(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page, pageSize := models.NormalizePage(filter.Page, filter.PageSize)
	return classes, models.NewPagination(page, pageSize, total), nil
}

// EnrollStudent registers an active student into one of the teacher's
// active classes and sends a best-effort enrollment email.
func (s *ClassService) EnrollStudent(ctx context.Context, classID, teacherID string, req EnrollStudentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	class, err := requireOwnedClass(ctx, s.repo, classID, teacherID, true)
	if err != nil {
		return nil, err
	}

	student, err := s.users.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent || !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user is not an active student")
	}

	enrollment := &models.Enrollment{ClassID: classID, StudentID: student.ID}
	if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already enrolled in this class")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll student")
	}

	s.sendEnrollmentEmail(ctx, class, student)
	return enrollment, nil
}

// Roster returns the enrolled students of one of the teacher's classes.
func (s *ClassService) Roster(ctx context.Context, classID, teacherID string) ([]models.EnrollmentDetail, error) {
	if _, err := requireOwnedClass(ctx, s.repo, classID, teacherID, false); err != nil {
		return nil, err
	}
	roster, err := s.repo.ListClassStudents(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	return roster, nil
}

func (s *ClassService) sendEnrollmentEmail(ctx context.Context, class *models.Class, student *models.User) {
	if s.mail == nil {
		return
	}
	courseName := ""
	if course, err := s.courses.FindByID(ctx, class.CourseID); err == nil {
		courseName = course.Name
	}
	teacherName := ""
	if teacher, err := s.users.FindByID(ctx, class.TeacherID); err == nil {
		teacherName = teacher.Name
	}
	subject, body := mailer.EnrollmentEmail(student.Name, class.Name, courseName, teacherName)
	s.mail.Send(student.Email, student.Name, subject, body)
}

func parseClassDates(start, end string) (time.Time, time.Time, error) {
	startDate, err := time.ParseInLocation("2006-01-02", start, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
	}
	endDate, err := time.ParseInLocation("2006-01-02", end, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
	}
	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	return startDate, endDate, nil
}
