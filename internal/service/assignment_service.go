package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/models"
	appErrors "github.com/klaslab/school-api/pkg/errors"
	"github.com/klaslab/school-api/pkg/mailer"
	"github.com/klaslab/school-api/pkg/storage"
)

type assignmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
	HasSubmissions(ctx context.Context, assignmentID string) (bool, error)
	ListByClass(ctx context.Context, classID string, page, pageSize int) ([]models.AssignmentDetail, int, error)
	CreateSubmission(ctx context.Context, sub *models.Submission) error
	FindSubmission(ctx context.Context, id string) (*models.Submission, error)
	SubmissionExists(ctx context.Context, assignmentID, studentID string) (bool, error)
	GradeSubmission(ctx context.Context, id string, grade float64, remarks *string, teacherID string, gradedAt time.Time) error
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error)
}

type fileStore interface {
	Upload(data []byte, folder, originalName string) (string, error)
	Open(fileURL string) (*os.File, error)
}

type downloadSigner interface {
	Generate(submissionID, fileURL string) (string, time.Time, error)
	Parse(token string) (submissionID, fileURL string, expiresAt time.Time, err error)
}

type assignmentUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateAssignmentRequest carries the assignment creation payload.
type CreateAssignmentRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	DueDate     string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// UpdateAssignmentRequest carries editable assignment fields.
type UpdateAssignmentRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	DueDate     *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

// GradeSubmissionRequest carries the grading payload.
type GradeSubmissionRequest struct {
	Grade   float64 `json:"grade" validate:"min=0,max=100"`
	Remarks *string `json:"remarks" validate:"omitempty,max=500"`
}

// UploadLimits bounds submission file uploads.
type UploadLimits struct {
	MaxFileSizeBytes  int64
	AllowedExtensions []string
}

// AssignmentService provides the assignment and submission workflow.
type AssignmentService struct {
	repo      assignmentRepository
	classes   classOwnershipRepository
	users     assignmentUserLookup
	files     fileStore
	signer    downloadSigner
	limits    UploadLimits
	mail      mailer.Mailer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs an AssignmentService instance.
func NewAssignmentService(repo assignmentRepository, classes classOwnershipRepository, users assignmentUserLookup, files fileStore, signer downloadSigner, limits UploadLimits, mail mailer.Mailer, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{repo: repo, classes: classes, users: users, files: files, signer: signer, limits: limits, mail: mail, validator: validate, logger: logger}
}

// Create publishes an assignment to one of the teacher's active classes.
func (s *AssignmentService) Create(ctx context.Context, classID, teacherID string, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	if _, err := requireOwnedClass(ctx, s.classes, classID, teacherID, true); err != nil {
		return nil, err
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		ClassID:            classID,
		Title:              req.Title,
		Description:        req.Description,
		DueDate:            dueDate,
		CreatedByTeacherID: teacherID,
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Update applies edits to an assignment created by the calling teacher.
func (s *AssignmentService) Update(ctx context.Context, assignmentID, teacherID string, req UpdateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	assignment, err := s.requireOwnedAssignment(ctx, assignmentID, teacherID)
	if err != nil {
		return nil, err
	}

	if req.DueDate != nil {
		dueDate, err := parseDueDate(*req.DueDate)
		if err != nil {
			return nil, err
		}
		assignment.DueDate = dueDate
	}
	if req.Title != nil {
		assignment.Title = *req.Title
	}
	if req.Description != nil {
		assignment.Description = *req.Description
	}

	if err := s.repo.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	return assignment, nil
}

// Delete removes an assignment, refused once any submission exists.
func (s *AssignmentService) Delete(ctx context.Context, assignmentID, teacherID string) error {
	if _, err := s.requireOwnedAssignment(ctx, assignmentID, teacherID); err != nil {
		return err
	}

	has, err := s.repo.HasSubmissions(ctx, assignmentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check submissions")
	}
	if has {
		return appErrors.Clone(appErrors.ErrInvalidOperation, "assignment already has submissions")
	}

	if err := s.repo.Delete(ctx, assignmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// ListByClass returns one class's assignments with submission counts.
func (s *AssignmentService) ListByClass(ctx context.Context, classID, teacherID string, page, pageSize int) ([]models.AssignmentDetail, *models.Pagination, error) {
	if _, err := requireOwnedClass(ctx, s.classes, classID, teacherID, false); err != nil {
		return nil, nil, err
	}
	assignments, total, err := s.repo.ListByClass(ctx, classID, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	page, pageSize = models.NormalizePage(page, pageSize)
	return assignments, models.NewPagination(page, pageSize, total), nil
}

// Submissions returns every submission on one of the teacher's
// assignments.
func (s *AssignmentService) Submissions(ctx context.Context, assignmentID, teacherID string) ([]models.SubmissionDetail, error) {
	if _, err := s.requireOwnedAssignment(ctx, assignmentID, teacherID); err != nil {
		return nil, err
	}
	subs, err := s.repo.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return subs, nil
}

// Submit records a student's one-shot answer, optionally storing an
// uploaded file. A second submission for the same assignment conflicts.
func (s *AssignmentService) Submit(ctx context.Context, assignmentID, studentID string, fileData []byte, fileName string) (*models.Submission, error) {
	assignment, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if err := requireEnrolled(ctx, s.classes, assignment.ClassID, studentID); err != nil {
		return nil, err
	}

	exists, err := s.repo.SubmissionExists(ctx, assignmentID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check submission")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment is already submitted")
	}

	var fileURL *string
	if len(fileData) > 0 {
		if s.files == nil {
			return nil, appErrors.Clone(appErrors.ErrInvalidOperation, "file uploads are not enabled")
		}
		if !storage.Validate(int64(len(fileData)), fileName, s.limits.MaxFileSizeBytes, s.limits.AllowedExtensions) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the size limit or has a disallowed extension")
		}
		url, err := s.files.Upload(fileData, "submissions", fileName)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission file")
		}
		fileURL = &url
	}

	sub := &models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		FileURL:      fileURL,
	}
	if err := s.repo.CreateSubmission(ctx, sub); err != nil {
		if isUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "assignment is already submitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}
	return sub, nil
}

// Grade records a grade on a submission. Ownership runs two hops:
// submission → assignment → class teacher. Grading again overwrites.
func (s *AssignmentService) Grade(ctx context.Context, submissionID, teacherID string, req GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	sub, err := s.repo.FindSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}

	assignment, err := s.requireOwnedAssignment(ctx, sub.AssignmentID, teacherID)
	if err != nil {
		return nil, err
	}

	gradedAt := time.Now().UTC()
	if err := s.repo.GradeSubmission(ctx, submissionID, req.Grade, req.Remarks, teacherID, gradedAt); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}

	sub.Grade = &req.Grade
	sub.Remarks = req.Remarks
	sub.GradedByTeacherID = &teacherID
	sub.GradedAt = &gradedAt

	s.sendGradedEmail(ctx, sub, assignment)
	return sub, nil
}

// DownloadToken issues a short-lived signed token for a submission
// file. Ownership runs the same two hops as grading.
func (s *AssignmentService) DownloadToken(ctx context.Context, submissionID, teacherID string) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInvalidOperation, "file downloads are not enabled")
	}

	sub, err := s.repo.FindSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if _, err := s.requireOwnedAssignment(ctx, sub.AssignmentID, teacherID); err != nil {
		return "", time.Time{}, err
	}
	if sub.FileURL == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInvalidOperation, "submission has no attached file")
	}

	token, expiresAt, err := s.signer.Generate(sub.ID, *sub.FileURL)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return token, expiresAt, nil
}

// OpenDownload validates a signed token and opens the file it points
// to. The token is the sole credential on this path.
func (s *AssignmentService) OpenDownload(token string) (*os.File, error) {
	if s.signer == nil || s.files == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidOperation, "file downloads are not enabled")
	}

	_, fileURL, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "download token is invalid or expired")
	}

	file, err := s.files.Open(fileURL)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "submission file not found")
	}
	return file, nil
}

func (s *AssignmentService) requireOwnedAssignment(ctx context.Context, assignmentID, teacherID string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if _, err := requireOwnedClass(ctx, s.classes, assignment.ClassID, teacherID, false); err != nil {
		return nil, err
	}
	return assignment, nil
}

func (s *AssignmentService) sendGradedEmail(ctx context.Context, sub *models.Submission, assignment *models.Assignment) {
	if s.mail == nil || sub.Grade == nil {
		return
	}
	student, err := s.users.FindByID(ctx, sub.StudentID)
	if err != nil {
		s.logger.Warn("failed to load student for graded email", zap.String("student_id", sub.StudentID), zap.Error(err))
		return
	}
	subject, body := mailer.GradedEmail(student.Name, assignment.Title, *sub.Grade)
	s.mail.Send(student.Email, student.Name, subject, body)
}

// parseDueDate parses a calendar due date and refuses dates before
// today, compared on the UTC calendar date.
func parseDueDate(value string) (time.Time, error) {
	dueDate, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "due_date must be YYYY-MM-DD")
	}
	today := models.DateOnly(time.Now())
	if dueDate.Before(today) {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "due_date must not be in the past")
	}
	return dueDate, nil
}
