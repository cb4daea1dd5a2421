package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/models"
	appErrors "github.com/klaslab/school-api/pkg/errors"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	BulkCreate(ctx context.Context, notifications []models.Notification) error
	ListForStudent(ctx context.Context, studentID string, unreadOnly bool, page, pageSize int) ([]models.Notification, int, error)
	FindOwned(ctx context.Context, notificationID, studentID string) (*models.Notification, error)
	MarkRead(ctx context.Context, notificationID string) error
	UnreadCount(ctx context.Context, studentID string) (int, error)
}

type notificationClassRepository interface {
	classOwnershipRepository
	ListClassStudents(ctx context.Context, classID string) ([]models.EnrollmentDetail, error)
}

// SendClassNotificationRequest carries the teacher broadcast payload.
type SendClassNotificationRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=2000"`
}

// NotificationService provides class broadcasts and the student inbox.
type NotificationService struct {
	repo      notificationRepository
	classes   notificationClassRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs a NotificationService instance.
func NewNotificationService(repo notificationRepository, classes notificationClassRepository, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &NotificationService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// SendToClass creates one notification per enrolled student of the
// teacher's class. An empty roster is refused.
func (s *NotificationService) SendToClass(ctx context.Context, classID, teacherID string, req SendClassNotificationRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}

	if _, err := requireOwnedClass(ctx, s.classes, classID, teacherID, false); err != nil {
		return 0, err
	}

	roster, err := s.classes.ListClassStudents(ctx, classID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class roster")
	}
	if len(roster) == 0 {
		return 0, appErrors.Clone(appErrors.ErrInvalidOperation, "class has no enrolled students")
	}

	notifications := make([]models.Notification, 0, len(roster))
	for _, enrollment := range roster {
		studentID := enrollment.StudentID
		notifications = append(notifications, models.Notification{
			Title:       req.Title,
			Message:     req.Message,
			RecipientID: &studentID,
		})
	}
	if err := s.repo.BulkCreate(ctx, notifications); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notifications")
	}

	s.logger.Info("class notification sent",
		zap.String("class_id", classID),
		zap.Int("recipients", len(notifications)))
	return len(notifications), nil
}

// BroadcastToStudents posts a single role-broadcast notification that
// every student sees. One shared row, not one per student.
func (s *NotificationService) BroadcastToStudents(ctx context.Context, req SendClassNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}

	role := models.RoleStudent
	notification := &models.Notification{
		Title:         req.Title,
		Message:       req.Message,
		RecipientRole: &role,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}

	s.logger.Info("student broadcast sent", zap.String("notification_id", notification.ID))
	return notification, nil
}

// List returns the student's visible notifications. When unreadOnly is
// set, the repository filters read rows out before paginating, so both
// the page and the total reflect unread rows only.
func (s *NotificationService) List(ctx context.Context, studentID string, unreadOnly bool, page, pageSize int) ([]models.Notification, *models.Pagination, error) {
	notifications, total, err := s.repo.ListForStudent(ctx, studentID, unreadOnly, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}

	page, pageSize = models.NormalizePage(page, pageSize)
	return notifications, models.NewPagination(page, pageSize, total), nil
}

// MarkRead flags one of the student's notifications as read. Only
// individually-addressed rows qualify; someone else's notification and
// shared role broadcasts both report NotFound. Reading twice is
// refused.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, studentID string) error {
	notification, err := s.repo.FindOwned(ctx, notificationID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if notification.Read {
		return appErrors.Clone(appErrors.ErrInvalidOperation, "notification is already read")
	}
	if err := s.repo.MarkRead(ctx, notificationID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// UnreadCount returns how many visible notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, studentID string) (int, error) {
	count, err := s.repo.UnreadCount(ctx, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}
