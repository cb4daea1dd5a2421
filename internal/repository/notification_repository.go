package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/klaslab/school-api/internal/models"
)

// NotificationRepository provides database access for notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts one notification.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, title, message, recipient_id, recipient_role, read, created_at)
VALUES (:id, :title, :message, :recipient_id, :recipient_role, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// BulkCreate inserts a batch of notifications in one transaction.
func (r *NotificationRepository) BulkCreate(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk notifications: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO notifications (id, title, message, recipient_id, recipient_role, read, created_at)
VALUES (:id, :title, :message, :recipient_id, :recipient_role, :read, :created_at)`
	for i := range notifications {
		n := &notifications[i]
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.NamedExecContext(ctx, query, n); err != nil {
			return fmt.Errorf("bulk create notifications: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk notifications: %w", err)
	}
	committed = true
	return nil
}

// visibleToStudent scopes rows to what one student may see: messages
// addressed to them directly, plus role broadcasts to all students.
const visibleToStudent = `(recipient_id = $1 OR (recipient_id IS NULL AND recipient_role = 'STUDENT'))`

// ListForStudent returns the student's visible notifications, newest
// first, with total count. With unreadOnly set both the page and the
// count cover unread rows only, so pagination stays consistent.
func (r *NotificationRepository) ListForStudent(ctx context.Context, studentID string, unreadOnly bool, page, pageSize int) ([]models.Notification, int, error) {
	page, pageSize = models.NormalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	predicate := visibleToStudent
	if unreadOnly {
		predicate += " AND NOT read"
	}

	listQuery := fmt.Sprintf(`SELECT id, title, message, recipient_id, recipient_role, read, created_at
	FROM notifications
	WHERE %s
	ORDER BY created_at DESC LIMIT %d OFFSET %d`, predicate, pageSize, offset)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, listQuery, studentID); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM notifications WHERE %s`, predicate)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, studentID); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	return notifications, total, nil
}

// FindOwned returns the notification only when it is individually
// addressed to the student. Role broadcasts are shared rows, so their
// read flag cannot be flipped by any one reader and they are excluded
// here.
func (r *NotificationRepository) FindOwned(ctx context.Context, notificationID, studentID string) (*models.Notification, error) {
	const query = `SELECT id, title, message, recipient_id, recipient_role, read, created_at
	FROM notifications WHERE id = $1 AND recipient_id = $2 LIMIT 1`
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, notificationID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &n, nil
}

// MarkRead flags one notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID string) error {
	const query = `UPDATE notifications SET read = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, notificationID); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// UnreadCount returns how many visible notifications are unread.
func (r *NotificationRepository) UnreadCount(ctx context.Context, studentID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM notifications WHERE NOT read AND %s`, visibleToStudent)
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
