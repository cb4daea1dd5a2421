package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/klaslab/school-api/internal/models"
	appErrors "github.com/klaslab/school-api/pkg/errors"
)

type mockNotificationRepo struct {
	notifications map[string]*models.Notification
	nextID        int
}

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{notifications: make(map[string]*models.Notification)}
}

func (m *mockNotificationRepo) visible(n *models.Notification, studentID string) bool {
	if n.RecipientID != nil {
		return *n.RecipientID == studentID
	}
	return n.RecipientRole != nil && *n.RecipientRole == models.RoleStudent
}

// stamp mimics the repository defaults: generated id, insertion-ordered
// creation time so newest-first sorting is deterministic.
func (m *mockNotificationRepo) stamp(n *models.Notification) {
	m.nextID++
	if n.ID == "" {
		n.ID = fmt.Sprintf("n-%d", m.nextID)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Unix(int64(m.nextID), 0)
	}
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	m.stamp(n)
	m.notifications[n.ID] = n
	return nil
}

func (m *mockNotificationRepo) BulkCreate(ctx context.Context, notifications []models.Notification) error {
	for i := range notifications {
		n := notifications[i]
		m.stamp(&n)
		m.notifications[n.ID] = &n
	}
	return nil
}

func (m *mockNotificationRepo) ListForStudent(ctx context.Context, studentID string, unreadOnly bool, page, pageSize int) ([]models.Notification, int, error) {
	var matches []models.Notification
	for _, n := range m.notifications {
		if !m.visible(n, studentID) {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		matches = append(matches, *n)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	total := len(matches)
	page, pageSize = models.NormalizePage(page, pageSize)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func (m *mockNotificationRepo) FindOwned(ctx context.Context, notificationID, studentID string) (*models.Notification, error) {
	n, ok := m.notifications[notificationID]
	if !ok || n.RecipientID == nil || *n.RecipientID != studentID {
		return nil, sql.ErrNoRows
	}
	return n, nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, notificationID string) error {
	if n, ok := m.notifications[notificationID]; ok {
		n.Read = true
	}
	return nil
}

func (m *mockNotificationRepo) UnreadCount(ctx context.Context, studentID string) (int, error) {
	count := 0
	for _, n := range m.notifications {
		if m.visible(n, studentID) && !n.Read {
			count++
		}
	}
	return count, nil
}

type mockNotificationClasses struct {
	*mockClassAccess
}

func (m mockNotificationClasses) ListClassStudents(ctx context.Context, classID string) ([]models.EnrollmentDetail, error) {
	var roster []models.EnrollmentDetail
	for studentID := range m.enrollments[classID] {
		roster = append(roster, models.EnrollmentDetail{
			Enrollment: models.Enrollment{ClassID: classID, StudentID: studentID},
		})
	}
	return roster, nil
}

func newNotificationService(repo *mockNotificationRepo, classes *mockClassAccess) *NotificationService {
	return NewNotificationService(repo, mockNotificationClasses{classes}, validator.New(), zap.NewNop())
}

func TestSendToClassCreatesOnePerStudent(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	classes.enroll("c1", "s2")
	repo := newMockNotificationRepo()
	svc := newNotificationService(repo, classes)

	count, err := svc.SendToClass(context.Background(), "c1", "t1", SendClassNotificationRequest{
		Title: "Exam", Message: "Friday",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, repo.notifications, 2)
}

func TestSendToClassEmptyRoster(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	svc := newNotificationService(newMockNotificationRepo(), classes)

	_, err := svc.SendToClass(context.Background(), "c1", "t1", SendClassNotificationRequest{
		Title: "Exam", Message: "Friday",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOperation.Code, appErrors.FromError(err).Code)
}

func TestMarkReadOnlyOwn(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	repo := newMockNotificationRepo()
	svc := newNotificationService(repo, classes)

	_, err := svc.SendToClass(context.Background(), "c1", "t1", SendClassNotificationRequest{
		Title: "Exam", Message: "Friday",
	})
	require.NoError(t, err)

	var id string
	for nid := range repo.notifications {
		id = nid
	}

	err = svc.MarkRead(context.Background(), id, "intruder")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.MarkRead(context.Background(), id, "s1"))

	// Reading twice is refused.
	err = svc.MarkRead(context.Background(), id, "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOperation.Code, appErrors.FromError(err).Code)
}

func TestBroadcastVisibleToAllStudents(t *testing.T) {
	repo := newMockNotificationRepo()
	svc := newNotificationService(repo, newMockClassAccess())

	notification, err := svc.BroadcastToStudents(context.Background(), SendClassNotificationRequest{
		Title: "Holiday", Message: "School closed",
	})
	require.NoError(t, err)
	assert.Nil(t, notification.RecipientID)
	require.NotNil(t, notification.RecipientRole)
	assert.Equal(t, models.RoleStudent, *notification.RecipientRole)

	notifications, _, err := svc.List(context.Background(), "any-student", false, 1, 20)
	require.NoError(t, err)
	assert.Len(t, notifications, 1)

	count, err := svc.UnreadCount(context.Background(), "any-student")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The broadcast row is shared between all students; no single
	// reader may flip its read flag.
	err = svc.MarkRead(context.Background(), notification.ID, "any-student")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.notifications[notification.ID].Read)
}

func TestListUnreadOnlyPaginatesUnreadRows(t *testing.T) {
	classes := newMockClassAccess()
	classes.addClass(activeClass("c1", "t1"))
	classes.enroll("c1", "s1")
	repo := newMockNotificationRepo()
	svc := newNotificationService(repo, classes)

	_, err := svc.SendToClass(context.Background(), "c1", "t1", SendClassNotificationRequest{Title: "A", Message: "a"})
	require.NoError(t, err)
	_, err = svc.SendToClass(context.Background(), "c1", "t1", SendClassNotificationRequest{Title: "B", Message: "b"})
	require.NoError(t, err)

	all, _, err := svc.List(context.Background(), "s1", false, 1, 20)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Read the newest; the older one stays unread.
	require.NoError(t, svc.MarkRead(context.Background(), all[0].ID, "s1"))

	// Unread filtering happens before pagination: even with a page of
	// one, the first page holds the unread row and the total counts
	// unread rows only.
	unread, pagination, err := svc.List(context.Background(), "s1", true, 1, 1)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, all[1].ID, unread[0].ID)
	assert.False(t, unread[0].Read)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.False(t, pagination.HasNext)
}
