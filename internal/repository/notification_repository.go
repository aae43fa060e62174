package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/trivsel-api/internal/models"
)

// NotificationRepository manages alert notifications addressed to staff.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts a single notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, student_id, type, title, message, read, read_at, created_at)
        VALUES (:id, :user_id, :student_id, :type, :title, :message, :read, :read_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// CreateBatch inserts one notification per addressed staff member in a single
// transaction, so a fan-out either lands for every assignee or none.
func (r *NotificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for i := range notifications {
		if notifications[i].ID == "" {
			notifications[i].ID = uuid.NewString()
		}
		if notifications[i].CreatedAt.IsZero() {
			notifications[i].CreatedAt = now
		}
		const query = `INSERT INTO notifications (id, user_id, student_id, type, title, message, read, read_at, created_at)
            VALUES (:id, :user_id, :student_id, :type, :title, :message, :read, :read_at, :created_at)`
		if _, err := tx.NamedExecContext(ctx, query, notifications[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("create notification batch: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notification batch: %w", err)
	}
	return nil
}

// List returns notifications for one staff member, newest first.
func (r *NotificationRepository) List(ctx context.Context, filter models.NotificationFilter) ([]models.NotificationDetail, int, error) {
	base := `FROM notifications n LEFT JOIN students s ON s.id = n.student_id`
	conditions := []string{"n.user_id = $1"}
	args := []interface{}{filter.UserID}

	if filter.UnreadOnly {
		conditions = append(conditions, "n.read = false")
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("n.type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT n.id, n.user_id, n.student_id, n.type, n.title, n.message, n.read, n.read_at, n.created_at,
        s.name AS student_name %s ORDER BY n.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var notifications []models.NotificationDetail
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}
	return notifications, total, nil
}

// FindByID fetches a notification by ID.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	const query = `SELECT id, user_id, student_id, type, title, message, read, read_at, created_at FROM notifications WHERE id = $1`
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		return nil, err
	}
	return &notification, nil
}

// MarkRead flags a notification as read with a timestamp.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string, readAt time.Time) error {
	const query = `UPDATE notifications SET read = true, read_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, readAt); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// CountUnreadByType aggregates a staff member's unread notifications per type.
func (r *NotificationRepository) CountUnreadByType(ctx context.Context, userID string) (map[models.NotificationType]int, error) {
	const query = `SELECT type, COUNT(*) AS count FROM notifications WHERE user_id = $1 AND read = false GROUP BY type`
	rows := []struct {
		Type  models.NotificationType `db:"type"`
		Count int                     `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	counts := make(map[models.NotificationType]int, len(rows))
	for _, row := range rows {
		counts[row.Type] = row.Count
	}
	return counts, nil
}
