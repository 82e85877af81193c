package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rohanbatrain/second-brain-database-sub001/internal/database"
	"github.com/rohanbatrain/second-brain-database-sub001/internal/models"
)

// NotificationRepository handles database operations for persisted family
// notifications.
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationCols = `id, family_id, user_id, type, title, message, data, created_at, read_at`

// Create inserts a notification row
func (r *NotificationRepository) Create(q database.DBTX, n *models.Notification) error {
	id, err := q.ExecReturningID(
		`INSERT INTO family_notifications (family_id, user_id, type, title, message, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.FamilyID, n.UserID, n.Type, n.Title, n.Message, n.Data, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	n.ID = id
	return nil
}

// ListForUser returns a user's notifications, newest first
func (r *NotificationRepository) ListForUser(userID int64, limit int) ([]models.Notification, error) {
	rows, err := r.db.Query(
		`SELECT `+notificationCols+` FROM family_notifications
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		var data sql.NullString
		var readAt sql.NullTime
		err := rows.Scan(&n.ID, &n.FamilyID, &n.UserID, &n.Type, &n.Title, &n.Message,
			&data, &n.CreatedAt, &readAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Data = data.String
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead stamps a notification as read
func (r *NotificationRepository) MarkRead(id int64, at time.Time) error {
	if _, err := r.db.Exec(`UPDATE family_notifications SET read_at = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// DeleteByFamily removes all notifications scoped to a family
func (r *NotificationRepository) DeleteByFamily(q database.DBTX, familyID int64) error {
	if _, err := q.Exec(`DELETE FROM family_notifications WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("failed to delete notifications: %w", err)
	}
	return nil
}
