package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/marketbook/internal/model"
)

// NotificationListLimit is how many notifications a user sees at once.
const NotificationListLimit = 50

const notificationColumns = `id, user_id, title, message, severity, read, action_url, created_at`

// CreateNotification adds a notification for n.UserID.
func CreateNotification(ctx context.Context, db *sql.DB, n model.Notification) (*model.Notification, error) {
	if n.Severity == "" {
		n.Severity = model.SeverityInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	result, err := db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, title, message, severity, read, action_url, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		n.UserID, n.Title, n.Message, n.Severity, n.ActionURL, n.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting notification id: %w", err)
	}
	return GetNotification(ctx, db, id)
}

// GetNotification returns a notification by ID.
func GetNotification(ctx context.Context, db *sql.DB, id int64) (*model.Notification, error) {
	n, err := scanNotification(db.QueryRowContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns the newest notifications for userID.
func ListNotifications(ctx context.Context, db *sql.DB, userID int64) ([]model.Notification, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		 WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, NotificationListLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	notifications := []model.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, *n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead sets read to true. Marking an already read
// notification is not an error.
func MarkNotificationRead(ctx context.Context, db *sql.DB, id int64) (*model.Notification, error) {
	_, err := db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("marking notification read: %w", err)
	}
	n, err := GetNotification(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("marking notification %d read: %w", id, model.ErrNotFound)
	}
	return n, nil
}

func scanNotification(row rowScanner) (*model.Notification, error) {
	n := &model.Notification{}
	err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Severity, &n.Read, &n.ActionURL, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Notifications delivers notifications by storing them in the database.
type Notifications struct {
	DB *sql.DB
}

// Notify stores n for its recipient.
func (s Notifications) Notify(ctx context.Context, n model.Notification) error {
	_, err := CreateNotification(ctx, s.DB, n)
	return err
}
