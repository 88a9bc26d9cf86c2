package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"propodocs/models"
)

const notificationColumns = `id, user_id, type, title, message, link, read, created_at`

func scanNotification(row rowScanner) (*models.Notification, error) {
	var n models.Notification
	var link sql.NullString
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &link, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Link = link.String
	return &n, nil
}

// CreateNotification сохраняет уведомление внутри приложения
func (db *DB) CreateNotification(ctx context.Context, n models.Notification) (*models.Notification, error) {
	n.ID = uuid.NewString()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	row := db.Conn.QueryRowContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, link, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
		RETURNING `+notificationColumns,
		n.ID, n.UserID, n.Type, n.Title, n.Message, nullString(n.Link), n.CreatedAt,
	)
	created, err := scanNotification(row)
	if err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return created, nil
}

// ListNotifications возвращает уведомления пользователя, новые первыми
func (db *DB) ListNotifications(ctx context.Context, userID string, unreadOnly bool, page Page) ([]models.Notification, error) {
	filters := []Filter{Eq("user_id", userID)}
	if unreadOnly {
		filters = append(filters, Eq("read", false))
	}
	query, args, err := selectQuery(notificationColumns, "notifications", filters, "created_at DESC", page)
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	list := make([]models.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		list = append(list, *n)
	}
	return list, rows.Err()
}

// MarkNotificationRead отмечает уведомление прочитанным
func (db *DB) MarkNotificationRead(ctx context.Context, userID, id string) error {
	res, err := db.Conn.ExecContext(ctx,
		`UPDATE notifications SET read = true WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireAffected(res, "mark notification read")
}

// MarkNotificationsRead отмечает прочитанными несколько уведомлений и возвращает число изменённых
func (db *DB) MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := db.Conn.ExecContext(ctx,
		`UPDATE notifications SET read = true WHERE user_id = $1 AND id = ANY($2) AND read = false`,
		userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return res.RowsAffected()
}

func scanPreference(row rowScanner) (*models.NotificationPreference, error) {
	var p models.NotificationPreference
	var email, sms, tg sql.NullBool
	if err := row.Scan(&p.UserID, &p.Type, &email, &sms, &tg); err != nil {
		return nil, err
	}
	p.Email = boolOrNil(email)
	p.SMS = boolOrNil(sms)
	p.Telegram = boolOrNil(tg)
	return &p, nil
}

func boolOrNil(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}

// GetNotificationPreference возвращает настройки канала.
// Отсутствие строки не ошибка: возвращается настройка без выбора, и действуют значения по умолчанию.
func (db *DB) GetNotificationPreference(ctx context.Context, userID string, t models.NotificationType) (models.NotificationPreference, error) {
	p, err := scanPreference(db.Conn.QueryRowContext(ctx,
		`SELECT user_id, type, email, sms, telegram FROM notification_preferences WHERE user_id = $1 AND type = $2`,
		userID, t))
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotificationPreference{UserID: userID, Type: t}, nil
	}
	if err != nil {
		return models.NotificationPreference{}, fmt.Errorf("get notification preference: %w", err)
	}
	return *p, nil
}

// ListNotificationPreferences возвращает все сохранённые настройки пользователя
func (db *DB) ListNotificationPreferences(ctx context.Context, userID string) ([]models.NotificationPreference, error) {
	rows, err := db.Conn.QueryContext(ctx,
		`SELECT user_id, type, email, sms, telegram FROM notification_preferences WHERE user_id = $1 ORDER BY type`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notification preferences: %w", err)
	}
	defer rows.Close()

	prefs := make([]models.NotificationPreference, 0)
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification preference: %w", err)
		}
		prefs = append(prefs, *p)
	}
	return prefs, rows.Err()
}

// UpsertNotificationPreference сохраняет настройки; nil-поля сбрасывают выбор к значению по умолчанию
func (db *DB) UpsertNotificationPreference(ctx context.Context, p models.NotificationPreference) error {
	_, err := db.Conn.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, type, email, sms, telegram)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, type) DO UPDATE
		SET email = EXCLUDED.email, sms = EXCLUDED.sms, telegram = EXCLUDED.telegram`,
		p.UserID, p.Type, p.Email, p.SMS, p.Telegram,
	)
	if err != nil {
		return fmt.Errorf("upsert notification preference: %w", err)
	}
	return nil
}
