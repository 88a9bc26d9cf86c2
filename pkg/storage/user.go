package storage

import (
	"context"
	"database/sql"

	"propodocs/models"
)

// GetUser возвращает контактные данные пользователя
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	var phone, tg sql.NullString
	err := db.Conn.QueryRowContext(ctx,
		`SELECT id, email, name, phone, telegram_username FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &phone, &tg)
	if err != nil {
		return nil, notFound(err, "get user")
	}
	u.Phone = phone.String
	u.TelegramUsername = tg.String
	return &u, nil
}
