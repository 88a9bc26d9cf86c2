package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gotd/td/session"
	"go.uber.org/zap"
)

// TelegramSessionStorage хранит сессию бота уведомлений в таблице telegram_sessions.
// Реализует session.Storage из gotd, поэтому бот не проходит авторизацию при каждом старте.
type TelegramSessionStorage struct {
	DB     *sql.DB
	Name   string
	Logger *zap.Logger
}

var _ session.Storage = (*TelegramSessionStorage)(nil)

// LoadSession загружает сессию из БД
func (s *TelegramSessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	if s == nil || s.DB == nil {
		return nil, session.ErrNotFound
	}

	var data string
	err := s.DB.QueryRowContext(ctx, "SELECT data_json FROM telegram_sessions WHERE name = $1", s.Name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		s.logger().Error("ошибка чтения сессии telegram", zap.String("name", s.Name), zap.Error(err))
		return nil, err
	}
	return []byte(data), nil
}

// StoreSession сохраняет сессию; запись на одно имя всегда одна
func (s *TelegramSessionStorage) StoreSession(ctx context.Context, data []byte) error {
	if s == nil || s.DB == nil {
		return session.ErrNotFound
	}
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO telegram_sessions (name, data_json) VALUES ($1, $2) "+
			"ON CONFLICT (name) DO UPDATE SET data_json = EXCLUDED.data_json, updated_at = NOW()",
		s.Name,
		string(data),
	)
	if err != nil {
		s.logger().Error("ошибка сохранения сессии telegram", zap.String("name", s.Name), zap.Error(err))
		return err
	}
	return nil
}

func (s *TelegramSessionStorage) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
