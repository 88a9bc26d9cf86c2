package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"

	"github.com/gotd/td/session"
)

// sessionTestDriver хранит сессии в памяти вместо таблицы telegram_sessions
type sessionTestDriver struct{}

type sessionTestConn struct{}

type sessionTestRows struct {
	data []driver.Value
	done bool
}

type sessionTestResult struct{}

var sessionTestData = map[string]string{}

func (sessionTestDriver) Open(name string) (driver.Conn, error) { return &sessionTestConn{}, nil }

func (c *sessionTestConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("not implemented")
}
func (c *sessionTestConn) Close() error              { return nil }
func (c *sessionTestConn) Begin() (driver.Tx, error) { return nil, errors.New("not implemented") }

func (c *sessionTestConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	data, ok := sessionTestData[args[0].Value.(string)]
	if !ok {
		return &sessionTestRows{done: true}, nil
	}
	return &sessionTestRows{data: []driver.Value{data}}, nil
}

func (c *sessionTestConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	sessionTestData[args[0].Value.(string)] = args[1].Value.(string)
	return sessionTestResult{}, nil
}

func (sessionTestResult) LastInsertId() (int64, error) { return 0, nil }
func (sessionTestResult) RowsAffected() (int64, error) { return 1, nil }

func (r *sessionTestRows) Columns() []string { return []string{"data_json"} }
func (r *sessionTestRows) Close() error      { return nil }
func (r *sessionTestRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	copy(dest, r.data)
	r.done = true
	return nil
}

func init() { sql.Register("sessionDummy", sessionTestDriver{}) }

func TestTelegramSessionStorageRoundTrip(t *testing.T) {
	db, err := sql.Open("sessionDummy", "")
	if err != nil {
		t.Fatalf("не удалось открыть БД: %v", err)
	}
	defer db.Close()

	s := &TelegramSessionStorage{DB: db, Name: "notify-bot"}
	ctx := context.Background()

	if _, err := s.LoadSession(ctx); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("ожидалась session.ErrNotFound, получено %v", err)
	}
	if err := s.StoreSession(ctx, []byte(`{"Version":1}`)); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	data, err := s.LoadSession(ctx)
	if err != nil {
		t.Fatalf("ошибка загрузки: %v", err)
	}
	if string(data) != `{"Version":1}` {
		t.Fatalf("неожиданные данные сессии: %s", data)
	}
}

func TestTelegramSessionStorageNil(t *testing.T) {
	var s *TelegramSessionStorage
	if _, err := s.LoadSession(context.Background()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("ожидалась session.ErrNotFound для пустого хранилища, получено %v", err)
	}
}
