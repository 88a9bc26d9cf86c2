package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound: запись не найдена или принадлежит другому пользователю
var ErrNotFound = errors.New("storage: not found")

// ErrConflict: нарушена уникальность или запись успела измениться
var ErrConflict = errors.New("storage: conflict")

// DB оборачивает подключение к Postgres, все запросы пакета идут через неё
type DB struct {
	Conn *sql.DB
}

func NewDB(conn *sql.DB) *DB {
	return &DB{Conn: conn}
}

// Open подключается к Postgres и проверяет соединение
func Open(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewDB(conn), nil
}

// Ping проверяет доступность БД для health-check
func (db *DB) Ping(ctx context.Context) error {
	return db.Conn.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.Conn.Close()
}

// notFound переводит sql.ErrNoRows в ErrNotFound, остальные ошибки оборачивает
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// rowScanner объединяет *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// Filter задаёт условие выборки по колонке. Колонки задаёт код пакета, не пользователь.
type Filter struct {
	Column string
	Op     string
	Value  any
}

func Eq(column string, v any) Filter  { return Filter{Column: column, Op: "=", Value: v} }
func Gte(column string, v any) Filter { return Filter{Column: column, Op: ">=", Value: v} }
func Lt(column string, v any) Filter  { return Filter{Column: column, Op: "<", Value: v} }

// Page задаёт окно выборки; Limit <= 0 означает без ограничения
type Page struct {
	Limit  int
	Offset int
}

var allowedOps = map[string]bool{"=": true, "<>": true, ">=": true, "<=": true, ">": true, "<": true}

// buildWhere собирает WHERE из фильтров с позиционными параметрами начиная с $1
func buildWhere(filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if !allowedOps[f.Op] {
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		args = append(args, f.Value)
		parts = append(parts, fmt.Sprintf("%s %s $%d", f.Column, f.Op, len(args)))
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}

// selectQuery собирает SELECT с фильтрами, сортировкой и окном
func selectQuery(columns, table string, filters []Filter, order string, page Page) (string, []any, error) {
	where, args, err := buildWhere(filters)
	if err != nil {
		return "", nil, err
	}
	q := "SELECT " + columns + " FROM " + table + where
	if order != "" {
		q += " ORDER BY " + order
	}
	if page.Limit > 0 {
		args = append(args, page.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if page.Offset > 0 {
		args = append(args, page.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return q, args, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
