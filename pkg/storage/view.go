package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"propodocs/models"
)

const viewColumns = `id, proposal_id, session_id, device_type, browser, os, viewed_at, duration_seconds`

func scanView(row rowScanner) (*models.View, error) {
	var v models.View
	var device, browser, osName sql.NullString
	var duration sql.NullInt64
	if err := row.Scan(&v.ID, &v.ProposalID, &v.SessionID, &device, &browser, &osName, &v.ViewedAt, &duration); err != nil {
		return nil, err
	}
	v.DeviceType = device.String
	v.Browser = browser.String
	v.OS = osName.String
	if duration.Valid {
		d := int(duration.Int64)
		v.DurationSeconds = &d
	}
	return &v, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateView записывает загрузку расшаренного предложения
func (db *DB) CreateView(ctx context.Context, v models.View) (*models.View, error) {
	v.ID = uuid.NewString()
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now().UTC()
	}
	row := db.Conn.QueryRowContext(ctx, `
		INSERT INTO proposal_views (id, proposal_id, session_id, device_type, browser, os, viewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+viewColumns,
		v.ID, v.ProposalID, v.SessionID, nullString(v.DeviceType), nullString(v.Browser), nullString(v.OS), v.ViewedAt,
	)
	created, err := scanView(row)
	if err != nil {
		return nil, fmt.Errorf("create view: %w", err)
	}
	return created, nil
}

// UpdateViewDuration фиксирует длительность просмотра предложения.
// Значение только растёт: запоздавший heartbeat не уменьшит уже записанное.
func (db *DB) UpdateViewDuration(ctx context.Context, proposalID, id string, seconds int) error {
	res, err := db.Conn.ExecContext(ctx,
		`UPDATE proposal_views SET duration_seconds = GREATEST(COALESCE(duration_seconds, 0), $1) WHERE id = $2 AND proposal_id = $3`,
		seconds, id, proposalID)
	if err != nil {
		return fmt.Errorf("update view duration: %w", err)
	}
	return requireAffected(res, "update view duration")
}

// ListViews возвращает просмотры предложения, начиная с since, если он задан
func (db *DB) ListViews(ctx context.Context, proposalID string, since *time.Time) ([]models.View, error) {
	filters := []Filter{Eq("proposal_id", proposalID)}
	if since != nil {
		filters = append(filters, Gte("viewed_at", *since))
	}
	query, args, err := selectQuery(viewColumns, "proposal_views", filters, "viewed_at", Page{})
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	views := make([]models.View, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan view: %w", err)
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}
