package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"propodocs/models"
)

// ErrAlreadySigned: договор уже подписан
var ErrAlreadySigned = errors.New("storage: contract already signed")

const contractColumns = `id, user_id, proposal_id, title, terms, signed_by, signed_at, created_at`

func scanContract(row rowScanner) (*models.Contract, error) {
	var c models.Contract
	var signedBy sql.NullString
	var signedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.UserID, &c.ProposalID, &c.Title, &c.Terms, &signedBy, &signedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	if signedBy.Valid {
		c.SignedBy = &signedBy.String
	}
	if signedAt.Valid {
		c.SignedAt = &signedAt.Time
	}
	return &c, nil
}

// CreateContract сохраняет неподписанный договор
func (db *DB) CreateContract(ctx context.Context, c models.Contract) (*models.Contract, error) {
	c.ID = uuid.NewString()
	row := db.Conn.QueryRowContext(ctx, `
		INSERT INTO contracts (id, user_id, proposal_id, title, terms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+contractColumns,
		c.ID, c.UserID, c.ProposalID, c.Title, c.Terms, time.Now().UTC(),
	)
	created, err := scanContract(row)
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	return created, nil
}

// GetContract возвращает договор владельца
func (db *DB) GetContract(ctx context.Context, userID, id string) (*models.Contract, error) {
	c, err := scanContract(db.Conn.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "get contract")
	}
	return c, nil
}

// SignContract подписывает договор. Повторная подпись возвращает ErrAlreadySigned.
func (db *DB) SignContract(ctx context.Context, userID, id, signer string, at time.Time) (*models.Contract, error) {
	c, err := scanContract(db.Conn.QueryRowContext(ctx, `
		UPDATE contracts SET signed_by = $1, signed_at = $2
		WHERE id = $3 AND user_id = $4 AND signed_at IS NULL
		RETURNING `+contractColumns,
		signer, at, id, userID))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sign contract: %w", err)
	}
	// строки нет: либо договора нет, либо он уже подписан
	if _, getErr := db.GetContract(ctx, userID, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("sign contract: %w", ErrAlreadySigned)
}
