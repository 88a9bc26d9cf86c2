package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"propodocs/models"
)

const proposalColumns = `id, user_id, title, client_name, client_email, status,
	calculator_data, content, theme, archived, share_token, created_at, updated_at`

// ProposalFilter задаёт параметры списка предложений
type ProposalFilter struct {
	Status          *models.ProposalStatus
	IncludeArchived bool
	Page            Page
}

// ProposalPatch перечисляет изменяемые поля; nil означает «не трогать»
type ProposalPatch struct {
	Title          *string
	ClientName     *string
	ClientEmail    *string
	CalculatorData json.RawMessage
	Content        json.RawMessage
	Theme          json.RawMessage
}

func scanProposal(row rowScanner) (*models.Proposal, error) {
	var p models.Proposal
	var calc, content, theme []byte
	var token sql.NullString
	if err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Title,
		&p.ClientName,
		&p.ClientEmail,
		&p.Status,
		&calc,
		&content,
		&theme,
		&p.Archived,
		&token,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.CalculatorData = json.RawMessage(calc)
	p.Content = json.RawMessage(content)
	p.Theme = json.RawMessage(theme)
	if token.Valid {
		p.ShareToken = &token.String
	}
	return &p, nil
}

// CreateProposal сохраняет новое предложение в статусе draft
func (db *DB) CreateProposal(ctx context.Context, p models.Proposal) (*models.Proposal, error) {
	p.ID = uuid.NewString()
	if p.Status == "" {
		p.Status = models.StatusDraft
	}
	query := `
		INSERT INTO proposals (id, user_id, title, client_name, client_email, status, calculator_data, content, theme)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + proposalColumns
	row := db.Conn.QueryRowContext(ctx, query,
		p.ID, p.UserID, p.Title, p.ClientName, p.ClientEmail, p.Status,
		nullableJSON(p.CalculatorData), nullableJSON(p.Content), nullableJSON(p.Theme),
	)
	created, err := scanProposal(row)
	if err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}
	return created, nil
}

// GetProposal возвращает предложение владельца
func (db *DB) GetProposal(ctx context.Context, userID, id string) (*models.Proposal, error) {
	row := db.Conn.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = $1 AND user_id = $2`, id, userID)
	p, err := scanProposal(row)
	if err != nil {
		return nil, notFound(err, "get proposal")
	}
	return p, nil
}

// GetProposalByShareToken ищет неархивное предложение по публичной ссылке
func (db *DB) GetProposalByShareToken(ctx context.Context, token string) (*models.Proposal, error) {
	row := db.Conn.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE share_token = $1 AND archived = false`, token)
	p, err := scanProposal(row)
	if err != nil {
		return nil, notFound(err, "get shared proposal")
	}
	return p, nil
}

// ListProposals возвращает предложения пользователя, новые первыми
func (db *DB) ListProposals(ctx context.Context, userID string, f ProposalFilter) ([]models.Proposal, error) {
	filters := []Filter{Eq("user_id", userID)}
	if !f.IncludeArchived {
		filters = append(filters, Eq("archived", false))
	}
	if f.Status != nil {
		filters = append(filters, Eq("status", *f.Status))
	}
	query, args, err := selectQuery(proposalColumns, "proposals", filters, "created_at DESC", f.Page)
	if err != nil {
		return nil, err
	}

	rows, err := db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	proposals := make([]models.Proposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		proposals = append(proposals, *p)
	}
	return proposals, rows.Err()
}

// ListPipelineProposals возвращает статус и calculator_data всех неархивных предложений
func (db *DB) ListPipelineProposals(ctx context.Context, userID string) ([]models.Proposal, error) {
	rows, err := db.Conn.QueryContext(ctx,
		`SELECT id, status, calculator_data FROM proposals WHERE user_id = $1 AND archived = false`, userID)
	if err != nil {
		return nil, fmt.Errorf("list pipeline proposals: %w", err)
	}
	defer rows.Close()

	var proposals []models.Proposal
	for rows.Next() {
		var p models.Proposal
		var calc []byte
		if err := rows.Scan(&p.ID, &p.Status, &calc); err != nil {
			return nil, fmt.Errorf("scan pipeline proposal: %w", err)
		}
		p.CalculatorData = json.RawMessage(calc)
		proposals = append(proposals, p)
	}
	return proposals, rows.Err()
}

// UpdateProposal меняет переданные поля предложения владельца
func (db *DB) UpdateProposal(ctx context.Context, userID, id string, patch ProposalPatch) (*models.Proposal, error) {
	var sets []string
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.ClientName != nil {
		add("client_name", *patch.ClientName)
	}
	if patch.ClientEmail != nil {
		add("client_email", *patch.ClientEmail)
	}
	if patch.CalculatorData != nil {
		add("calculator_data", string(patch.CalculatorData))
	}
	if patch.Content != nil {
		add("content", string(patch.Content))
	}
	if patch.Theme != nil {
		add("theme", string(patch.Theme))
	}
	if len(sets) == 0 {
		return db.GetProposal(ctx, userID, id)
	}

	args = append(args, id, userID)
	query := fmt.Sprintf(`UPDATE proposals SET %s, updated_at = NOW() WHERE id = $%d AND user_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), proposalColumns)
	p, err := scanProposal(db.Conn.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "update proposal")
	}
	return p, nil
}

// SetProposalStatus переводит предложение из статуса from в to одним UPDATE.
// Если статус успел измениться, строка не обновляется и возвращается ErrConflict.
func (db *DB) SetProposalStatus(ctx context.Context, userID, id string, from, to models.ProposalStatus) (*models.Proposal, error) {
	row := db.Conn.QueryRowContext(ctx,
		`UPDATE proposals SET status = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3 AND status = $4 RETURNING `+proposalColumns,
		to, id, userID, from)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("set proposal status %s -> %s: %w", from, to, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("set proposal status: %w", err)
	}
	return p, nil
}

// MarkProposalViewed переводит sent → viewed. Возвращает true, если статус изменился.
func (db *DB) MarkProposalViewed(ctx context.Context, id string) (bool, error) {
	res, err := db.Conn.ExecContext(ctx,
		`UPDATE proposals SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`,
		models.StatusViewed, id, models.StatusSent)
	if err != nil {
		return false, fmt.Errorf("mark proposal viewed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetProposalArchived включает или снимает мягкое удаление
func (db *DB) SetProposalArchived(ctx context.Context, userID, id string, archived bool) error {
	res, err := db.Conn.ExecContext(ctx,
		`UPDATE proposals SET archived = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3`,
		archived, id, userID)
	if err != nil {
		return fmt.Errorf("archive proposal: %w", err)
	}
	return requireAffected(res, "archive proposal")
}

// EnsureShareToken выдаёт постоянный токен публичной ссылки, создавая его при первом вызове
func (db *DB) EnsureShareToken(ctx context.Context, userID, id string) (string, error) {
	var token string
	err := db.Conn.QueryRowContext(ctx,
		`UPDATE proposals SET share_token = COALESCE(share_token, $1) WHERE id = $2 AND user_id = $3 RETURNING share_token`,
		uuid.NewString(), id, userID).Scan(&token)
	if err != nil {
		return "", notFound(err, "share proposal")
	}
	return token, nil
}

// DeleteProposal удаляет предложение владельца
func (db *DB) DeleteProposal(ctx context.Context, userID, id string) error {
	res, err := db.Conn.ExecContext(ctx, `DELETE FROM proposals WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	return requireAffected(res, "delete proposal")
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
