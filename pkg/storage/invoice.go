package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"propodocs/models"
)


const invoiceColumns = `id, user_id, proposal_id, number, client_name, client_email, currency,
	items, total, status, payment_url, due_at, paid_at, created_at`

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var inv models.Invoice
	var proposalID, paymentURL sql.NullString
	var dueAt, paidAt sql.NullTime
	var items []byte
	if err := row.Scan(
		&inv.ID,
		&inv.UserID,
		&proposalID,
		&inv.Number,
		&inv.ClientName,
		&inv.ClientEmail,
		&inv.Currency,
		&items,
		&inv.Total,
		&inv.Status,
		&paymentURL,
		&dueAt,
		&paidAt,
		&inv.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &inv.Items); err != nil {
			return nil, fmt.Errorf("decode invoice items: %w", err)
		}
	}
	if inv.Items == nil {
		inv.Items = []models.LineItem{}
	}
	if proposalID.Valid {
		inv.ProposalID = &proposalID.String
	}
	if paymentURL.Valid {
		inv.PaymentURL = &paymentURL.String
	}
	if dueAt.Valid {
		inv.DueAt = &dueAt.Time
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}
	return &inv, nil
}

// invoiceNumber формирует человекочитаемый номер вида INV-20240131-1A2B3C4D
func invoiceNumber(now time.Time, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("20060102"), suffix)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// CreateInvoice сохраняет счёт в статусе open, итог пересчитывается по строкам
func (db *DB) CreateInvoice(ctx context.Context, inv models.Invoice) (*models.Invoice, error) {
	inv.ID = uuid.NewString()
	now := time.Now().UTC()
	if inv.Number == "" {
		inv.Number = invoiceNumber(now, inv.ID)
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceOpen
	}
	if inv.Currency == "" {
		inv.Currency = "usd"
	}
	inv.ComputeTotal()
	items, err := json.Marshal(inv.Items)
	if err != nil {
		return nil, fmt.Errorf("encode invoice items: %w", err)
	}

	row := db.Conn.QueryRowContext(ctx, `
		INSERT INTO invoices (id, user_id, proposal_id, number, client_name, client_email, currency, items, total, status, due_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+invoiceColumns,
		inv.ID, inv.UserID, inv.ProposalID, inv.Number, inv.ClientName, inv.ClientEmail, strings.ToLower(inv.Currency),
		string(items), inv.Total, inv.Status, inv.DueAt, now,
	)
	created, err := scanInvoice(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create invoice %s: %w", inv.Number, ErrConflict)
		}
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return created, nil
}

// GetInvoice возвращает счёт владельца
func (db *DB) GetInvoice(ctx context.Context, userID, id string) (*models.Invoice, error) {
	inv, err := scanInvoice(db.Conn.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		return nil, notFound(err, "get invoice")
	}
	return inv, nil
}

// GetInvoiceByID возвращает счёт без проверки владельца, используется вебхуком оплаты
func (db *DB) GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := scanInvoice(db.Conn.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get invoice")
	}
	return inv, nil
}

// ListInvoices возвращает счета пользователя, новые первыми
func (db *DB) ListInvoices(ctx context.Context, userID string, status *models.InvoiceStatus, page Page) ([]models.Invoice, error) {
	filters := []Filter{Eq("user_id", userID)}
	if status != nil {
		filters = append(filters, Eq("status", *status))
	}
	query, args, err := selectQuery(invoiceColumns, "invoices", filters, "created_at DESC", page)
	if err != nil {
		return nil, err
	}
	rows, err := db.Conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]models.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// SetInvoicePaymentURL сохраняет ссылку на оплату
func (db *DB) SetInvoicePaymentURL(ctx context.Context, userID, id, url string) error {
	res, err := db.Conn.ExecContext(ctx,
		`UPDATE invoices SET payment_url = $1 WHERE id = $2 AND user_id = $3`, url, id, userID)
	if err != nil {
		return fmt.Errorf("set invoice payment url: %w", err)
	}
	return requireAffected(res, "set invoice payment url")
}

// MarkInvoicePaid переводит счёт в paid. Возвращает false, если он уже был оплачен:
// вебхук может прийти повторно.
func (db *DB) MarkInvoicePaid(ctx context.Context, id string, paidAt time.Time) (bool, error) {
	res, err := db.Conn.ExecContext(ctx,
		`UPDATE invoices SET status = $1, paid_at = $2 WHERE id = $3 AND status <> $1`,
		models.InvoicePaid, paidAt, id)
	if err != nil {
		return false, fmt.Errorf("mark invoice paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
