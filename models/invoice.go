package models

import "time"

// InvoiceStatus задаёт состояние счёта
type InvoiceStatus string

const (
	InvoiceDraft InvoiceStatus = "draft"
	InvoiceOpen  InvoiceStatus = "open"
	InvoicePaid  InvoiceStatus = "paid"
	InvoiceVoid  InvoiceStatus = "void"
)

// LineItem описывает строку счёта, суммы в минимальных единицах валюты
type LineItem struct {
	Description string `json:"description" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	UnitAmount  int64  `json:"unit_amount" binding:"min=0"`
}

// Invoice описывает счёт клиенту
type Invoice struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	ProposalID  *string       `json:"proposal_id,omitempty"`
	Number      string        `json:"number"`
	ClientName  string        `json:"client_name"`
	ClientEmail string        `json:"client_email"`
	Currency    string        `json:"currency"`
	Items       []LineItem    `json:"items"`
	Total       int64         `json:"total"`
	Status      InvoiceStatus `json:"status"`
	PaymentURL  *string       `json:"payment_url,omitempty"`
	DueAt       *time.Time    `json:"due_at,omitempty"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ComputeTotal пересчитывает итог по строкам
func (inv *Invoice) ComputeTotal() int64 {
	var total int64
	for _, it := range inv.Items {
		total += int64(it.Quantity) * it.UnitAmount
	}
	inv.Total = total
	return total
}
