package models

import (
	"encoding/json"
	"time"
)

// ProposalStatus задаёт этап жизненного цикла предложения
type ProposalStatus string

const (
	StatusDraft    ProposalStatus = "draft"
	StatusSent     ProposalStatus = "sent"
	StatusViewed   ProposalStatus = "viewed"
	StatusAccepted ProposalStatus = "accepted"
	StatusRejected ProposalStatus = "rejected"
)

// PipelineStatuses перечисляет статусы в порядке воронки
var PipelineStatuses = []ProposalStatus{StatusDraft, StatusSent, StatusViewed, StatusAccepted, StatusRejected}

// Proposal описывает предложение клиенту.
// calculator_data, content и theme хранятся как JSON как есть,
// а признак архивации вынесен в отдельное поле archived.
type Proposal struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Title          string          `json:"title"`
	ClientName     string          `json:"client_name"`
	ClientEmail    string          `json:"client_email"`
	Status         ProposalStatus  `json:"status"`
	CalculatorData json.RawMessage `json:"calculator_data,omitempty"`
	Content        json.RawMessage `json:"content,omitempty"`
	Theme          json.RawMessage `json:"theme,omitempty"`
	Archived       bool            `json:"archived"`
	ShareToken     *string         `json:"share_token,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ProposalValue содержит минимальный срез предложения для построения воронки
type ProposalValue struct {
	Status      ProposalStatus `json:"status"`
	AnnualTotal *float64       `json:"annual_total,omitempty"` // nil, если сумму извлечь не удалось
}
