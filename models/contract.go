package models

import "time"

// Contract описывает договор, созданный из принятого предложения
type Contract struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ProposalID string     `json:"proposal_id"`
	Title      string     `json:"title"`
	Terms      string     `json:"terms"`
	SignedBy   *string    `json:"signed_by,omitempty"`
	SignedAt   *time.Time `json:"signed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
