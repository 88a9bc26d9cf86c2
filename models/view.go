package models

import (
	"encoding/json"
	"time"
)

// View фиксирует одну загрузку расшаренного предложения
type View struct {
	ID              string    `json:"id"`
	ProposalID      string    `json:"proposal_id"`
	SessionID       string    `json:"session_id"` // стабильный идентификатор посетителя
	DeviceType      string    `json:"device_type,omitempty"`
	Browser         string    `json:"browser,omitempty"`
	OS              string    `json:"os,omitempty"`
	ViewedAt        time.Time `json:"viewed_at"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"` // обновляется heartbeat-запросом
}

// InteractionType задаёт тип действия посетителя внутри просмотра
type InteractionType string

const (
	InteractionClick  InteractionType = "click"
	InteractionScroll InteractionType = "scroll"
	InteractionHover  InteractionType = "hover"
	InteractionFocus  InteractionType = "focus"
)

// Valid сообщает, относится ли тип к известным
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionClick, InteractionScroll, InteractionHover, InteractionFocus:
		return true
	}
	return false
}

// Interaction фиксирует одно событие внутри просмотра, после записи не меняется
type Interaction struct {
	ID              string          `json:"id"`
	ViewID          string          `json:"view_id"`
	ProposalID      string          `json:"proposal_id"`
	InteractionType InteractionType `json:"interaction_type"`
	ElementID       string          `json:"element_id,omitempty"`
	X               *float64        `json:"x,omitempty"`
	Y               *float64        `json:"y,omitempty"`
	ScrollDepth     *float64        `json:"scroll_depth,omitempty"` // процент прокрутки 0..100
	Payload         json.RawMessage `json:"payload,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}
