package models

import "time"

// NotificationType задаёт событие, о котором уведомляется пользователь
type NotificationType string

const (
	NotifyProposalSent     NotificationType = "proposal_sent"
	NotifyProposalViewed   NotificationType = "proposal_viewed"
	NotifyProposalAccepted NotificationType = "proposal_accepted"
	NotifyProposalRejected NotificationType = "proposal_rejected"
	NotifyInvoicePaid      NotificationType = "invoice_paid"
	NotifyContractSigned   NotificationType = "contract_signed"
)

// NotificationTypes перечисляет все события, для которых есть настройки
var NotificationTypes = []NotificationType{
	NotifyProposalSent, NotifyProposalViewed, NotifyProposalAccepted,
	NotifyProposalRejected, NotifyInvoicePaid, NotifyContractSigned,
}

// Valid сообщает, относится ли тип к известным
func (t NotificationType) Valid() bool {
	for _, known := range NotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Notification представляет уведомление внутри приложения
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationPreference хранит настройки каналов для пары пользователь/событие.
// nil означает, что пользователь ничего не выбирал и действует значение по умолчанию.
type NotificationPreference struct {
	UserID   string           `json:"user_id"`
	Type     NotificationType `json:"type"`
	Email    *bool            `json:"email,omitempty"`
	SMS      *bool            `json:"sms,omitempty"`
	Telegram *bool            `json:"telegram,omitempty"`
}

// User содержит контактные данные владельца аккаунта для доставки уведомлений
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Phone            string `json:"phone,omitempty"`
	TelegramUsername string `json:"telegram_username,omitempty"`
}
