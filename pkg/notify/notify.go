// Package notify рассылает уведомления владельцу аккаунта: запись внутри приложения
// создаётся всегда, внешние каналы отправляются по настройкам пользователя.
package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"propodocs/models"
)

// Store хранит уведомления, настройки и контакты пользователя
type Store interface {
	CreateNotification(ctx context.Context, n models.Notification) (*models.Notification, error)
	GetNotificationPreference(ctx context.Context, userID string, t models.NotificationType) (models.NotificationPreference, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// EmailSender доставляет письмо
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender доставляет SMS. Необязателен: без учётных данных сервис создаётся без него.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// TelegramSender доставляет сообщение пользователю Telegram по username
type TelegramSender interface {
	SendTelegram(ctx context.Context, username, text string) error
}

// Message описывает одно уведомление
type Message struct {
	UserID  string
	Type    models.NotificationType
	Title   string
	Message string
	Link    string
}

// smsByDefault перечисляет события, для которых SMS включены без явной настройки
var smsByDefault = map[models.NotificationType]bool{
	models.NotifyProposalAccepted: true,
	models.NotifyInvoicePaid:      true,
}

// EmailEnabled сообщает, что email включён, если пользователь его не выключил
func EmailEnabled(p models.NotificationPreference) bool {
	return p.Email == nil || *p.Email
}

// SMSEnabled берёт явную настройку либо значение по умолчанию для события
func SMSEnabled(p models.NotificationPreference) bool {
	if p.SMS != nil {
		return *p.SMS
	}
	return smsByDefault[p.Type]
}

// TelegramEnabled сообщает, что Telegram включён, если пользователь его не выключил
func TelegramEnabled(p models.NotificationPreference) bool {
	return p.Telegram == nil || *p.Telegram
}

// Service отправляет уведомления по всем каналам
type Service struct {
	store    Store
	email    EmailSender
	sms      SMSSender
	telegram TelegramSender
	baseURL  string
	counter  func(kind string)
	logger   *zap.Logger
}

// Option настраивает необязательные каналы сервиса
type Option func(*Service)

// WithSMS подключает SMS-канал; nil оставляет его выключенным
func WithSMS(s SMSSender) Option {
	return func(svc *Service) { svc.sms = s }
}

// WithTelegram подключает Telegram-канал
func WithTelegram(t TelegramSender) Option {
	return func(svc *Service) { svc.telegram = t }
}

// WithBaseURL задаёт адрес приложения для абсолютных ссылок во внешних каналах
func WithBaseURL(u string) Option {
	return func(svc *Service) { svc.baseURL = strings.TrimRight(u, "/") }
}

// WithCounter вызывается после сохранения каждого уведомления с его типом
func WithCounter(fn func(kind string)) Option {
	return func(svc *Service) { svc.counter = fn }
}

func NewService(store Store, email EmailSender, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{store: store, email: email, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HasSMS сообщает, подключён ли SMS-канал
func (s *Service) HasSMS() bool { return s.sms != nil }

// Send сохраняет уведомление и рассылает его по включённым каналам.
// Ошибка возвращается только если не удалось сохранить запись; сбои каналов логируются.
func (s *Service) Send(ctx context.Context, msg Message) (*models.Notification, error) {
	n, err := s.store.CreateNotification(ctx, models.Notification{
		UserID:  msg.UserID,
		Type:    msg.Type,
		Title:   msg.Title,
		Message: msg.Message,
		Link:    msg.Link,
	})
	if err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}
	if s.counter != nil {
		s.counter(string(msg.Type))
	}

	log := s.logger.With(zap.String("user_id", msg.UserID), zap.String("type", string(msg.Type)))

	pref, err := s.store.GetNotificationPreference(ctx, msg.UserID, msg.Type)
	if err != nil {
		log.Warn("не удалось загрузить настройки уведомлений, используются значения по умолчанию", zap.Error(err))
		pref = models.NotificationPreference{UserID: msg.UserID, Type: msg.Type}
	}
	user, err := s.store.GetUser(ctx, msg.UserID)
	if err != nil {
		log.Error("не удалось загрузить контакты пользователя, внешние каналы пропущены", zap.Error(err))
		return n, nil
	}

	text := s.plainText(msg)

	if s.email != nil && user.Email != "" && EmailEnabled(pref) {
		if err := s.email.SendEmail(ctx, user.Email, msg.Title, text); err != nil {
			log.Warn("ошибка отправки email", zap.Error(err))
		}
	}
	if s.sms != nil && user.Phone != "" && SMSEnabled(pref) {
		if err := s.sms.SendSMS(ctx, user.Phone, text); err != nil {
			log.Warn("ошибка отправки sms", zap.Error(err))
		}
	}
	if s.telegram != nil && user.TelegramUsername != "" && TelegramEnabled(pref) {
		if err := s.telegram.SendTelegram(ctx, user.TelegramUsername, text); err != nil {
			log.Warn("ошибка отправки в telegram", zap.Error(err))
		}
	}
	return n, nil
}

func (s *Service) plainText(msg Message) string {
	var b strings.Builder
	b.WriteString(msg.Title)
	if msg.Message != "" {
		b.WriteString("\n\n")
		b.WriteString(msg.Message)
	}
	if msg.Link != "" {
		b.WriteString("\n")
		if strings.HasPrefix(msg.Link, "/") {
			b.WriteString(s.baseURL)
		}
		b.WriteString(msg.Link)
	}
	return b.String()
}
