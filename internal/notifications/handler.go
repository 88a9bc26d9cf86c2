package notifications

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propodocs/internal/httputil"
	"propodocs/internal/logger"
	"propodocs/internal/middleware"
	"propodocs/models"
	"propodocs/pkg/notify"
	"propodocs/pkg/storage"
)

type Store interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, page storage.Page) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkNotificationsRead(ctx context.Context, userID string, ids []string) (int64, error)
	ListNotificationPreferences(ctx context.Context, userID string) ([]models.NotificationPreference, error)
	UpsertNotificationPreference(ctx context.Context, p models.NotificationPreference) error
}

// maxBulkRead ограничивает число идентификаторов в одном запросе массового прочтения
const maxBulkRead = 500

type Handler struct {
	Store Store
	// Channels сообщает, какие внешние каналы подключены на сервере
	Channels Channels
	Logger   *zap.Logger
}

// Channels показывает, какие каналы доставки настроены
type Channels struct {
	SMS      bool `json:"sms"`
	Telegram bool `json:"telegram"`
}

func NewHandler(store Store, channels Channels, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Handler{Store: store, Channels: channels, Logger: l}
}

// EffectivePreference содержит итоговые флаги каналов с учётом значений по умолчанию
type EffectivePreference struct {
	Type     models.NotificationType `json:"type"`
	Email    bool                    `json:"email"`
	SMS      bool                    `json:"sms"`
	Telegram bool                    `json:"telegram"`
}

type preferenceRequest struct {
	Type     models.NotificationType `json:"type" binding:"required"`
	Email    *bool                   `json:"email"`
	SMS      *bool                   `json:"sms"`
	Telegram *bool                   `json:"telegram"`
}

type bulkReadRequest struct {
	IDs []string `json:"ids" binding:"required,min=1"`
}

// List возвращает уведомления пользователя; unread=true оставляет только непрочитанные
func (h *Handler) List(c *gin.Context) {
	limit, offset := httputil.Page(c, 50, 200)
	unread := false
	if v := c.Query("unread"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			httputil.RespondError(c, http.StatusBadRequest, "unread must be a boolean")
			return
		}
		unread = b
	}
	list, err := h.Store.ListNotifications(c.Request.Context(), middleware.UserID(c), unread, storage.Page{Limit: limit, Offset: offset})
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkRead отмечает одно уведомление прочитанным
func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.Store.MarkNotificationRead(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

// MarkManyRead отмечает прочитанными переданные уведомления
func (h *Handler) MarkManyRead(c *gin.Context) {
	var req bulkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) > maxBulkRead {
		httputil.RespondError(c, http.StatusBadRequest, "ids must contain 1 to 500 identifiers")
		return
	}
	n, err := h.Store.MarkNotificationsRead(c.Request.Context(), middleware.UserID(c), req.IDs)
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "notification")
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

// Preferences возвращает итоговые настройки по всем типам событий
func (h *Handler) Preferences(c *gin.Context) {
	userID := middleware.UserID(c)
	stored, err := h.Store.ListNotificationPreferences(c.Request.Context(), userID)
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "notification preference")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"preferences": Effective(userID, stored),
		"channels":    h.Channels,
	})
}

// Effective дополняет сохранённые настройки значениями по умолчанию для всех типов
func Effective(userID string, stored []models.NotificationPreference) []EffectivePreference {
	byType := make(map[models.NotificationType]models.NotificationPreference, len(stored))
	for _, p := range stored {
		byType[p.Type] = p
	}
	out := make([]EffectivePreference, 0, len(models.NotificationTypes))
	for _, t := range models.NotificationTypes {
		p, ok := byType[t]
		if !ok {
			p = models.NotificationPreference{UserID: userID, Type: t}
		}
		out = append(out, effective(p))
	}
	return out
}

func effective(p models.NotificationPreference) EffectivePreference {
	return EffectivePreference{
		Type:     p.Type,
		Email:    notify.EmailEnabled(p),
		SMS:      notify.SMSEnabled(p),
		Telegram: notify.TelegramEnabled(p),
	}
}

// UpdatePreference сохраняет выбор каналов для одного типа события
func (h *Handler) UpdatePreference(c *gin.Context) {
	var req preferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Type.Valid() {
		httputil.RespondError(c, http.StatusBadRequest, "unknown notification type")
		return
	}
	p := models.NotificationPreference{
		UserID:   middleware.UserID(c),
		Type:     req.Type,
		Email:    req.Email,
		SMS:      req.SMS,
		Telegram: req.Telegram,
	}
	if err := h.Store.UpsertNotificationPreference(c.Request.Context(), p); err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "notification preference")
		return
	}
	c.JSON(http.StatusOK, effective(p))
}
