package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"propodocs/internal/httputil"
	"propodocs/internal/logger"
	"propodocs/internal/proposals"
	"propodocs/models"
	"propodocs/pkg/notify"
	"propodocs/pkg/storage"
)

// Store описывает операции хранилища для публичной страницы
type Store interface {
	GetProposalByShareToken(ctx context.Context, token string) (*models.Proposal, error)
	SetProposalStatus(ctx context.Context, userID, id string, from, to models.ProposalStatus) (*models.Proposal, error)
	MarkProposalViewed(ctx context.Context, id string) (bool, error)
	CreateView(ctx context.Context, v models.View) (*models.View, error)
	UpdateViewDuration(ctx context.Context, proposalID, id string, seconds int) error
	CreateInteraction(ctx context.Context, in models.Interaction) (*models.Interaction, error)
}

// Notifier отправляет уведомление владельцу
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (*models.Notification, error)
}

// MaxDurationSeconds ограничивает длительность одного просмотра сутками
const MaxDurationSeconds = 24 * 60 * 60

type Handler struct {
	Store    Store
	Notifier Notifier
	Logger   *zap.Logger
}

func NewHandler(store Store, notifier Notifier, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Handler{Store: store, Notifier: notifier, Logger: l}
}

// publicProposal показывает клиенту предложение без владельца и служебных полей
type publicProposal struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	ClientName     string                `json:"client_name"`
	Status         models.ProposalStatus `json:"status"`
	CalculatorData json.RawMessage       `json:"calculator_data,omitempty"`
	Content        json.RawMessage       `json:"content,omitempty"`
	Theme          json.RawMessage       `json:"theme,omitempty"`
}

type viewRequest struct {
	SessionID  string `json:"session_id" binding:"required,max=128"`
	DeviceType string `json:"device_type" binding:"max=32"`
	Browser    string `json:"browser" binding:"max=64"`
	OS         string `json:"os" binding:"max=64"`
}

type heartbeatRequest struct {
	DurationSeconds *int `json:"duration_seconds" binding:"required"`
}

type interactionRequest struct {
	InteractionType models.InteractionType `json:"interaction_type" binding:"required"`
	ElementID       string                 `json:"element_id" binding:"max=256"`
	X               *float64               `json:"x"`
	Y               *float64               `json:"y"`
	ScrollDepth     *float64               `json:"scroll_depth"`
	Payload         json.RawMessage        `json:"payload"`
}

type respondRequest struct {
	Decision models.ProposalStatus `json:"decision" binding:"required"`
}

// proposal находит предложение по токену из пути; при ошибке ответ уже отправлен
func (h *Handler) proposal(c *gin.Context) (*models.Proposal, bool) {
	p, err := h.Store.GetProposalByShareToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "proposal")
		return nil, false
	}
	return p, true
}

// viewID проверяет формат идентификатора просмотра до обращения к БД
func viewID(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("viewId"))
	if err != nil {
		httputil.RespondError(c, http.StatusNotFound, "view not found")
		return "", false
	}
	return id.String(), true
}

// Get отдаёт расшаренное предложение клиенту
func (h *Handler) Get(c *gin.Context) {
	p, ok := h.proposal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, publicProposal{
		ID:             p.ID,
		Title:          p.Title,
		ClientName:     p.ClientName,
		Status:         p.Status,
		CalculatorData: p.CalculatorData,
		Content:        p.Content,
		Theme:          p.Theme,
	})
}

// CreateView записывает просмотр. Первый просмотр отправленного предложения
// переводит его в viewed и уведомляет владельца.
func (h *Handler) CreateView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "session_id is required")
		return
	}
	p, ok := h.proposal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(c, h.Logger)

	view, err := h.Store.CreateView(ctx, models.View{
		ProposalID: p.ID,
		SessionID:  req.SessionID,
		DeviceType: req.DeviceType,
		Browser:    req.Browser,
		OS:         req.OS,
	})
	if err != nil {
		httputil.RespondStorageError(c, log, err, "view")
		return
	}

	changed, err := h.Store.MarkProposalViewed(ctx, p.ID)
	if err != nil {
		// просмотр уже записан, статус догонит следующий просмотр
		log.Warn("не удалось отметить предложение просмотренным", zap.String("proposal_id", p.ID), zap.Error(err))
	}
	if changed {
		p.Status = models.StatusViewed
		h.notify(ctx, log, *p)
	}
	c.JSON(http.StatusCreated, view)
}

// Heartbeat продлевает длительность просмотра; значение только растёт
func (h *Handler) Heartbeat(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}
	var req heartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil || *req.DurationSeconds < 0 {
		httputil.RespondError(c, http.StatusBadRequest, "duration_seconds must be a non-negative integer")
		return
	}
	p, ok := h.proposal(c)
	if !ok {
		return
	}
	seconds := *req.DurationSeconds
	if seconds > MaxDurationSeconds {
		seconds = MaxDurationSeconds
	}
	if err := h.Store.UpdateViewDuration(c.Request.Context(), p.ID, id, seconds); err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "view")
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateInteraction записывает действие посетителя внутри просмотра
func (h *Handler) CreateInteraction(c *gin.Context) {
	id, ok := viewID(c)
	if !ok {
		return
	}
	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "invalid data")
		return
	}
	if !req.InteractionType.Valid() {
		httputil.RespondError(c, http.StatusBadRequest,
			fmt.Sprintf("unknown interaction_type %q", req.InteractionType))
		return
	}
	if req.ScrollDepth != nil && (*req.ScrollDepth < 0 || *req.ScrollDepth > 100) {
		httputil.RespondError(c, http.StatusBadRequest, "scroll_depth must be between 0 and 100")
		return
	}
	p, ok := h.proposal(c)
	if !ok {
		return
	}
	created, err := h.Store.CreateInteraction(c.Request.Context(), models.Interaction{
		ViewID:          id,
		ProposalID:      p.ID,
		InteractionType: req.InteractionType,
		ElementID:       req.ElementID,
		X:               req.X,
		Y:               req.Y,
		ScrollDepth:     req.ScrollDepth,
		Payload:         req.Payload,
		Timestamp:       time.Now().UTC(),
	})
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "view")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Respond фиксирует решение клиента: принять или отклонить
func (h *Handler) Respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil ||
		(req.Decision != models.StatusAccepted && req.Decision != models.StatusRejected) {
		httputil.RespondError(c, http.StatusBadRequest, "decision must be accepted or rejected")
		return
	}
	p, ok := h.proposal(c)
	if !ok {
		return
	}
	if !proposals.CanTransition(p.Status, req.Decision) {
		httputil.RespondError(c, http.StatusConflict, fmt.Sprintf("proposal is already %s", p.Status))
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(c, h.Logger)
	updated, err := h.Store.SetProposalStatus(ctx, p.UserID, p.ID, p.Status, req.Decision)
	if errors.Is(err, storage.ErrConflict) {
		httputil.RespondError(c, http.StatusConflict, "proposal has already been answered")
		return
	}
	if err != nil {
		httputil.RespondStorageError(c, log, err, "proposal")
		return
	}
	h.notify(ctx, log, *updated)
	c.JSON(http.StatusOK, gin.H{"status": updated.Status})
}

func (h *Handler) notify(ctx context.Context, log *zap.Logger, p models.Proposal) {
	msg, ok := proposals.StatusMessage(p)
	if !ok || h.Notifier == nil {
		return
	}
	if _, err := h.Notifier.Send(ctx, msg); err != nil {
		log.Error("[NOTIFY ERROR] не удалось сохранить уведомление", zap.String("proposal_id", p.ID), zap.Error(err))
	}
}
