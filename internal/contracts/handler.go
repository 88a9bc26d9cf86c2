package contracts

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propodocs/internal/httputil"
	"propodocs/internal/logger"
	"propodocs/internal/middleware"
	"propodocs/models"
	"propodocs/pkg/convert"
	"propodocs/pkg/notify"
)

type Store interface {
	GetProposal(ctx context.Context, userID, id string) (*models.Proposal, error)
	CreateContract(ctx context.Context, c models.Contract) (*models.Contract, error)
	GetContract(ctx context.Context, userID, id string) (*models.Contract, error)
	SignContract(ctx context.Context, userID, id, signer string, at time.Time) (*models.Contract, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (*models.Notification, error)
}

type Handler struct {
	Store    Store
	Notifier Notifier
	Logger   *zap.Logger
	now      func() time.Time
}

func NewHandler(store Store, notifier Notifier, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Handler{Store: store, Notifier: notifier, Logger: l, now: time.Now}
}

type createRequest struct {
	ProposalID string `json:"proposal_id" binding:"required"`
	Terms      string `json:"terms"`
}

type signRequest struct {
	SignerName string `json:"signer_name" binding:"required,max=200"`
}

// Create создаёт договор из принятого предложения
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "proposal_id is required")
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(c, h.Logger)

	p, err := h.Store.GetProposal(ctx, middleware.UserID(c), req.ProposalID)
	if err != nil {
		httputil.RespondStorageError(c, log, err, "proposal")
		return
	}
	draft, err := convert.Contract(*p, req.Terms)
	if err != nil {
		httputil.RespondError(c, http.StatusConflict, "only accepted proposals can become contracts")
		return
	}
	created, err := h.Store.CreateContract(ctx, draft)
	if err != nil {
		httputil.RespondStorageError(c, log, err, "contract")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Get возвращает договор владельца
func (h *Handler) Get(c *gin.Context) {
	ct, err := h.Store.GetContract(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "contract")
		return
	}
	c.JSON(http.StatusOK, ct)
}

// Sign фиксирует подпись клиента; подписать договор можно один раз
func (h *Handler) Sign(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SignerName) == "" {
		httputil.RespondError(c, http.StatusBadRequest, "signer_name is required")
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(c, h.Logger)
	userID := middleware.UserID(c)

	signed, err := h.Store.SignContract(ctx, userID, c.Param("id"), strings.TrimSpace(req.SignerName), h.now().UTC())
	if err != nil {
		httputil.RespondStorageError(c, log, err, "contract")
		return
	}

	if h.Notifier != nil {
		_, err = h.Notifier.Send(ctx, notify.Message{
			UserID:  userID,
			Type:    models.NotifyContractSigned,
			Title:   "Contract signed",
			Message: fmt.Sprintf("%s signed %q.", *signed.SignedBy, signed.Title),
			Link:    "/contracts/" + signed.ID,
		})
		if err != nil {
			log.Error("[NOTIFY ERROR] не удалось сохранить уведомление", zap.String("contract_id", signed.ID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, signed)
}
