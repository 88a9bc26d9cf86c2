package proposals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propodocs/internal/httputil"
	"propodocs/internal/logger"
	"propodocs/internal/middleware"
	"propodocs/models"
	"propodocs/pkg/analytics"
	"propodocs/pkg/convert"
	"propodocs/pkg/notify"
	"propodocs/pkg/pdf"
	"propodocs/pkg/storage"
)

// Store описывает операции хранилища, нужные обработчику
type Store interface {
	CreateProposal(ctx context.Context, p models.Proposal) (*models.Proposal, error)
	GetProposal(ctx context.Context, userID, id string) (*models.Proposal, error)
	ListProposals(ctx context.Context, userID string, f storage.ProposalFilter) ([]models.Proposal, error)
	UpdateProposal(ctx context.Context, userID, id string, patch storage.ProposalPatch) (*models.Proposal, error)
	SetProposalStatus(ctx context.Context, userID, id string, from, to models.ProposalStatus) (*models.Proposal, error)
	SetProposalArchived(ctx context.Context, userID, id string, archived bool) error
	EnsureShareToken(ctx context.Context, userID, id string) (string, error)
	DeleteProposal(ctx context.Context, userID, id string) error
	CreateContract(ctx context.Context, c models.Contract) (*models.Contract, error)
	CreateInvoice(ctx context.Context, inv models.Invoice) (*models.Invoice, error)
}

// Notifier отправляет уведомление владельцу
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (*models.Notification, error)
}

// Handler обрабатывает запросы владельца к его предложениям
type Handler struct {
	Store     Store
	Notifier  Notifier
	Renderer  pdf.Renderer
	Templates *pdf.Templates
	BaseURL   string // адрес публичных ссылок, например https://app.propodocs.com
	Logger    *zap.Logger
	now       func() time.Time
}

func NewHandler(store Store, notifier Notifier, renderer pdf.Renderer, templates *pdf.Templates, baseURL string, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	if templates == nil {
		templates = pdf.NewTemplates()
	}
	return &Handler{
		Store:     store,
		Notifier:  notifier,
		Renderer:  renderer,
		Templates: templates,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Logger:    l,
		now:       time.Now,
	}
}

type createRequest struct {
	Title          string          `json:"title" binding:"required"`
	ClientName     string          `json:"client_name"`
	ClientEmail    string          `json:"client_email" binding:"omitempty,email"`
	CalculatorData json.RawMessage `json:"calculator_data"`
	Content        json.RawMessage `json:"content"`
	Theme          json.RawMessage `json:"theme"`
}

type updateRequest struct {
	Title          *string         `json:"title"`
	ClientName     *string         `json:"client_name"`
	ClientEmail    *string         `json:"client_email" binding:"omitempty,email"`
	CalculatorData json.RawMessage `json:"calculator_data"`
	Content        json.RawMessage `json:"content"`
	Theme          json.RawMessage `json:"theme"`
}

type statusRequest struct {
	Status models.ProposalStatus `json:"status" binding:"required"`
}

type convertRequest struct {
	Contract bool   `json:"contract"`
	Invoice  bool   `json:"invoice"`
	Terms    string `json:"terms"`
}

// Create сохраняет новое предложение в статусе черновика
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "invalid data")
		return
	}
	created, err := h.Store.CreateProposal(c.Request.Context(), models.Proposal{
		UserID:         middleware.UserID(c),
		Title:          req.Title,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		CalculatorData: req.CalculatorData,
		Content:        req.Content,
		Theme:          req.Theme,
	})
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "proposal")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// List возвращает предложения пользователя; архивные только по include_archived=true
func (h *Handler) List(c *gin.Context) {
	limit, offset := httputil.Page(c, 50, 200)
	f := storage.ProposalFilter{Page: storage.Page{Limit: limit, Offset: offset}}
	if v := c.Query("include_archived"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			httputil.RespondError(c, http.StatusBadRequest, "include_archived must be a boolean")
			return
		}
		f.IncludeArchived = include
	}
	if v := c.Query("status"); v != "" {
		status := models.ProposalStatus(v)
		if !KnownStatus(status) {
			httputil.RespondError(c, http.StatusBadRequest, "unknown status")
			return
		}
		f.Status = &status
	}

	list, err := h.Store.ListProposals(c.Request.Context(), middleware.UserID(c), f)
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "proposal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": list})
}

// Get возвращает предложение владельца
func (h *Handler) Get(c *gin.Context) {
	p, err := h.Store.GetProposal(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "proposal")
		return
	}
	c.JSON(http.StatusOK, p)
}

// Update меняет переданные поля
func (h *Handler) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "invalid data")
		return
	}
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		httputil.RespondError(c, http.StatusBadRequest, "title must not be empty")
		return
	}
	updated, err := h.Store.UpdateProposal(c.Request.Context(), middleware.UserID(c), c.Param("id"), storage.ProposalPatch{
		Title:          req.Title,
		ClientName:     req.ClientName,
		ClientEmail:    req.ClientEmail,
		CalculatorData: req.CalculatorData,
		Content:        req.Content,
		Theme:          req.Theme,
	})
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "proposal")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Delete удаляет предложение безвозвратно
func (h *Handler) Delete(c *gin.Context) {
	if err := h.Store.DeleteProposal(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "proposal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Archive скрывает предложение из списков и воронки
func (h *Handler) Archive(c *gin.Context) { h.setArchived(c, true) }

// Unarchive возвращает предложение в списки
func (h *Handler) Unarchive(c *gin.Context) { h.setArchived(c, false) }

func (h *Handler) setArchived(c *gin.Context, archived bool) {
	if err := h.Store.SetProposalArchived(c.Request.Context(), middleware.UserID(c), c.Param("id"), archived); err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "proposal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

// Share выдаёт постоянную публичную ссылку на предложение
func (h *Handler) Share(c *gin.Context) {
	token, err := h.Store.EnsureShareToken(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "proposal")
		return
	}
	c.JSON(http.StatusOK, gin.H{"share_token": token, "url": h.BaseURL + "/p/" + token})
}

// SetStatus переводит предложение в новый статус и уведомляет владельца
func (h *Handler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !KnownStatus(req.Status) {
		httputil.RespondError(c, http.StatusBadRequest, "unknown status")
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(c, h.Logger)
	userID := middleware.UserID(c)

	current, err := h.Store.GetProposal(ctx, userID, c.Param("id"))
	if err != nil {
		httputil.RespondStorageError(c, log, err, "proposal")
		return
	}
	if !CanTransition(current.Status, req.Status) {
		httputil.RespondError(c, http.StatusConflict,
			fmt.Sprintf("cannot change status from %s to %s", current.Status, req.Status))
		return
	}
	updated, err := h.Store.SetProposalStatus(ctx, userID, current.ID, current.Status, req.Status)
	if errors.Is(err, storage.ErrConflict) {
		httputil.RespondError(c, http.StatusConflict, "proposal status changed, reload and retry")
		return
	}
	if err != nil {
		httputil.RespondStorageError(c, log, err, "proposal")
		return
	}
	h.notifyStatus(ctx, log, *updated)
	c.JSON(http.StatusOK, updated)
}

// notifyStatus сообщает владельцу о новом статусе
func (h *Handler) notifyStatus(ctx context.Context, log *zap.Logger, p models.Proposal) {
	msg, ok := StatusMessage(p)
	if !ok || h.Notifier == nil {
		return
	}
	if _, err := h.Notifier.Send(ctx, msg); err != nil {
		log.Error("[NOTIFY ERROR] не удалось сохранить уведомление", zap.String("proposal_id", p.ID), zap.Error(err))
	}
}

// StatusMessage строит уведомление о смене статуса; для черновика его нет
func StatusMessage(p models.Proposal) (notify.Message, bool) {
	client := p.ClientName
	if client == "" {
		client = "Your client"
	}
	msg := notify.Message{UserID: p.UserID, Link: "/proposals/" + p.ID}
	switch p.Status {
	case models.StatusSent:
		msg.Type = models.NotifyProposalSent
		msg.Title = "Proposal sent"
		msg.Message = fmt.Sprintf("%q was sent to %s.", p.Title, client)
	case models.StatusViewed:
		msg.Type = models.NotifyProposalViewed
		msg.Title = "Proposal viewed"
		msg.Message = fmt.Sprintf("%s opened %q.", client, p.Title)
	case models.StatusAccepted:
		msg.Type = models.NotifyProposalAccepted
		msg.Title = "Proposal accepted"
		msg.Message = fmt.Sprintf("%s accepted %q.", client, p.Title)
	case models.StatusRejected:
		msg.Type = models.NotifyProposalRejected
		msg.Title = "Proposal rejected"
		msg.Message = fmt.Sprintf("%s declined %q.", client, p.Title)
	default:
		return notify.Message{}, false
	}
	return msg, true
}

// PDF отдаёт предложение в виде PDF-файла
func (h *Handler) PDF(c *gin.Context) {
	log := logger.FromContext(c, h.Logger)
	if h.Renderer == nil {
		httputil.RespondErrorClass(c, http.StatusServiceUnavailable, "unconfigured", "pdf renderer is not configured")
		return
	}
	p, err := h.Store.GetProposal(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		httputil.RespondStorageError(c, log, err, "proposal")
		return
	}
	var annual *float64
	if total, ok := analytics.ExtractAnnualTotal(p.CalculatorData); ok {
		annual = &total
	}
	html, err := h.Templates.ProposalHTML(*p, annual)
	if err != nil {
		log.Error("[PDF ERROR] не удалось собрать HTML предложения", zap.String("proposal_id", p.ID), zap.Error(err))
		httputil.RespondError(c, http.StatusInternalServerError, "internal error")
		return
	}
	data, err := h.Renderer.RenderHTMLToPDF(c.Request.Context(), html, pdf.A4())
	if err != nil {
		log.Error("[PDF ERROR] сервис рендеринга вернул ошибку", zap.String("proposal_id", p.ID), zap.Error(err))
		httputil.RespondError(c, http.StatusBadGateway, "pdf rendering failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="proposal-%s.pdf"`, p.ID))
	c.Data(http.StatusOK, "application/pdf", data)
}

// Convert создаёт договор и/или счёт из принятого предложения
func (h *Handler) Convert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "invalid data")
		return
	}
	if !req.Contract && !req.Invoice {
		httputil.RespondError(c, http.StatusBadRequest, "nothing to convert: set contract and/or invoice")
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(c, h.Logger)

	p, err := h.Store.GetProposal(ctx, middleware.UserID(c), c.Param("id"))
	if err != nil {
		httputil.RespondStorageError(c, log, err, "proposal")
		return
	}

	// сначала проверяем обе заготовки, чтобы не создать договор без счёта
	var contract models.Contract
	var invoice models.Invoice
	if req.Contract {
		if contract, err = convert.Contract(*p, req.Terms); err != nil {
			respondConvertError(c, err)
			return
		}
	}
	if req.Invoice {
		if invoice, err = convert.Invoice(*p, h.now().UTC()); err != nil {
			respondConvertError(c, err)
			return
		}
	}

	out := gin.H{}
	if req.Contract {
		created, err := h.Store.CreateContract(ctx, contract)
		if err != nil {
			httputil.RespondStorageError(c, log, err, "contract")
			return
		}
		out["contract"] = created
	}
	if req.Invoice {
		created, err := h.Store.CreateInvoice(ctx, invoice)
		if err != nil {
			httputil.RespondStorageError(c, log, err, "invoice")
			return
		}
		out["invoice"] = created
	}
	c.JSON(http.StatusCreated, out)
}

func respondConvertError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, convert.ErrNotAccepted):
		httputil.RespondError(c, http.StatusConflict, "only accepted proposals can be converted")
	case errors.Is(err, convert.ErrNoTotal):
		httputil.RespondError(c, http.StatusUnprocessableEntity, "proposal has no annual total to invoice")
	case errors.Is(err, convert.ErrTotalTooLarge):
		httputil.RespondError(c, http.StatusUnprocessableEntity, "annual total exceeds the invoice limit")
	default:
		httputil.RespondError(c, http.StatusInternalServerError, "internal error")
	}
}
