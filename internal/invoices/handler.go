package invoices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"propodocs/internal/httputil"
	"propodocs/internal/logger"
	"propodocs/internal/middleware"
	"propodocs/models"
	"propodocs/pkg/convert"
	"propodocs/pkg/notify"
	"propodocs/pkg/payment"
	"propodocs/pkg/pdf"
	"propodocs/pkg/storage"
)

// SignatureHeader называет заголовок с подписью вебхука
const SignatureHeader = "Stripe-Signature"

// maxWebhookBody ограничивает тело вебхука
const maxWebhookBody = 1 << 20

type Store interface {
	GetProposal(ctx context.Context, userID, id string) (*models.Proposal, error)
	CreateInvoice(ctx context.Context, inv models.Invoice) (*models.Invoice, error)
	GetInvoice(ctx context.Context, userID, id string) (*models.Invoice, error)
	GetInvoiceByID(ctx context.Context, id string) (*models.Invoice, error)
	ListInvoices(ctx context.Context, userID string, status *models.InvoiceStatus, page storage.Page) ([]models.Invoice, error)
	SetInvoicePaymentURL(ctx context.Context, userID, id, url string) error
	MarkInvoicePaid(ctx context.Context, id string, paidAt time.Time) (bool, error)
}

// Payments создаёт оплату и проверяет вебхуки провайдера
type Payments interface {
	CreateCheckout(ctx context.Context, inv models.Invoice) (*payment.Checkout, error)
	VerifyWebhookSignature(payload []byte, header string) (*payment.Event, error)
}

type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (*models.Notification, error)
}

type Handler struct {
	Store     Store
	Payments  Payments
	Notifier  Notifier
	Renderer  pdf.Renderer
	Templates *pdf.Templates
	Logger    *zap.Logger
	now       func() time.Time
}

func NewHandler(store Store, payments Payments, notifier Notifier, renderer pdf.Renderer, templates *pdf.Templates, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	if templates == nil {
		templates = pdf.NewTemplates()
	}
	return &Handler{
		Store:     store,
		Payments:  payments,
		Notifier:  notifier,
		Renderer:  renderer,
		Templates: templates,
		Logger:    l,
		now:       time.Now,
	}
}

type createRequest struct {
	ProposalID  string            `json:"proposal_id"`
	ClientName  string            `json:"client_name"`
	ClientEmail string            `json:"client_email" binding:"omitempty,email"`
	Currency    string            `json:"currency" binding:"omitempty,len=3,alpha"`
	Items       []models.LineItem `json:"items" binding:"dive"`
	DueAt       *time.Time        `json:"due_at"`
}

// Create выставляет счёт: по принятому предложению или по переданным строкам
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "invalid data")
		return
	}
	ctx := c.Request.Context()
	log := logger.FromContext(c, h.Logger)
	userID := middleware.UserID(c)

	var inv models.Invoice
	if req.ProposalID != "" {
		p, err := h.Store.GetProposal(ctx, userID, req.ProposalID)
		if err != nil {
			httputil.RespondStorageError(c, log, err, "proposal")
			return
		}
		if inv, err = convert.Invoice(*p, h.now().UTC()); err != nil {
			switch {
			case errors.Is(err, convert.ErrNotAccepted):
				httputil.RespondError(c, http.StatusConflict, "only accepted proposals can be invoiced")
			case errors.Is(err, convert.ErrTotalTooLarge):
				httputil.RespondError(c, http.StatusUnprocessableEntity, "annual total exceeds the invoice limit")
			default:
				httputil.RespondError(c, http.StatusUnprocessableEntity, "proposal has no annual total to invoice")
			}
			return
		}
		if req.DueAt != nil {
			inv.DueAt = req.DueAt
		}
	} else {
		if len(req.Items) == 0 {
			httputil.RespondError(c, http.StatusBadRequest, "items or proposal_id is required")
			return
		}
		if strings.TrimSpace(req.ClientName) == "" {
			httputil.RespondError(c, http.StatusBadRequest, "client_name is required")
			return
		}
		inv = models.Invoice{
			UserID:      userID,
			ClientName:  req.ClientName,
			ClientEmail: req.ClientEmail,
			Items:       req.Items,
			DueAt:       req.DueAt,
		}
	}
	inv.Currency = strings.ToLower(req.Currency)

	created, err := h.Store.CreateInvoice(ctx, inv)
	if err != nil {
		httputil.RespondStorageError(c, log, err, "invoice")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// List возвращает счета пользователя, можно отфильтровать по статусу
func (h *Handler) List(c *gin.Context) {
	limit, offset := httputil.Page(c, 50, 200)
	var status *models.InvoiceStatus
	if v := c.Query("status"); v != "" {
		s := models.InvoiceStatus(v)
		switch s {
		case models.InvoiceDraft, models.InvoiceOpen, models.InvoicePaid, models.InvoiceVoid:
			status = &s
		default:
			httputil.RespondError(c, http.StatusBadRequest, "unknown status")
			return
		}
	}
	list, err := h.Store.ListInvoices(c.Request.Context(), middleware.UserID(c), status, storage.Page{Limit: limit, Offset: offset})
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "invoice")
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": list})
}

// Get возвращает счёт владельца
func (h *Handler) Get(c *gin.Context) {
	inv, err := h.Store.GetInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		httputil.RespondStorageError(c, logger.FromContext(c, h.Logger), err, "invoice")
		return
	}
	c.JSON(http.StatusOK, inv)
}

// Checkout создаёт страницу оплаты и сохраняет её адрес в счёте
func (h *Handler) Checkout(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(c, h.Logger)
	userID := middleware.UserID(c)

	inv, err := h.Store.GetInvoice(ctx, userID, c.Param("id"))
	if err != nil {
		httputil.RespondStorageError(c, log, err, "invoice")
		return
	}
	if inv.Status != models.InvoiceOpen {
		httputil.RespondError(c, http.StatusConflict, fmt.Sprintf("invoice is %s", inv.Status))
		return
	}

	checkout, err := h.Payments.CreateCheckout(ctx, *inv)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrUnconfigured):
			httputil.RespondErrorClass(c, http.StatusServiceUnavailable, "unconfigured", "payments are not configured")
		case errors.Is(err, payment.ErrInvalidPayload):
			httputil.RespondError(c, http.StatusUnprocessableEntity, "invoice cannot be paid online")
		default:
			log.Error("[PAYMENT ERROR] не удалось создать страницу оплаты", zap.String("invoice_id", inv.ID), zap.Error(err))
			httputil.RespondError(c, http.StatusBadGateway, "payment provider error")
		}
		return
	}
	if err := h.Store.SetInvoicePaymentURL(ctx, userID, inv.ID, checkout.URL); err != nil {
		httputil.RespondStorageError(c, log, err, "invoice")
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_url": checkout.URL, "checkout_id": checkout.ID})
}

// PDF отдаёт счёт в виде PDF-файла
func (h *Handler) PDF(c *gin.Context) {
	log := logger.FromContext(c, h.Logger)
	if h.Renderer == nil {
		httputil.RespondErrorClass(c, http.StatusServiceUnavailable, "unconfigured", "pdf renderer is not configured")
		return
	}
	inv, err := h.Store.GetInvoice(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		httputil.RespondStorageError(c, log, err, "invoice")
		return
	}
	html, err := h.Templates.InvoiceHTML(*inv)
	if err != nil {
		log.Error("[PDF ERROR] не удалось собрать HTML счёта", zap.String("invoice_id", inv.ID), zap.Error(err))
		httputil.RespondError(c, http.StatusInternalServerError, "internal error")
		return
	}
	data, err := h.Renderer.RenderHTMLToPDF(c.Request.Context(), html, pdf.A4())
	if err != nil {
		log.Error("[PDF ERROR] сервис рендеринга вернул ошибку", zap.String("invoice_id", inv.ID), zap.Error(err))
		httputil.RespondError(c, http.StatusBadGateway, "pdf rendering failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, inv.Number))
	c.Data(http.StatusOK, "application/pdf", data)
}

// Webhook принимает события оплаты. На неизвестные события и счета отвечаем 200,
// чтобы провайдер не повторял доставку.
func (h *Handler) Webhook(c *gin.Context) {
	log := logger.FromContext(c, h.Logger)
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "cannot read body")
		return
	}

	event, err := h.Payments.VerifyWebhookSignature(payload, c.GetHeader(SignatureHeader))
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrUnconfigured):
			httputil.RespondErrorClass(c, http.StatusServiceUnavailable, "unconfigured", "payments are not configured")
		case errors.Is(err, payment.ErrInvalidSignature):
			log.Warn("вебхук с неверной подписью", zap.Error(err))
			httputil.RespondErrorClass(c, http.StatusBadRequest, "invalid_signature", "invalid signature")
		default:
			httputil.RespondErrorClass(c, http.StatusBadRequest, "invalid_payload", "invalid payload")
		}
		return
	}

	if event.Type != payment.EventCheckoutCompleted {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if _, err := uuid.Parse(event.InvoiceID); err != nil {
		log.Warn("событие оплаты без корректного идентификатора счёта",
			zap.String("event_id", event.ID), zap.String("invoice_id", event.InvoiceID))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	ctx := c.Request.Context()
	paidAt := event.Created
	if paidAt.IsZero() {
		paidAt = h.now().UTC()
	}
	changed, err := h.Store.MarkInvoicePaid(ctx, event.InvoiceID, paidAt)
	if err != nil {
		// 500 заставит провайдера повторить доставку
		httputil.RespondStorageError(c, log, err, "invoice")
		return
	}
	if changed {
		h.notifyPaid(ctx, log, event.InvoiceID)
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) notifyPaid(ctx context.Context, log *zap.Logger, invoiceID string) {
	if h.Notifier == nil {
		return
	}
	inv, err := h.Store.GetInvoiceByID(ctx, invoiceID)
	if err != nil {
		log.Error("[NOTIFY ERROR] не удалось загрузить оплаченный счёт", zap.String("invoice_id", invoiceID), zap.Error(err))
		return
	}
	_, err = h.Notifier.Send(ctx, notify.Message{
		UserID:  inv.UserID,
		Type:    models.NotifyInvoicePaid,
		Title:   "Invoice paid",
		Message: fmt.Sprintf("%s paid invoice %s (%.2f %s).", inv.ClientName, inv.Number, float64(inv.Total)/100, strings.ToUpper(inv.Currency)),
		Link:    "/invoices/" + inv.ID,
	})
	if err != nil {
		log.Error("[NOTIFY ERROR] не удалось сохранить уведомление", zap.String("invoice_id", invoiceID), zap.Error(err))
	}
}
