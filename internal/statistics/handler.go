package statistics

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"propodocs/internal/httputil"
	"propodocs/internal/logger"
	"propodocs/internal/middleware"
	"propodocs/models"
	"propodocs/pkg/analytics"
)

// Store отдаёт сырые данные для агрегации
type Store interface {
	GetProposal(ctx context.Context, userID, id string) (*models.Proposal, error)
	ListViews(ctx context.Context, proposalID string, since *time.Time) ([]models.View, error)
	ListInteractions(ctx context.Context, proposalID string, since *time.Time) ([]models.Interaction, error)
	ListPipelineProposals(ctx context.Context, userID string) ([]models.Proposal, error)
}

// Handler обслуживает HTTP-запросы, связанные со статистикой.
type Handler struct {
	Store  Store
	Logger *zap.Logger
}

// NewHandler создаёт новый обработчик статистики.
func NewHandler(store Store, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Handler{Store: store, Logger: l}
}

// Analytics собирает сводку по просмотрам и действиям одного предложения
func (h *Handler) Analytics(c *gin.Context) {
	views, interactions, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, analytics.ComputeAnalytics(views, interactions))
}

// Sessions возвращает просмотры с количеством действий в каждом
func (h *Handler) Sessions(c *gin.Context) {
	views, interactions, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": analytics.ComputeSessions(views, interactions)})
}

// load проверяет владельца и параллельно читает просмотры и действия
func (h *Handler) load(c *gin.Context) ([]models.View, []models.Interaction, bool) {
	log := logger.FromContext(c, h.Logger)
	since, err := parseSince(c.Query("since"))
	if err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "since must be RFC 3339 or YYYY-MM-DD")
		return nil, nil, false
	}

	p, err := h.Store.GetProposal(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		httputil.RespondStorageError(c, log, err, "proposal")
		return nil, nil, false
	}

	var views []models.View
	var interactions []models.Interaction
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		views, err = h.Store.ListViews(ctx, p.ID, since)
		return err
	})
	g.Go(func() error {
		var err error
		interactions, err = h.Store.ListInteractions(ctx, p.ID, since)
		return err
	})
	if err := g.Wait(); err != nil {
		httputil.RespondStorageError(c, log, err, "analytics")
		return nil, nil, false
	}
	return views, interactions, true
}

func parseSince(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Pipeline сворачивает неархивные предложения пользователя в воронку
func (h *Handler) Pipeline(c *gin.Context) {
	log := logger.FromContext(c, h.Logger)
	list, err := h.Store.ListPipelineProposals(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		httputil.RespondStorageError(c, log, err, "pipeline")
		return
	}

	values := make([]models.ProposalValue, 0, len(list))
	for _, p := range list {
		values = append(values, analytics.ProposalValueOf(p.Status, p.CalculatorData))
	}
	snap, unknown := analytics.ComputePipeline(values)
	if len(unknown) > 0 {
		statuses := make([]string, 0, len(unknown))
		for _, s := range unknown {
			statuses = append(statuses, string(s))
		}
		log.Warn("в воронке встретились неизвестные статусы", zap.Strings("statuses", statuses))
	}
	c.JSON(http.StatusOK, snap)
}
