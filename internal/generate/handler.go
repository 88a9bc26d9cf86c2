package generate

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propodocs/internal/httputil"
	"propodocs/internal/logger"
	"propodocs/models"
	"propodocs/pkg/generation"
)

// Generator описывает то, что обработчику нужно от pkg/generation
type Generator interface {
	Calculator(ctx context.Context, prompt string) (*generation.CalculatorResult, error)
	ProposalContent(ctx context.Context, prompt string, calc *models.CalculatorSchema) (*generation.ContentResult, error)
	EditBlock(ctx context.Context, kind generation.BlockKind, block map[string]any, instruction string) (*generation.EditResult, error)
}

type Handler struct {
	Gen    Generator
	Logger *zap.Logger
}

func NewHandler(gen Generator, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Handler{Gen: gen, Logger: l}
}

type promptRequest struct {
	Prompt     string                   `json:"prompt" binding:"required"`
	Calculator *models.CalculatorSchema `json:"calculator"`
}

type editRequest struct {
	Kind        generation.BlockKind `json:"kind" binding:"required"`
	Block       map[string]any       `json:"block" binding:"required"`
	Instruction string               `json:"instruction" binding:"required"`
}

// Calculator генерирует схему калькулятора по описанию
func (h *Handler) Calculator(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "prompt is required")
		return
	}
	res, err := h.Gen.Calculator(c.Request.Context(), req.Prompt)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Proposal генерирует блоки контента предложения
func (h *Handler) Proposal(c *gin.Context) {
	var req promptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "prompt is required")
		return
	}
	res, err := h.Gen.ProposalContent(c.Request.Context(), req.Prompt, req.Calculator)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// EditBlock правит один фрагмент калькулятора по инструкции
func (h *Handler) EditBlock(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "kind, block and instruction are required")
		return
	}
	res, err := h.Gen.EditBlock(c.Request.Context(), req.Kind, req.Block, req.Instruction)
	if err != nil {
		h.respondGenerationError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) respondGenerationError(c *gin.Context, err error) {
	log := logger.FromContext(c, h.Logger)
	var exhausted *generation.ExhaustedError
	switch {
	case errors.Is(err, generation.ErrInvalidBlock):
		httputil.RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, generation.ErrUnconfigured):
		httputil.RespondErrorClass(c, http.StatusServiceUnavailable, "unconfigured", "no AI provider is configured")
	case errors.As(err, &exhausted):
		log.Error("[GENERATION ERROR] все провайдеры завершились сбоем", zap.Int("attempts", len(exhausted.Attempts)))
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
			"error":    "all AI providers failed",
			"class":    "exhausted",
			"attempts": exhausted.Attempts,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httputil.RespondErrorClass(c, http.StatusGatewayTimeout, "timeout", "generation timed out")
	default:
		log.Error("[GENERATION ERROR] ошибка генерации", zap.Error(err))
		httputil.RespondError(c, http.StatusInternalServerError, "internal error")
	}
}
