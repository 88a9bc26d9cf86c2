package generate

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes регистрирует маршруты AI-генерации
func SetupRoutes(r *gin.RouterGroup, gen Generator, logger *zap.Logger) {
	h := NewHandler(gen, logger)
	r.POST("/calculator", h.Calculator)
	r.POST("/proposal", h.Proposal)
	r.POST("/edit-block", h.EditBlock)
}
