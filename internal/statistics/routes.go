package statistics

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes регистрирует маршруты аналитики предложений и воронки
func SetupRoutes(r *gin.RouterGroup, h *Handler) {
	r.GET("/proposals/:id/analytics", h.Analytics)
	r.GET("/proposals/:id/sessions", h.Sessions)
	r.GET("/pipeline", h.Pipeline)
}
