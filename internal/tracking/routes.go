package tracking

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes регистрирует публичные маршруты просмотра расшаренного предложения.
// Авторизации здесь нет: доступ даёт только токен ссылки.
func SetupRoutes(r *gin.RouterGroup, h *Handler) {
	p := r.Group("/proposals/:token")
	p.GET("", h.Get)
	p.POST("/respond", h.Respond)
	p.POST("/views", h.CreateView)
	p.POST("/views/:viewId/heartbeat", h.Heartbeat)
	p.POST("/views/:viewId/interactions", h.CreateInteraction)
}
