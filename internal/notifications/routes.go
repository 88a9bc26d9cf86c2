package notifications

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes регистрирует маршруты уведомлений и их настроек
func SetupRoutes(r *gin.RouterGroup, h *Handler) {
	r.GET("", h.List)
	r.POST("/read", h.MarkManyRead)
	r.POST("/:id/read", h.MarkRead)
	r.GET("/preferences", h.Preferences)
	r.PUT("/preferences", h.UpdatePreference)
}
