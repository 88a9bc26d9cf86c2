package proposals

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes регистрирует маршруты работы с предложениями
func SetupRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("", h.Create)
	r.GET("", h.List)
	r.GET("/:id", h.Get)
	r.PATCH("/:id", h.Update)
	r.DELETE("/:id", h.Delete)
	r.POST("/:id/archive", h.Archive)
	r.POST("/:id/unarchive", h.Unarchive)
	r.POST("/:id/share", h.Share)
	r.PATCH("/:id/status", h.SetStatus)
	r.GET("/:id/pdf", h.PDF)
	r.POST("/:id/convert", h.Convert)
}
