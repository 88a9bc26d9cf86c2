package contracts

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes регистрирует маршруты договоров
func SetupRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("", h.Create)
	r.GET("/:id", h.Get)
	r.POST("/:id/sign", h.Sign)
}
