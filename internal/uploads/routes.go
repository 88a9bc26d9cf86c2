package uploads

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes регистрирует загрузку файлов
func SetupRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("", h.Upload)
}
