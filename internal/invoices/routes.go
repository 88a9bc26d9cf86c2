package invoices

import (
	"github.com/gin-gonic/gin"
)

// SetupRoutes регистрирует маршруты счетов для авторизованного пользователя
func SetupRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("", h.Create)
	r.GET("", h.List)
	r.GET("/:id", h.Get)
	r.POST("/:id/checkout", h.Checkout)
	r.GET("/:id/pdf", h.PDF)
}

// SetupWebhookRoutes регистрирует вебхук платёжного провайдера; подпись заменяет авторизацию
func SetupWebhookRoutes(r *gin.RouterGroup, h *Handler) {
	r.POST("/stripe", h.Webhook)
}
