package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propodocs/internal/httputil"
	"propodocs/internal/ratelimit"
)

// RateLimit ограничивает запросы по пользователю, а для публичных маршрутов по IP.
// Ошибка хранилища пропускает запрос: лимит не должен ронять сервис.
func RateLimit(store ratelimit.Store, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if uid := UserID(c); uid != "" {
			key = "user:" + uid
		}

		d, err := store.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("ошибка лимитера, запрос пропущен", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			httputil.RespondError(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
