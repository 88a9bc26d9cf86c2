package httputil

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propodocs/pkg/storage"
)

// RespondError отправляет сообщение об ошибке в едином формате и прекращает обработку запроса.
// Используем AbortWithStatusJSON, чтобы последующие обработчики не выполнялись, даже если забыли вернуть управление.
func RespondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// RespondErrorClass дополняет ответ машиночитаемым классом ошибки
func RespondErrorClass(c *gin.Context, status int, class, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "class": class})
}

// Page читает limit/offset из query. Некорректные значения заменяются значениями по умолчанию.
func Page(c *gin.Context, defLimit, maxLimit int) (limit, offset int) {
	limit = defLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

// RespondStorageError переводит ошибки хранилища в HTTP-статус.
// Неизвестные ошибки логируются и отдаются как 500 без подробностей.
func RespondStorageError(c *gin.Context, logger *zap.Logger, err error, what string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		RespondError(c, http.StatusNotFound, what+" not found")
	case errors.Is(err, storage.ErrAlreadySigned):
		RespondError(c, http.StatusConflict, what+" already signed")
	case errors.Is(err, storage.ErrConflict):
		RespondError(c, http.StatusConflict, what+" already exists")
	default:
		if logger != nil {
			logger.Error("[HANDLER ERROR] ошибка хранилища", zap.String("entity", what), zap.Error(err))
		}
		RespondError(c, http.StatusInternalServerError, "internal error")
	}
}
