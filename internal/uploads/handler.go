package uploads

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"propodocs/internal/httputil"
	"propodocs/internal/logger"
	"propodocs/pkg/upload"
)

// FormField задаёт имя поля multipart-формы с файлом
const FormField = "file"

type Handler struct {
	Store  upload.Store
	Logger *zap.Logger
}

func NewHandler(store upload.Store, l *zap.Logger) *Handler {
	if l == nil {
		l = zap.NewNop()
	}
	return &Handler{Store: store, Logger: l}
}

// Upload принимает один файл до upload.MaxSize и возвращает его адрес
func (h *Handler) Upload(c *gin.Context) {
	log := logger.FromContext(c, h.Logger)
	if h.Store == nil {
		httputil.RespondErrorClass(c, http.StatusServiceUnavailable, "unconfigured", "uploads are not configured")
		return
	}
	// запас под заголовки multipart сверх размера файла
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, upload.MaxSize+64<<10)

	fh, err := c.FormFile(FormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.RespondError(c, http.StatusRequestEntityTooLarge, "file exceeds 10 MiB")
			return
		}
		httputil.RespondError(c, http.StatusBadRequest, "file is required")
		return
	}
	if fh.Size > upload.MaxSize {
		httputil.RespondError(c, http.StatusRequestEntityTooLarge, "file exceeds 10 MiB")
		return
	}
	f, err := fh.Open()
	if err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "cannot read file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, upload.MaxSize+1))
	if err != nil {
		httputil.RespondError(c, http.StatusBadRequest, "cannot read file")
		return
	}

	url, err := h.Store.Store(c.Request.Context(), data, fh.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrTooLarge):
			httputil.RespondError(c, http.StatusRequestEntityTooLarge, "file exceeds 10 MiB")
		case errors.Is(err, upload.ErrEmpty):
			httputil.RespondError(c, http.StatusBadRequest, "file is empty")
		case errors.Is(err, upload.ErrUnsupportedType):
			httputil.RespondError(c, http.StatusUnsupportedMediaType, "unsupported file type")
		default:
			log.Error("[UPLOAD ERROR] не удалось сохранить файл", zap.String("filename", fh.Filename), zap.Error(err))
			httputil.RespondError(c, http.StatusBadGateway, "storage error")
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}
