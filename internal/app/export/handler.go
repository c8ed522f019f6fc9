package export

import (
	"errors"
	"net/http"

	"chatviewer/internal/app/feed"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	downloadPageSize = 100
	downloadFilename = "chat.txt"
)

type Handler interface {
	Download(c *gin.Context)
}

type handler struct {
	service   feed.Service
	formatter LineFormatter
	logger    *zap.SugaredLogger
}

func NewHandler(service feed.Service, formatter LineFormatter, logger *zap.Logger) Handler {
	return &handler{
		service:   service,
		formatter: formatter,
		logger:    logger.Sugar().With("component", "export"),
	}
}

// Download walks the whole channel history and returns it as a text file.
func (h *handler) Download(c *gin.Context) {
	records, err := h.service.ExportAll(c.Request.Context(), downloadPageSize)
	if err != nil {
		h.logger.Errorw("Download: export failed", "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, feed.ErrUpstreamUnavailable) {
			status = http.StatusBadGateway
		}
		c.String(status, "Failed to export messages: %s", err.Error())
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+downloadFilename+`"`)
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if err := WriteText(c.Writer, h.formatter, records); err != nil {
		h.logger.Warnw("Download: write failed", "error", err)
		return
	}
	h.logger.Infow("Transcript downloaded", "records", len(records))
}
