package feed

import (
	"errors"
	"fmt"
	"html"
	"html/template"
	"net/http"
	"strings"

	"chatviewer/internal/app/render"
	"chatviewer/internal/app/transcript"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler interface {
	Page(c *gin.Context)
	Messages(c *gin.Context)
	Delete(c *gin.Context)
	React(c *gin.Context)
}

type HandlerOptions struct {
	Title          string
	PageSize       int
	RefreshSeconds int
}

type handler struct {
	service  Service
	renderer *render.Renderer
	parents  render.ParentLookup
	opts     HandlerOptions
	logger   *zap.SugaredLogger
}

func NewHandler(service Service, renderer *render.Renderer, parents render.ParentLookup, opts HandlerOptions, logger *zap.Logger) Handler {
	if opts.Title == "" {
		opts.Title = "Chat Viewer"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	return &handler{
		service:  service,
		renderer: renderer,
		parents:  parents,
		opts:     opts,
		logger:   logger.Sugar(),
	}
}

type messagesResponse struct {
	Blocks      []template.HTML `json:"blocks"`
	OldestID    *string         `json:"oldestId"`
	NewestID    *string         `json:"newestId"`
	LatestID    *string         `json:"latestId"`
	Exhausted   bool            `json:"exhausted"`
	PossibleGap bool            `json:"possibleGap"`
	Stale       bool            `json:"stale,omitempty"`
}

func (h *handler) Page(c *gin.Context) {
	search := strings.TrimSpace(c.Query("search"))

	view, err := h.service.GetInitialView(c.Request.Context(), h.opts.PageSize, search)
	notice := ""
	if err != nil {
		if !errors.Is(err, ErrUpstreamUnavailable) {
			h.logger.Errorw("Page: failed to build view", "error", err)
			c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", errorHTML("Error", err))
			return
		}
		notice = "Chat platform unreachable, showing stored messages."
	}

	blocks, err := h.renderer.HTML(h.renderer.Blocks(view.Records, h.parents))
	if err != nil {
		h.logger.Errorw("Page: render failed", "error", err)
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8", errorHTML("Error", err))
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	err = h.renderer.WritePage(c.Writer, render.Page{
		Title:          h.opts.Title,
		Blocks:         blocks,
		Search:         c.Query("search"),
		OldestID:       view.OldestID(),
		RefreshSeconds: h.opts.RefreshSeconds,
		Notice:         notice,
	})
	if err != nil {
		h.logger.Errorw("Page: write failed", "error", err)
	}
}

func (h *handler) Messages(c *gin.Context) {
	beforeStr, afterStr := c.Query("before"), c.Query("after")
	if beforeStr != "" && afterStr != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": transcript.ErrConflictingBounds.Error()})
		return
	}

	var (
		view View
		err  error
	)
	ctx := c.Request.Context()
	switch {
	case beforeStr != "":
		id, perr := transcript.ParseSnowflake(beforeStr)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before id"})
			return
		}
		view, err = h.service.GetOlder(ctx, id, h.opts.PageSize)
	case afterStr != "":
		id, perr := transcript.ParseSnowflake(afterStr)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after id"})
			return
		}
		view, err = h.service.GetNewer(ctx, id, h.opts.PageSize)
	default:
		view, err = h.service.GetInitialView(ctx, h.opts.PageSize, "")
	}

	stale := false
	if err != nil {
		if !errors.Is(err, ErrUpstreamUnavailable) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		stale = true
	}

	blocks, err := h.renderer.HTML(h.renderer.Blocks(view.Records, h.parents))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := messagesResponse{
		Blocks:      blocks,
		Exhausted:   view.Exhausted,
		PossibleGap: view.PossibleGap,
		Stale:       stale,
	}
	if len(view.Records) > 0 {
		oldest, newest := view.OldestID(), view.NewestID()
		resp.OldestID, resp.NewestID, resp.LatestID = &oldest, &newest, &newest
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) Delete(c *gin.Context) {
	idStr := c.PostForm("messageId")
	if idStr == "" {
		c.String(http.StatusBadRequest, "messageId required")
		return
	}
	id, err := transcript.ParseSnowflake(idStr)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid messageId")
		return
	}

	if err := h.service.RequestDelete(c.Request.Context(), id); err != nil {
		h.logger.Warnw("Delete: failed", "message_id", idStr, "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, ErrNotFound) {
			status = http.StatusNotFound
		}
		c.Data(status, "text/html; charset=utf-8", errorHTML("Cannot delete message", err))
		return
	}
	redirectBack(c)
}

func (h *handler) React(c *gin.Context) {
	idStr := c.PostForm("messageId")
	emoji := strings.TrimSpace(c.PostForm("emoji"))
	if idStr == "" || emoji == "" {
		c.String(http.StatusBadRequest, "messageId and emoji required")
		return
	}
	id, err := transcript.ParseSnowflake(idStr)
	if err != nil {
		c.String(http.StatusBadRequest, "invalid messageId")
		return
	}

	if _, err := h.service.RequestReactionToggle(c.Request.Context(), id, emoji); err != nil {
		h.logger.Warnw("React: failed", "message_id", idStr, "emoji", emoji, "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, ErrNotFound) {
			status = http.StatusNotFound
		}
		c.Data(status, "text/html; charset=utf-8", errorHTML("Cannot react to message", err))
		return
	}
	redirectBack(c)
}

func redirectBack(c *gin.Context) {
	target := c.GetHeader("Referer")
	if target == "" {
		target = "/"
	}
	c.Redirect(http.StatusSeeOther, target)
}

func errorHTML(prefix string, err error) []byte {
	return []byte(fmt.Sprintf("<p>%s: %s</p>", prefix, html.EscapeString(err.Error())))
}
