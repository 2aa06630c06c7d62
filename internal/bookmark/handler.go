package bookmark

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"komikverse/internal/analytics"
	"komikverse/internal/auth"
	"komikverse/internal/logging"
	"komikverse/internal/metrics"
	"komikverse/internal/sync"
	"komikverse/pkg/models"
)

type Handler struct {
	Store   Store
	Hub     *sync.Hub
	Tracker *analytics.Tracker
	Logger  *zap.Logger
}

func NewHandler(store Store, hub *sync.Hub, tracker *analytics.Tracker, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Hub: hub, Tracker: tracker, Logger: logging.OrNop(logger)}
}

// RegisterRoutes expects rg to be behind auth.Middleware.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.POST("", h.add)
	rg.POST("/toggle", h.toggle)
	rg.GET("/:slug", h.exists)
	rg.DELETE("/:slug", h.remove)
}

func (h *Handler) userID(c *gin.Context) (string, bool) {
	claims := auth.MustGetClaims(c)
	if claims == nil || claims.UserID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodePermissionDenied})
		return "", false
	}
	return claims.UserID, true
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, ErrInvalidArgument) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "manga slug required"})
		return
	}
	h.Logger.Error("bookmark store failed", zap.String("op", op), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
}

func (h *Handler) bindSummary(c *gin.Context) (models.MangaSummary, bool) {
	var m models.MangaSummary
	if err := c.ShouldBindJSON(&m); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return m, false
	}
	m.Slug = strings.TrimSpace(m.Slug)
	if m.Slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slug required"})
		return m, false
	}
	return m, true
}

func (h *Handler) list(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	items, err := h.Store.List(c.Request.Context(), uid)
	if err != nil {
		h.fail(c, "list", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(items), "items": items})
}

func (h *Handler) exists(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	saved, err := h.Store.Exists(c.Request.Context(), uid, strings.TrimSpace(c.Param("slug")))
	if err != nil {
		h.fail(c, "exists", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

func (h *Handler) add(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	m, ok := h.bindSummary(c)
	if !ok {
		return
	}
	if err := h.Store.Add(c.Request.Context(), uid, m); err != nil {
		h.fail(c, "add", err)
		return
	}
	metrics.ObserveBookmark("add")
	h.Tracker.BookmarkAdd(c.Request.Context(), uid, m.Slug, m.Title)
	h.publish(uid, m.Slug, true)
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (h *Handler) remove(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	slug := strings.TrimSpace(c.Param("slug"))
	if err := h.Store.Remove(c.Request.Context(), uid, slug); err != nil {
		h.fail(c, "remove", err)
		return
	}
	metrics.ObserveBookmark("remove")
	h.Tracker.BookmarkRemove(c.Request.Context(), uid, slug)
	h.publish(uid, slug, false)
	c.JSON(http.StatusOK, gin.H{"saved": false})
}

func (h *Handler) toggle(c *gin.Context) {
	uid, ok := h.userID(c)
	if !ok {
		return
	}
	m, ok := h.bindSummary(c)
	if !ok {
		return
	}
	saved, err := h.Store.Toggle(c.Request.Context(), uid, m)
	if err != nil {
		h.fail(c, "toggle", err)
		return
	}
	if saved {
		metrics.ObserveBookmark("toggle_on")
		h.Tracker.BookmarkAdd(c.Request.Context(), uid, m.Slug, m.Title)
	} else {
		metrics.ObserveBookmark("toggle_off")
		h.Tracker.BookmarkRemove(c.Request.Context(), uid, m.Slug)
	}
	h.publish(uid, m.Slug, saved)
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}

func (h *Handler) publish(uid, slug string, saved bool) {
	if h.Hub == nil {
		return
	}
	typ := sync.EventBookmarkRemove
	if saved {
		typ = sync.EventBookmarkAdd
	}
	ev := sync.BookmarkEvent{Type: typ, UserID: uid, MangaSlug: slug, Saved: saved, At: time.Now().UTC()}
	h.Hub.Publish(ev)
}
