package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/handler/http/middleware"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
)

const (
	EventDocument = "document"
	EventPing     = "ping"

	defaultKeepAlive = 25 * time.Second
)

type DocumentHandler struct {
	svc       *services.DocumentService
	keepAlive time.Duration
}

func NewDocumentHandler(svc *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		svc:       svc,
		keepAlive: defaultKeepAlive,
	}
}

func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	me := router.Group("/me/document")
	{
		me.GET("", h.Get)
		me.PATCH("", h.Patch)
		me.GET("/events", h.Events)
	}
}

// Get godoc
// @Summary      Read the caller's document
// @Tags         document
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/me/document [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	doc, err := h.svc.Get(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// Patch godoc
// @Summary      Merge fields into the caller's document
// @Description  Named fields replace their stored values. Premium fields are rejected.
// @Tags         document
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body  map[string]interface{}  true  "fields to merge"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /api/v1/me/document [patch]
func (h *DocumentHandler) Patch(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	var patch domain.DocumentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
		return
	}

	if err := h.svc.Merge(c.Request.Context(), userID, patch); err != nil {
		handleError(c, err)
		return
	}

	doc, err := h.svc.Get(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Events godoc
// @Summary      Stream document snapshots
// @Description  Server-sent events: a "document" event with the full document on connect and after every write.
// @Tags         document
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200
// @Router       /api/v1/me/document/events [get]
func (h *DocumentHandler) Events(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return
	}

	ctx := c.Request.Context()
	updates, err := h.svc.Watch(ctx, userID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Content-Type", "text/event-stream")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ping := time.NewTicker(h.keepAlive)
	defer ping.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case doc, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent(EventDocument, doc)
			return true
		case at := <-ping.C:
			c.SSEvent(EventPing, gin.H{"at": at.UTC()})
			return true
		case <-ctx.Done():
			return false
		}
	})
}
