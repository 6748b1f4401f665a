package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"facegate/internal/api/middleware"
	"facegate/internal/capture"
	"facegate/internal/preview"
)

// PreviewHandler gibt Bedienern Zugriff auf laufende Vorschau-Sessions
type PreviewHandler struct {
	registry *preview.Registry
}

// NewPreviewHandler erstellt einen neuen Preview-Handler
func NewPreviewHandler(registry *preview.Registry) *PreviewHandler {
	return &PreviewHandler{registry: registry}
}

// RegisterRoutes registriert die Vorschau-Routen
func (h *PreviewHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/capture/preview", h.List)
	router.GET("/capture/preview/:session/frame", h.Frame)
	router.GET("/capture/preview/:session/ws", h.Stream)
	router.POST("/capture/preview/:session/commit", h.Commit)
	router.POST("/capture/preview/:session/cancel", h.Cancel)
}

// List liefert alle aktiven Sessions
func (h *PreviewHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "sessions": h.registry.List()})
}

// Frame liefert das zuletzt gerenderte Vorschaubild als JPEG
func (h *PreviewHandler) Frame(c *gin.Context) {
	id := c.Param("session")
	session, ok := h.registry.Get(id)
	if !ok {
		writeSessionNotFound(c, id)
		return
	}
	data, ok := session.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "no frame yet", "message": middleware.T(c, "error.no_frame", nil)})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", data)
}

// Commit bestätigt das aktuelle Vorschaubild
func (h *PreviewHandler) Commit(c *gin.Context) {
	h.signal(c, capture.SignalCommit)
}

// Cancel bricht die Vorschau ab
func (h *PreviewHandler) Cancel(c *gin.Context) {
	h.signal(c, capture.SignalCancel)
}

func (h *PreviewHandler) signal(c *gin.Context, sig capture.Signal) {
	id := c.Param("session")
	if err := h.registry.Signal(id, sig); err != nil {
		if errors.Is(err, preview.ErrSessionNotFound) {
			writeSessionNotFound(c, id)
			return
		}
		writeInternal(c, "Failed to signal preview session", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"ok": true, "session_id": id, "signal": sig.String()})
}

func writeSessionNotFound(c *gin.Context, id string) {
	c.JSON(http.StatusNotFound, gin.H{
		"ok":      false,
		"error":   "preview session not found",
		"message": middleware.T(c, "error.session_not_found", map[string]interface{}{"ID": id}),
	})
}
