package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"facegate/internal/api/middleware"
	"facegate/internal/core/models"
)

// IdentityCatalog liefert Identitäten und ihre Aufnahmen
type IdentityCatalog interface {
	GetIdentity(ctx context.Context, label string) (*models.Identity, error)
	ListIdentities(ctx context.Context) ([]models.IdentitySummary, error)
	ListCaptures(ctx context.Context, label string) ([]models.Capture, error)
}

// IdentityHandler behandelt Anfragen rund um registrierte Identitäten
type IdentityHandler struct {
	catalog IdentityCatalog
	service CaptureService
}

// NewIdentityHandler erstellt einen neuen Identity-Handler
func NewIdentityHandler(catalog IdentityCatalog, service CaptureService) *IdentityHandler {
	return &IdentityHandler{catalog: catalog, service: service}
}

// RegisterRoutes registriert die Identitäts-Routen
func (h *IdentityHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/identities", h.List)
	router.GET("/identities/:label/captures", h.Captures)
	router.DELETE("/identities/:label", h.Delete)
}

// List liefert alle Identitäten mit Anzahl ihrer Aufnahmen
func (h *IdentityHandler) List(c *gin.Context) {
	identities, err := h.catalog.ListIdentities(c.Request.Context())
	if err != nil {
		writeInternal(c, "Failed to list identities", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "identities": identities})
}

// Captures liefert die Aufnahmen einer Identität
func (h *IdentityHandler) Captures(c *gin.Context) {
	label := c.Param("label")
	identity, err := h.catalog.GetIdentity(c.Request.Context(), label)
	if err != nil {
		writeInternal(c, "Failed to load identity", err)
		return
	}
	if identity == nil {
		writeIdentityNotFound(c, label)
		return
	}

	captures, err := h.catalog.ListCaptures(c.Request.Context(), label)
	if err != nil {
		writeInternal(c, "Failed to list captures", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "label": label, "captures": captures})
}

// Delete entfernt eine Identität samt Aufnahmen und Dateien
func (h *IdentityHandler) Delete(c *gin.Context) {
	label := c.Param("label")
	removed, found, err := h.service.RemoveIdentity(c.Request.Context(), label)
	if err != nil {
		writeInternal(c, "Failed to delete identity", err)
		return
	}
	if !found {
		writeIdentityNotFound(c, label)
		return
	}

	log.WithFields(log.Fields{"component": "http", "label": label, "captures": removed}).Info("Identity deleted")
	c.JSON(http.StatusOK, gin.H{"ok": true, "label": label, "removed_captures": removed})
}

func writeIdentityNotFound(c *gin.Context, label string) {
	c.JSON(http.StatusNotFound, gin.H{
		"ok":      false,
		"error":   "identity not found",
		"message": middleware.T(c, "error.identity_not_found", map[string]interface{}{"Label": label}),
	})
}

func writeInternal(c *gin.Context, msg string, err error) {
	log.WithFields(log.Fields{"component": "http", "path": c.Request.URL.Path}).WithError(err).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{
		"ok":      false,
		"error":   "internal error",
		"message": middleware.T(c, "error.internal", nil),
	})
}
