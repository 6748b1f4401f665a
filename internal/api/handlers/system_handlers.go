package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"facegate/internal/core/models"
	"facegate/internal/sse"
	"facegate/internal/util/timezone"
	"facegate/internal/utils"
)

// Availability meldet, ob eine externe Abhängigkeit erreichbar ist
type Availability interface {
	IsAvailable(ctx context.Context) bool
}

// StatisticsSource liefert Katalog-Kennzahlen
type StatisticsSource interface {
	GetStatistics(ctx context.Context) (models.Statistics, error)
}

// Connectivity meldet den Verbindungsstatus, z.B. des MQTT-Clients
type Connectivity interface {
	IsConnected() bool
}

// SystemHandler stellt Status und Ereignis-Stream bereit
type SystemHandler struct {
	provider  Availability
	name      string
	stats     StatisticsSource
	mqtt      Connectivity
	hub       *sse.Hub
	summary   map[string]interface{}
	startedAt time.Time
}

// SystemDeps bündelt die Abhängigkeiten des System-Handlers. Nil-Felder werden ausgelassen.
type SystemDeps struct {
	Provider     Availability
	ProviderName string
	Stats        StatisticsSource
	MQTT         Connectivity
	Hub          *sse.Hub
	Summary      map[string]interface{} // Konfigurationsübersicht ohne Geheimnisse
}

// NewSystemHandler erstellt einen neuen System-Handler
func NewSystemHandler(deps SystemDeps) *SystemHandler {
	return &SystemHandler{
		provider:  deps.Provider,
		name:      deps.ProviderName,
		stats:     deps.Stats,
		mqtt:      deps.MQTT,
		hub:       deps.Hub,
		summary:   deps.Summary,
		startedAt: time.Now(),
	}
}

// RegisterRoutes registriert die System-Routen
func (h *SystemHandler) RegisterRoutes(router gin.IRoutes) {
	router.GET("/status", h.Status)
	if h.hub != nil {
		router.GET("/events", h.Events)
	}
}

// Status liefert den Dienststatus
func (h *SystemHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	body := gin.H{
		"ok":     true,
		"time":   timezone.RFC3339(time.Now()),
		"system": utils.GetSystemStats(h.startedAt),
	}
	if h.summary != nil {
		body["config"] = h.summary
	}

	if h.provider != nil {
		body["oracle"] = gin.H{
			"provider":  h.name,
			"available": h.provider.IsAvailable(ctx),
		}
	}

	if h.stats != nil {
		stats, err := h.stats.GetStatistics(ctx)
		if err != nil {
			log.WithField("component", "http").WithError(err).Warn("Failed to load statistics")
			body["catalog"] = gin.H{"error": "unavailable"}
		} else {
			body["catalog"] = stats
		}
	}

	if h.mqtt != nil {
		body["mqtt"] = gin.H{"connected": h.mqtt.IsConnected()}
	}
	if h.hub != nil {
		body["sse_clients"] = h.hub.ClientCount()
	}

	c.JSON(http.StatusOK, body)
}

// Events streamt Capture-Ereignisse als Server-Sent Events
func (h *SystemHandler) Events(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	client := make(sse.Client, 10) // Puffer für 10 Nachrichten
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	// Header sofort senden, damit der Client nicht bis zum ersten Ereignis wartet
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
