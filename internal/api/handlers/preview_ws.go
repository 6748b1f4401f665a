package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"facegate/internal/capture"
)

// previewPollInterval bestimmt, wie oft der Websocket auf neue Vorschaubilder prüft
var previewPollInterval = 100 * time.Millisecond

var previewUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// CORS wird bereits vom Router geregelt
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// Stream überträgt neue Vorschaubilder als binäre Websocket-Nachrichten.
// Textnachrichten "commit" und "cancel" werden an die Session weitergereicht.
func (h *PreviewHandler) Stream(c *gin.Context) {
	id := c.Param("session")
	session, ok := h.registry.Get(id)
	if !ok {
		writeSessionNotFound(c, id)
		return
	}

	conn, err := previewUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.WithField("session", id).Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	logger := log.WithFields(log.Fields{"component": "preview", "session": id})
	logger.Debug("Preview websocket connected")

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if kind != websocket.TextMessage {
				continue
			}
			var sig capture.Signal
			switch strings.ToLower(strings.TrimSpace(string(data))) {
			case "commit":
				sig = capture.SignalCommit
			case "cancel":
				sig = capture.SignalCancel
			default:
				continue
			}
			if err := h.registry.Signal(id, sig); err != nil {
				logger.Debugf("Dropping websocket signal: %v", err)
			}
		}
	}()

	ticker := time.NewTicker(previewPollInterval)
	defer ticker.Stop()

	var sent time.Time
	for {
		select {
		case <-readerDone:
			return
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}

		if _, ok := h.registry.Get(id); !ok {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}

		info := session.Info()
		if !info.FrameAt.After(sent) {
			continue
		}
		data, ok := session.Latest()
		if !ok {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			logger.Debugf("Preview websocket write failed: %v", err)
			return
		}
		sent = info.FrameAt
	}
}
