package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"facegate/internal/api/middleware"
	"facegate/internal/capture"
	"facegate/internal/preview"
)

// CaptureService ist die Sicht der HTTP-Schicht auf den Capture-Service
type CaptureService interface {
	Options() capture.Options
	Enroll(ctx context.Context, req capture.EnrollRequest) (capture.EnrollResult, error)
	Identify(ctx context.Context, req capture.IdentifyRequest) (capture.MatchResult, error)
	RemoveIdentity(ctx context.Context, label string) (int, bool, error)
}

// CaptureHandler behandelt Aufnahme- und Identifizierungsanfragen
type CaptureHandler struct {
	service CaptureService
}

// NewCaptureHandler erstellt einen neuen Capture-Handler
func NewCaptureHandler(service CaptureService) *CaptureHandler {
	return &CaptureHandler{service: service}
}

// RegisterRoutes registriert die Capture-Routen
func (h *CaptureHandler) RegisterRoutes(router gin.IRoutes) {
	router.POST("/capture", h.Enroll)
	router.POST("/capture/", h.Enroll)
	router.POST("/capture/identify", h.Identify)
}

// Enroll nimmt ein Gesicht auf und speichert es optional unter einem Namen
func (h *CaptureHandler) Enroll(c *gin.Context) {
	values, err := collectValues(c)
	if err != nil {
		writeBadRequest(c, err)
		return
	}

	opts := h.service.Options()
	req := capture.EnrollRequest{
		Preview:   values.truthy("preview"),
		Name:      strings.TrimSpace(values["name"]),
		SessionID: strings.TrimSpace(values["session_id"]),
	}
	if req.DeviceIndex, err = values.intValue("device_index", 0); err != nil {
		writeBadRequest(c, err)
		return
	}
	if req.MinWidth, err = values.intValue("min_width", opts.DefaultMinWidth); err != nil {
		writeBadRequest(c, err)
		return
	}
	if req.Timeout, err = values.seconds("timeout_sec", opts.EnrollTimeout); err != nil {
		writeBadRequest(c, err)
		return
	}

	res, err := h.service.Enroll(c.Request.Context(), req)
	if err != nil {
		writeCaptureError(c, err)
		return
	}

	body := gin.H{
		"ok":             true,
		"status":         res.Status,
		"faces_in_frame": res.FacesInFrame,
	}
	if res.CaptureID != "" {
		body["capture_id"] = res.CaptureID
	}
	if res.SessionID != "" {
		body["session_id"] = res.SessionID
	}
	if res.Status == capture.StatusCancelled {
		body["message"] = middleware.T(c, "capture.cancelled", nil)
	}
	c.JSON(http.StatusOK, body)
}

// Identify nimmt ein Gesicht auf und gleicht es mit den registrierten Identitäten ab
func (h *CaptureHandler) Identify(c *gin.Context) {
	values, err := collectValues(c)
	if err != nil {
		writeBadRequest(c, err)
		return
	}

	opts := h.service.Options()
	var req capture.IdentifyRequest
	if req.DeviceIndex, err = values.intValue("device_index", 0); err != nil {
		writeBadRequest(c, err)
		return
	}
	if req.MinWidth, err = values.intValue("min_width", opts.DefaultMinWidth); err != nil {
		writeBadRequest(c, err)
		return
	}
	if req.Timeout, err = values.seconds("timeout_sec", opts.IdentifyTimeout); err != nil {
		writeBadRequest(c, err)
		return
	}
	if req.Tolerance, err = values.optionalFloat("tolerance"); err != nil {
		writeBadRequest(c, err)
		return
	}

	res, err := h.service.Identify(c.Request.Context(), req)
	if err != nil {
		writeCaptureError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func writeBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"ok":      false,
		"error":   err.Error(),
		"message": middleware.T(c, "error.invalid_params", nil),
	})
}

// writeCaptureError bildet Fehler des Capture-Service auf HTTP-Antworten ab.
// Nicht klassifizierte Fehler werden vollständig protokolliert und anonym beantwortet.
func writeCaptureError(c *gin.Context, err error) {
	var (
		openErr    *capture.CameraOpenError
		timeoutErr *capture.SearchTimeoutError
	)

	switch {
	case errors.As(err, &openErr), errors.Is(err, capture.ErrDeviceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"ok":      false,
			"error":   err.Error(),
			"code":    "CAMERA_OPEN_ERROR",
			"message": middleware.T(c, "error.camera_open", nil),
		})
	case errors.Is(err, capture.ErrDeviceBusy):
		c.JSON(http.StatusConflict, gin.H{
			"ok":      false,
			"error":   err.Error(),
			"code":    "DEVICE_BUSY",
			"message": middleware.T(c, "error.device_busy", nil),
		})
	case errors.Is(err, preview.ErrSessionExists):
		c.JSON(http.StatusConflict, gin.H{"ok": false, "error": err.Error(), "code": "SESSION_EXISTS"})
	case errors.As(err, &timeoutErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"ok":      false,
			"error":   err.Error(),
			"message": middleware.T(c, "error.search_timeout", map[string]interface{}{"Seconds": timeoutErr.Seconds}),
		})
	case errors.Is(err, capture.ErrSearchTimedOut):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"ok": false, "error": err.Error()})
	case errors.Is(err, capture.ErrNoFaceDetected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"ok":      false,
			"error":   err.Error(),
			"message": middleware.T(c, "error.no_face", nil),
		})
	case errors.Is(err, capture.ErrMultipleFacesDetected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"ok":      false,
			"error":   err.Error(),
			"message": middleware.T(c, "error.multiple_faces", nil),
		})
	default:
		log.WithFields(log.Fields{"component": "http", "path": c.Request.URL.Path}).WithError(err).Error("Capture request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":      false,
			"error":   "internal error",
			"message": middleware.T(c, "error.internal", nil),
		})
	}
}
