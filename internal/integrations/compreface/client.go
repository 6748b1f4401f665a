package compreface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"facegate/config"
	"facegate/internal/capture"
	"facegate/internal/integrations/facerecognition"

	log "github.com/sirupsen/logrus"
)

// codeNoFaceFound ist der CompreFace-Fehlercode für "No face is found in the given image"
const codeNoFaceFound = 28

// Client für die CompreFace-Detection-API
type Client struct {
	config     config.CompreFaceConfig
	httpClient *http.Client
}

// Box repräsentiert die Begrenzungsbox eines Gesichts
type Box struct {
	Probability float64 `json:"probability"`
	XMin        int     `json:"x_min"`
	YMin        int     `json:"y_min"`
	XMax        int     `json:"x_max"`
	YMax        int     `json:"y_max"`
}

// DetectionResult repräsentiert ein erkanntes Gesicht samt Embedding des Calculator-Plugins
type DetectionResult struct {
	Box       Box       `json:"box"`
	Embedding []float32 `json:"embedding"`
}

// DetectionResponse repräsentiert die Antwort der CompreFace-API
type DetectionResponse struct {
	Result []DetectionResult `json:"result"`
}

// errorResponse ist die Fehlerantwort der CompreFace-API
type errorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewClient erstellt einen neuen CompreFace-Client
func NewClient(cfg config.CompreFaceConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetProviderName gibt den Namen des Providers zurück
func (c *Client) GetProviderName() facerecognition.ProviderType {
	return facerecognition.ProviderCompreFace
}

// Close hat beim HTTP-Client nichts freizugeben
func (c *Client) Close() error { return nil }

// IsAvailable prüft, ob der CompreFace-Dienst erreichbar ist
func (c *Client) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.WithField("component", "compreface").Debugf("CompreFace not reachable: %v", err)
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// Evaluate sendet das Bild an den Detection-Endpunkt mit dem Calculator-Plugin
func (c *Client) Evaluate(ctx context.Context, frame capture.Frame) ([]capture.FaceObservation, error) {
	imageData, err := facerecognition.EncodeJPEG(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	resp, err := c.Detect(ctx, imageData, "frame.jpg")
	if err != nil {
		return nil, err
	}

	observations := make([]capture.FaceObservation, 0, len(resp.Result))
	for _, r := range resp.Result {
		if len(r.Embedding) == 0 {
			return nil, fmt.Errorf("CompreFace returned a face without embedding (calculator plugin disabled?)")
		}
		observations = append(observations, capture.FaceObservation{
			Box:       facerecognition.BoxFromCorners(r.Box.XMin, r.Box.YMin, r.Box.XMax, r.Box.YMax),
			Embedding: facerecognition.ToEmbedding(r.Embedding),
		})
	}
	return observations, nil
}

// Detect sendet ein Bild an /api/v1/detection/detect
func (c *Client) Detect(ctx context.Context, imageData []byte, filename string) (*DetectionResponse, error) {
	apiURL, err := url.JoinPath(c.config.URL, "/api/v1/detection/detect")
	if err != nil {
		return nil, fmt.Errorf("failed to create API URL: %w", err)
	}

	params := url.Values{}
	params.Set("face_plugins", "calculator")
	if c.config.DetProbThreshold > 0 {
		params.Set("det_prob_threshold", strconv.FormatFloat(c.config.DetProbThreshold, 'f', -1, 64))
	}
	apiURL += "?" + params.Encode()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(imageData)); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-api-key", c.config.DetectionAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("CompreFace request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code == codeNoFaceFound {
			return &DetectionResponse{}, nil
		}
		return nil, fmt.Errorf("CompreFace API error: %s (status: %d)", string(respBody), resp.StatusCode)
	}

	var result DetectionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
