package insightface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"facegate/config"
	"facegate/internal/capture"
	"facegate/internal/integrations/facerecognition"

	log "github.com/sirupsen/logrus"
)

// Log-Felder für InsightFace-Komponente definieren
var logFields = log.Fields{
	"component": "insightface",
}

// APIClient implementiert die Kommunikation mit dem InsightFace-Dienst
type APIClient struct {
	config     config.InsightFaceConfig
	httpClient *http.Client
}

// apiInfoResponse enthält Informationen über den InsightFace-Dienst
type apiInfoResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Backend string `json:"backend"`
}

// apiDetectResponse enthält die Antwort auf eine Gesichtserkennungsanfrage
type apiDetectResponse struct {
	Status     string `json:"status"`
	FacesCount int    `json:"faces_count"`
	Faces      []struct {
		BoundingBox []int     `json:"bbox"`
		Confidence  float64   `json:"confidence"`
		Embedding   []float32 `json:"embedding,omitempty"`
	} `json:"faces"`
	ProcessTime float64 `json:"process_time"`
}

// NewAPIClient erstellt einen neuen InsightFace-APIClient
func NewAPIClient(cfg config.InsightFaceConfig) *APIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &APIClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetProviderName gibt den Namen des Providers zurück
func (c *APIClient) GetProviderName() facerecognition.ProviderType {
	return facerecognition.ProviderInsightFace
}

// IsAvailable prüft, ob der InsightFace-Dienst erreichbar ist
func (c *APIClient) IsAvailable(ctx context.Context) bool {
	ok, err := c.Ping(ctx)
	if err != nil {
		log.WithFields(logFields).Debugf("InsightFace not available: %v", err)
	}
	return ok
}

// Close hat beim HTTP-Client nichts freizugeben
func (c *APIClient) Close() error { return nil }

// Ping prüft, ob der InsightFace-Dienst verfügbar ist
func (c *APIClient) Ping(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.URL+"/info", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to connect to InsightFace: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("InsightFace unavailable, status: %d", resp.StatusCode)
	}

	var info apiInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	return info.Status == "ok", nil
}

// Evaluate sendet das Bild an /detect und liefert je Gesicht Box und Embedding
func (c *APIClient) Evaluate(ctx context.Context, frame capture.Frame) ([]capture.FaceObservation, error) {
	resp, err := c.detect(ctx, frame)
	if err != nil {
		return nil, err
	}

	observations := make([]capture.FaceObservation, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BoundingBox) != 4 {
			return nil, fmt.Errorf("invalid bounding box with %d values", len(f.BoundingBox))
		}
		if len(f.Embedding) == 0 {
			return nil, fmt.Errorf("InsightFace returned a face without embedding")
		}
		observations = append(observations, capture.FaceObservation{
			Box:       facerecognition.BoxFromCorners(f.BoundingBox[0], f.BoundingBox[1], f.BoundingBox[2], f.BoundingBox[3]),
			Embedding: facerecognition.ToEmbedding(f.Embedding),
		})
	}

	log.WithFields(logFields).Debugf("Detected %d faces in %.3fs", len(observations), resp.ProcessTime)
	return observations, nil
}

func (c *APIClient) detect(ctx context.Context, frame capture.Frame) (*apiDetectResponse, error) {
	imgData, err := facerecognition.EncodeJPEG(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(imgData)); err != nil {
		return nil, fmt.Errorf("failed to copy image data: %w", err)
	}

	fields := map[string]string{
		"threshold":         fmt.Sprintf("%f", c.config.DetProbThreshold),
		"return_face_data":  "false",
		"extract_embedding": "true",
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL+"/detect", body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("InsightFace request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status: %d, response: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp apiDetectResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResp.Status != "ok" {
		return nil, fmt.Errorf("InsightFace API error: %s", apiResp.Status)
	}
	return &apiResp, nil
}
