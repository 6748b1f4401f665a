package facerecognition

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"

	"facegate/internal/capture"
)

// ProviderType definiert den Typ des Embedding-Diensts
type ProviderType string

const (
	// ProviderCompreFace steht für die CompreFace-Detection-API mit Calculator-Plugin
	ProviderCompreFace ProviderType = "compreface"

	// ProviderInsightFace steht für den InsightFace-REST-Dienst
	ProviderInsightFace ProviderType = "insightface"

	// ProviderDlib steht für die lokale dlib-Erkennung über go-face
	ProviderDlib ProviderType = "dlib"
)

// Provider ist ein Embedding-Dienst: Gesichter finden und je Gesicht ein Embedding liefern
type Provider interface {
	capture.Oracle

	// GetProviderName gibt den Namen des Providers zurück
	GetProviderName() ProviderType

	// IsAvailable prüft, ob der Dienst verfügbar ist
	IsAvailable(ctx context.Context) bool

	// Close gibt Ressourcen des Providers frei
	Close() error
}

// EncodeJPEG kodiert ein Bild im JPEG-Format für die Übertragung
func EncodeJPEG(img image.Image) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BoxFromCorners wandelt (x1, y1, x2, y2) in eine BoundingBox um
func BoxFromCorners(x1, y1, x2, y2 int) capture.BoundingBox {
	return capture.BoundingBox{Top: y1, Right: x2, Bottom: y2, Left: x1}
}

// ToEmbedding wandelt einen float32-Vektor in ein Embedding um
func ToEmbedding(v []float32) capture.Embedding {
	if len(v) == 0 {
		return nil
	}
	e := make(capture.Embedding, len(v))
	for i, f := range v {
		e[i] = float64(f)
	}
	return e
}
