package provider

import (
	"fmt"

	"facegate/config"
	"facegate/internal/integrations/compreface"
	"facegate/internal/integrations/dlib"
	"facegate/internal/integrations/facerecognition"
	"facegate/internal/integrations/insightface"

	log "github.com/sirupsen/logrus"
)

// New erstellt den konfigurierten Embedding-Provider
func New(cfg config.EmbeddingConfig) (facerecognition.Provider, error) {
	switch facerecognition.ProviderType(cfg.Provider) {
	case facerecognition.ProviderInsightFace:
		log.Infof("Using InsightFace at %s as embedding provider", cfg.InsightFace.URL)
		return insightface.NewAPIClient(cfg.InsightFace), nil
	case facerecognition.ProviderCompreFace:
		log.Infof("Using CompreFace at %s as embedding provider", cfg.CompreFace.URL)
		return compreface.NewClient(cfg.CompreFace), nil
	case facerecognition.ProviderDlib:
		log.Infof("Using dlib models from %s as embedding provider", cfg.Dlib.ModelDir)
		rec, err := dlib.NewRecognizer(cfg.Dlib.ModelDir)
		if err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
}
