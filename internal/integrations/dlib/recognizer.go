package dlib

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Kagami/go-face"
	log "github.com/sirupsen/logrus"

	"facegate/internal/capture"
	"facegate/internal/integrations/facerecognition"
)

// ErrModelNotLoaded is returned after Close.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// Recognizer is an in-process dlib embedding oracle. It needs the
// shape_predictor_5_face_landmarks.dat, dlib_face_recognition_resnet_model_v1.dat
// and mmod_human_face_detector.dat models in its model directory.
type Recognizer struct {
	mu  sync.Mutex
	rec *face.Recognizer
}

// NewRecognizer loads the dlib models from modelDir.
func NewRecognizer(modelDir string) (*Recognizer, error) {
	log.WithField("component", "dlib").Infof("Loading face recognition models from: %s", modelDir)
	rec, err := face.NewRecognizer(modelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load models: %w", err)
	}
	return &Recognizer{rec: rec}, nil
}

// GetProviderName gibt den Namen des Providers zurück
func (r *Recognizer) GetProviderName() facerecognition.ProviderType {
	return facerecognition.ProviderDlib
}

// IsAvailable reports whether the models are loaded.
func (r *Recognizer) IsAvailable(context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rec != nil
}

// Evaluate detects faces and computes their 128-d descriptors. The dlib
// recognizer is not safe for concurrent use, so calls are serialized.
func (r *Recognizer) Evaluate(ctx context.Context, frame capture.Frame) ([]capture.FaceObservation, error) {
	data, err := facerecognition.EncodeJPEG(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec == nil {
		return nil, ErrModelNotLoaded
	}

	faces, err := r.rec.Recognize(data)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	observations := make([]capture.FaceObservation, len(faces))
	for i, f := range faces {
		rect := f.Rectangle
		observations[i] = capture.FaceObservation{
			Box:       facerecognition.BoxFromCorners(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y),
			Embedding: facerecognition.ToEmbedding(f.Descriptor[:]),
		}
	}
	return observations, nil
}

// Close frees the dlib models.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rec != nil {
		r.rec.Close()
		r.rec = nil
	}
	return nil
}
