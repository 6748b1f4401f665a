package capture

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"facegate/internal/core/models"
)

// Catalog persists identities and capture records.
type Catalog interface {
	EnsureIdentity(ctx context.Context, label string) error
	InsertCapture(ctx context.Context, c *models.Capture) error
	ListRegisteredEmbeddings(ctx context.Context) ([]models.EmbeddingRef, error)
	DeleteIdentity(ctx context.Context, label string) ([]models.Capture, bool, error)
}

// FileStore persists capture images and embeddings on disk.
type FileStore interface {
	SaveImage(label string, frame Frame) (string, error)
	SaveEmbedding(e Embedding) (string, error)
	LoadEmbedding(path string) (Embedding, error)
	Remove(paths ...string) error
}

// Enrollment is one accepted capture ready to be persisted. An empty Label
// stores an anonymous capture; a nil Embedding stores the image only.
type Enrollment struct {
	Label        string
	Frame        Frame
	Embedding    Embedding
	Box          BoundingBox
	FacesInFrame int
}

// Writer persists enrollments: files first, catalog record last.
type Writer struct {
	catalog Catalog
	store   FileStore
	now     func() time.Time
}

// NewWriter creates a Writer.
func NewWriter(catalog Catalog, store FileStore) *Writer {
	return &Writer{catalog: catalog, store: store, now: time.Now}
}

// Enroll stores the image and embedding, then inserts the capture record and
// returns its id. If a file write fails, files written by this call are
// removed and no record is inserted. If the insert fails the files stay
// behind as orphans for the cleanup service.
func (w *Writer) Enroll(ctx context.Context, e Enrollment) (string, error) {
	logger := log.WithFields(log.Fields{"component": "enrollment", "label": e.Label})

	if e.Label != "" {
		if err := w.catalog.EnsureIdentity(ctx, e.Label); err != nil {
			return "", storageError("ensure identity", err)
		}
	}

	imagePath, err := w.store.SaveImage(e.Label, e.Frame)
	if err != nil {
		return "", storageError("save image", err)
	}

	var embeddingPath *string
	if e.Embedding != nil {
		p, err := w.store.SaveEmbedding(e.Embedding)
		if err != nil {
			if rmErr := w.store.Remove(imagePath); rmErr != nil {
				logger.WithError(rmErr).Warnf("Failed to remove image %s after embedding write failure", imagePath)
			}
			return "", storageError("save embedding", err)
		}
		embeddingPath = &p
	}

	box, err := json.Marshal(e.Box)
	if err != nil {
		return "", storageError("encode bounding box", err)
	}

	record := &models.Capture{
		ID:            uuid.NewString(),
		ImagePath:     imagePath,
		EmbeddingPath: embeddingPath,
		FacesInFrame:  e.FacesInFrame,
		BoundingBox:   box,
		CreatedAt:     w.now(),
	}
	if e.Label != "" {
		label := e.Label
		record.IdentityLabel = &label
	}

	if err := w.catalog.InsertCapture(ctx, record); err != nil {
		logger.WithError(err).Warnf("Capture files left unreferenced: %s", imagePath)
		return "", storageError("insert capture", err)
	}

	logger.WithField("capture_id", record.ID).Info("Capture stored")
	return record.ID, nil
}
