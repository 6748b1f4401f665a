package storage

import (
	"errors"
	"fmt"
	"image/jpeg"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sbinet/npyio"
	log "github.com/sirupsen/logrus"

	"facegate/internal/capture"
)

// AnonymousLabel prefixes images of captures without an identity.
const AnonymousLabel = "anonymous"

// JPEGQuality is used for every stored capture image.
const JPEGQuality = 90

// File is a stored file as seen by the cleanup service.
type File struct {
	Path    string
	ModTime time.Time
}

// FileStore keeps capture images and embeddings in two directories.
type FileStore struct {
	imageDir     string
	embeddingDir string
	now          func() time.Time

	// serializes serial-number allocation for image names
	mu sync.Mutex
}

// New creates a FileStore, creating both directories if needed.
func New(imageDir, embeddingDir string) (*FileStore, error) {
	for _, dir := range []string{imageDir, embeddingDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &FileStore{imageDir: imageDir, embeddingDir: embeddingDir, now: time.Now}, nil
}

// ImageDir returns the image directory.
func (s *FileStore) ImageDir() string { return s.imageDir }

// EmbeddingDir returns the embedding directory.
func (s *FileStore) EmbeddingDir() string { return s.embeddingDir }

// SaveImage writes frame as <label>_<serial>.jpg. The serial starts at the
// number of existing images with the same prefix plus one and is bumped until
// the name is free.
func (s *FileStore) SaveImage(label string, frame capture.Frame) (string, error) {
	if frame.Empty() {
		return "", errors.New("cannot save empty frame")
	}
	prefix := SafeLabel(label) + "_"

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.imageDir)
	if err != nil {
		return "", fmt.Errorf("failed to read image directory: %w", err)
	}
	serial := 1
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			serial++
		}
	}

	var (
		path string
		f    *os.File
	)
	for {
		path = filepath.Join(s.imageDir, fmt.Sprintf("%s%d.jpg", prefix, serial))
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create image file: %w", err)
		}
		serial++
	}

	if err := jpeg.Encode(f, frame.Image, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return path, nil
}

// SaveEmbedding writes e as a float64 .npy array named <unix-seconds>_<uuid>.npy.
func (s *FileStore) SaveEmbedding(e capture.Embedding) (string, error) {
	name := fmt.Sprintf("%d_%s.npy", s.now().Unix(), uuid.NewString())
	path := filepath.Join(s.embeddingDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create embedding file: %w", err)
	}
	if err := npyio.Write(f, []float64(e)); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode embedding: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write embedding: %w", err)
	}
	return path, nil
}

// LoadEmbedding reads a .npy embedding written by SaveEmbedding.
func (s *FileStore) LoadEmbedding(path string) (capture.Embedding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var values []float64
	if err := npyio.Read(f, &values); err != nil {
		return nil, fmt.Errorf("failed to decode embedding %s: %w", path, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("embedding %s is empty", path)
	}
	return capture.Embedding(values), nil
}

// Remove deletes the given files. Missing files are not an error.
func (s *FileStore) Remove(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		log.WithField("component", "filestore").Debugf("Removed %s", p)
	}
	return errors.Join(errs...)
}

// ListFiles returns every regular file in the image and embedding directories.
func (s *FileStore) ListFiles() ([]File, error) {
	var files []File
	for _, dir := range []string{s.imageDir, s.embeddingDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dir, err)
		}
		for _, e := range entries {
			if !e.Type().IsRegular() {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			files = append(files, File{Path: filepath.Join(dir, e.Name()), ModTime: info.ModTime()})
		}
	}
	return files, nil
}

// SafeLabel turns a label into a file name prefix. Empty labels map to
// AnonymousLabel; path separators and other unsafe characters become '_'.
func SafeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return AnonymousLabel
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, label)
}
