package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"facegate/internal/core/models"
)

// testFrame returns a uniform gray frame whose pixel value encodes how many
// faces countingOracle reports for it.
func testFrame(faces int) Frame {
	return sizedFrame(64, 48, faces)
}

func sizedFrame(w, h, faces int) Frame {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(faces)})
		}
	}
	return Frame{Image: img}
}

func facesIn(f Frame) int {
	r, _, _, _ := f.Image.At(0, 0).RGBA()
	return int(r >> 8)
}

func observations(n int) []FaceObservation {
	obs := make([]FaceObservation, n)
	for i := range obs {
		obs[i] = FaceObservation{
			Box:       BoundingBox{Top: 2, Right: 20, Bottom: 22, Left: 4},
			Embedding: Embedding{float64(n), float64(i)},
		}
	}
	return obs
}

var countingOracle = OracleFunc(func(_ context.Context, f Frame) ([]FaceObservation, error) {
	return observations(facesIn(f)), nil
})

// fakeDevice serves frames from script; a nil script yields ErrNoFrame.
type fakeDevice struct {
	mu     sync.Mutex
	script func(i int) (Frame, error)
	delay  time.Duration
	reads  int
	closed int
}

func (d *fakeDevice) Read(ctx context.Context) (Frame, error) {
	d.mu.Lock()
	i := d.reads
	d.reads++
	d.mu.Unlock()

	if d.delay > 0 {
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-time.After(d.delay):
		}
	}
	if d.script == nil {
		return Frame{}, ErrNoFrame
	}
	return d.script(i)
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func always(faces int) func(int) (Frame, error) {
	return func(int) (Frame, error) { return testFrame(faces), nil }
}

func sequence(faces ...int) func(int) (Frame, error) {
	return func(i int) (Frame, error) {
		if i >= len(faces) {
			i = len(faces) - 1
		}
		return testFrame(faces[i]), nil
	}
}

type fakeBackend struct {
	name    string
	dev     *fakeDevice
	openErr error
	opened  int
}

func (b *fakeBackend) Name() string { return b.name }

func (b *fakeBackend) Open(int) (Device, error) {
	b.opened++
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.dev, nil
}

func fastAcquirer(backends ...Backend) *Acquirer {
	return NewAcquirer(backends, AcquirerOptions{ProbeWindow: 100 * time.Millisecond, ProbeInterval: 5 * time.Millisecond})
}

type fakeCatalog struct {
	mu         sync.Mutex
	identities []string
	captures   []models.Capture
	ensureErr  error
	insertErr  error
	listErr    error
	refs       []models.EmbeddingRef
}

func (c *fakeCatalog) EnsureIdentity(_ context.Context, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ensureErr != nil {
		return c.ensureErr
	}
	for _, l := range c.identities {
		if l == label {
			return nil
		}
	}
	c.identities = append(c.identities, label)
	return nil
}

func (c *fakeCatalog) InsertCapture(_ context.Context, rec *models.Capture) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.insertErr != nil {
		return c.insertErr
	}
	c.captures = append(c.captures, *rec)
	return nil
}

func (c *fakeCatalog) ListRegisteredEmbeddings(context.Context) ([]models.EmbeddingRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	if c.refs != nil {
		return c.refs, nil
	}
	var refs []models.EmbeddingRef
	for _, rec := range c.captures {
		if rec.IdentityLabel != nil && rec.EmbeddingPath != nil {
			refs = append(refs, models.EmbeddingRef{Label: *rec.IdentityLabel, Path: *rec.EmbeddingPath})
		}
	}
	return refs, nil
}

func (c *fakeCatalog) DeleteIdentity(_ context.Context, label string) ([]models.Capture, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	found := false
	for i, l := range c.identities {
		if l == label {
			c.identities = append(c.identities[:i], c.identities[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return nil, false, nil
	}
	var removed, kept []models.Capture
	for _, rec := range c.captures {
		if rec.IdentityLabel != nil && *rec.IdentityLabel == label {
			removed = append(removed, rec)
		} else {
			kept = append(kept, rec)
		}
	}
	c.captures = kept
	return removed, true, nil
}

type fakeStore struct {
	mu         sync.Mutex
	files      map[string]Embedding
	images     int
	embeddings int
	imageErr   error
	embedErr   error
	loadErr    map[string]error
	removed    []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string]Embedding), loadErr: make(map[string]error)}
}

func (s *fakeStore) SaveImage(label string, _ Frame) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.imageErr != nil {
		return "", s.imageErr
	}
	if label == "" {
		label = "anonymous"
	}
	s.images++
	p := fmt.Sprintf("images/%s_%d.jpg", label, s.images)
	s.files[p] = nil
	return p, nil
}

func (s *fakeStore) SaveEmbedding(e Embedding) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.embedErr != nil {
		return "", s.embedErr
	}
	s.embeddings++
	p := fmt.Sprintf("embeddings/%d.npy", s.embeddings)
	s.files[p] = append(Embedding(nil), e...)
	return p, nil
}

func (s *fakeStore) LoadEmbedding(path string) (Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadErr[path]; err != nil {
		return nil, err
	}
	e, ok := s.files[path]
	if !ok {
		return nil, errors.New("file not found")
	}
	return e, nil
}

func (s *fakeStore) Remove(paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.files, p)
		s.removed = append(s.removed, p)
	}
	return nil
}

func (s *fakeStore) has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[path]
	return ok
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(evt Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}
