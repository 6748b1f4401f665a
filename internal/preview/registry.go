package preview

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"facegate/internal/capture"
)

var (
	// ErrSessionNotFound wird geliefert, wenn keine aktive Session mit der ID existiert
	ErrSessionNotFound = errors.New("preview session not found")
	// ErrSessionExists wird geliefert, wenn die ID bereits vergeben ist
	ErrSessionExists = errors.New("preview session already exists")
)

// Renderer zeichnet Erkennungen in ein Vorschaubild und liefert JPEG-Daten
type Renderer interface {
	Render(frame capture.Frame, observations []capture.FaceObservation) ([]byte, error)
}

// SessionInfo beschreibt eine aktive Vorschau-Session
type SessionInfo struct {
	ID          string    `json:"id"`
	DeviceIndex int       `json:"device_index"`
	StartedAt   time.Time `json:"started_at"`
	Faces       int       `json:"faces"`
	FrameAt     time.Time `json:"frame_at,omitempty"`
}

// Registry hält alle laufenden Vorschau-Sessions im Speicher
type Registry struct {
	renderer Renderer
	sessions map[string]*Session
	mutex    sync.RWMutex
}

// NewRegistry erstellt eine neue Registry. Ohne Renderer wird JPEGRenderer verwendet.
func NewRegistry(renderer Renderer) *Registry {
	if renderer == nil {
		renderer = JPEGRenderer{}
	}
	return &Registry{
		renderer: renderer,
		sessions: make(map[string]*Session),
	}
}

// Open registriert eine neue Session; eine leere ID wird generiert
func (r *Registry) Open(id string, deviceIndex int) (capture.PreviewSession, error) {
	if id == "" {
		id = uuid.NewString()
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	s := &Session{
		id:          id,
		deviceIndex: deviceIndex,
		startedAt:   time.Now(),
		signals:     make(chan capture.Signal, 4),
		registry:    r,
	}
	r.sessions[id] = s

	log.WithFields(log.Fields{"component": "preview", "session": id, "device": deviceIndex}).Info("Preview session opened")
	return s, nil
}

// Get liefert eine aktive Session
func (r *Registry) Get(id string) (*Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// List liefert alle aktiven Sessions, älteste zuerst
func (r *Registry) List() []SessionInfo {
	r.mutex.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mutex.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Signal übermittelt eine Bedienerentscheidung an eine Session
func (r *Registry) Signal(id string, sig capture.Signal) error {
	s, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	select {
	case s.signals <- sig:
	default:
		// Puffer voll: die Schleife hat noch unverarbeitete Signale
		log.WithFields(log.Fields{"component": "preview", "session": id}).Debugf("Signal %s dropped, queue full", sig)
	}
	return nil
}

func (r *Registry) remove(id string) {
	r.mutex.Lock()
	delete(r.sessions, id)
	r.mutex.Unlock()
	log.WithFields(log.Fields{"component": "preview", "session": id}).Info("Preview session closed")
}

// Session ist eine laufende Vorschau mit dem zuletzt gerenderten Bild
type Session struct {
	id          string
	deviceIndex int
	startedAt   time.Time
	signals     chan capture.Signal
	registry    *Registry

	mutex   sync.RWMutex
	frame   []byte
	faces   int
	frameAt time.Time
	closed  bool
}

// ID liefert die Session-ID
func (s *Session) ID() string { return s.id }

// Signals liefert den Kanal, über den Commit/Cancel eintreffen
func (s *Session) Signals() <-chan capture.Signal { return s.signals }

// Show rendert das Bild mit Overlays und speichert es als aktuelles Vorschaubild
func (s *Session) Show(frame capture.Frame, observations []capture.FaceObservation) {
	data, err := s.registry.renderer.Render(frame, observations)
	if err != nil {
		log.WithFields(log.Fields{"component": "preview", "session": s.id}).Warnf("Failed to render preview frame: %v", err)
		return
	}

	s.mutex.Lock()
	s.frame = data
	s.faces = len(observations)
	s.frameAt = time.Now()
	s.mutex.Unlock()
}

// Latest liefert das zuletzt gerenderte JPEG; ok ist false, solange noch kein Bild vorliegt
func (s *Session) Latest() (jpeg []byte, ok bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.frame, s.frame != nil
}

// Info liefert eine Momentaufnahme der Session
func (s *Session) Info() SessionInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return SessionInfo{
		ID:          s.id,
		DeviceIndex: s.deviceIndex,
		StartedAt:   s.startedAt,
		Faces:       s.faces,
		FrameAt:     s.frameAt,
	}
}

// Close entfernt die Session aus der Registry; mehrfacher Aufruf ist erlaubt
func (s *Session) Close() {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	s.closed = true
	s.mutex.Unlock()
	s.registry.remove(s.id)
}
