package capture

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Enrollment statuses.
const (
	StatusSuccess   = "success"
	StatusCancelled = "cancelled"
)

// PreviewSession is the operator side of a running preview.
type PreviewSession interface {
	FrameSink
	ID() string
	Signals() <-chan Signal
	Close()
}

// PreviewSessions opens operator preview sessions. An empty id asks for a
// generated one.
type PreviewSessions interface {
	Open(id string, deviceIndex int) (PreviewSession, error)
}

// Options holds the service-wide defaults.
type Options struct {
	WarmupFrames    int
	PreviewWindow   time.Duration
	DefaultMinWidth int
	EnrollTimeout   time.Duration
	IdentifyTimeout time.Duration
	Tolerance       float64
}

// Dependencies are the collaborators of a Service.
type Dependencies struct {
	Acquirer  *Acquirer
	Locks     *DeviceLocks
	Searcher  *Searcher
	Previewer *Previewer
	Writer    *Writer
	Matcher   *Matcher
	Catalog   Catalog
	Store     FileStore
	Sessions  PreviewSessions
	Notifier  Notifier
}

// EnrollRequest parameters an enrollment. Zero values use the service defaults.
type EnrollRequest struct {
	DeviceIndex int
	MinWidth    int
	Timeout     time.Duration
	Preview     bool
	Name        string
	SessionID   string
}

// EnrollResult is returned for successful or cancelled enrollments.
type EnrollResult struct {
	Status       string `json:"status"`
	CaptureID    string `json:"capture_id,omitempty"`
	FacesInFrame int    `json:"faces_in_frame"`
	SessionID    string `json:"session_id,omitempty"`
}

// IdentifyRequest parameters an identification. Zero values and a nil
// Tolerance use the service defaults; a Tolerance of 0 never matches.
type IdentifyRequest struct {
	DeviceIndex int
	MinWidth    int
	Timeout     time.Duration
	Tolerance   *float64
}

// Service runs enroll and identify requests end to end.
type Service struct {
	acquirer  *Acquirer
	locks     *DeviceLocks
	searcher  *Searcher
	previewer *Previewer
	writer    *Writer
	matcher   *Matcher
	catalog   Catalog
	store     FileStore
	sessions  PreviewSessions
	notifier  Notifier
	opts      Options
}

// NewService wires a Service from its collaborators.
func NewService(deps Dependencies, opts Options) *Service {
	if deps.Locks == nil {
		deps.Locks = NewDeviceLocks(BusyWait)
	}
	if deps.Notifier == nil {
		deps.Notifier = Notifiers(nil)
	}
	return &Service{
		acquirer:  deps.Acquirer,
		locks:     deps.Locks,
		searcher:  deps.Searcher,
		previewer: deps.Previewer,
		writer:    deps.Writer,
		matcher:   deps.Matcher,
		catalog:   deps.Catalog,
		store:     deps.Store,
		sessions:  deps.Sessions,
		notifier:  deps.Notifier,
		opts:      opts,
	}
}

// Options returns the configured defaults.
func (s *Service) Options() Options {
	return s.opts
}

type accepted struct {
	frame        Frame
	embedding    Embedding
	box          BoundingBox
	facesInFrame int
	cancelled    bool
	sessionID    string
}

// acquire holds the device lock and the device for the duration of fn. The
// lock is held until the camera is actually released, even if that happens
// after acquire returns.
func (s *Service) acquire(ctx context.Context, index int, fn func(dev Device) error) error {
	release, err := s.locks.Acquire(ctx, index)
	if err != nil {
		return err
	}

	handle, err := s.acquirer.Open(ctx, index)
	if err != nil {
		release()
		return err
	}
	defer func() {
		logger := log.WithFields(log.Fields{"component": "capture_service", "device_index": index})
		if err := handle.Close(); err != nil {
			logger.WithError(err).Warn("Failed to release camera")
		}
		select {
		case <-handle.Released():
			release()
		default:
			go func() {
				<-handle.Released()
				logger.Info("Camera released after delay")
				release()
			}()
		}
	}()

	Warmup(ctx, handle, s.opts.WarmupFrames)
	return fn(handle)
}

// Enroll captures a single face from the camera and stores it. With Preview
// set the operator must commit the frame; a cancelled or expired preview
// returns StatusCancelled without storing anything.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (EnrollResult, error) {
	if req.MinWidth <= 0 {
		req.MinWidth = s.opts.DefaultMinWidth
	}
	if req.Timeout <= 0 {
		req.Timeout = s.opts.EnrollTimeout
	}
	logger := log.WithFields(log.Fields{"component": "capture_service", "device_index": req.DeviceIndex, "label": req.Name})

	var got accepted
	err := s.acquire(ctx, req.DeviceIndex, func(dev Device) error {
		res, err := s.searcher.Search(ctx, dev, req.Timeout, req.MinWidth)
		if err != nil {
			return err
		}
		if err := res.Err(); err != nil {
			return err
		}
		got = accepted{frame: res.Frame, embedding: res.Embedding, box: res.Box, facesInFrame: res.FacesInFrame}

		if !req.Preview {
			return nil
		}
		return s.preview(ctx, dev, req, &got)
	})
	if err != nil {
		logger.WithError(err).Info("Enrollment failed")
		return EnrollResult{}, err
	}

	if got.cancelled {
		return EnrollResult{Status: StatusCancelled, SessionID: got.sessionID}, nil
	}

	captureID, err := s.writer.Enroll(ctx, Enrollment{
		Label:        req.Name,
		Frame:        got.frame,
		Embedding:    got.embedding,
		Box:          got.box,
		FacesInFrame: got.facesInFrame,
	})
	if err != nil {
		return EnrollResult{}, err
	}

	s.notifier.Notify(Event{
		Type:        EventEnroll,
		DeviceIndex: req.DeviceIndex,
		Status:      StatusSuccess,
		Label:       req.Name,
		CaptureID:   captureID,
		SessionID:   got.sessionID,
		Timestamp:   time.Now(),
	})

	return EnrollResult{Status: StatusSuccess, CaptureID: captureID, FacesInFrame: got.facesInFrame, SessionID: got.sessionID}, nil
}

func (s *Service) preview(ctx context.Context, dev Device, req EnrollRequest, got *accepted) error {
	if s.sessions == nil {
		return fmt.Errorf("preview requested but no preview sessions are configured")
	}
	session, err := s.sessions.Open(req.SessionID, req.DeviceIndex)
	if err != nil {
		return fmt.Errorf("open preview session: %w", err)
	}
	defer session.Close()
	got.sessionID = session.ID()

	s.notifier.Notify(Event{Type: EventPreviewStarted, DeviceIndex: req.DeviceIndex, Status: "running", SessionID: session.ID(), Timestamp: time.Now()})

	res, err := s.previewer.Confirm(ctx, dev, s.opts.PreviewWindow, session.Signals(), session)
	if err != nil {
		return err
	}

	status := StatusCancelled
	if res.Committed {
		status = "committed"
		got.frame, got.embedding, got.box, got.facesInFrame = res.Frame, res.Embedding, res.Box, 1
	} else {
		got.cancelled = true
	}
	s.notifier.Notify(Event{Type: EventPreviewEnded, DeviceIndex: req.DeviceIndex, Status: status, SessionID: session.ID(), Timestamp: time.Now()})
	return nil
}

// Identify captures a single face and matches it against the catalog. A
// search that finds no single face yields a fail result, not an error.
func (s *Service) Identify(ctx context.Context, req IdentifyRequest) (MatchResult, error) {
	if req.MinWidth <= 0 {
		req.MinWidth = s.opts.DefaultMinWidth
	}
	if req.Timeout <= 0 {
		req.Timeout = s.opts.IdentifyTimeout
	}
	tolerance := s.opts.Tolerance
	if req.Tolerance != nil {
		tolerance = *req.Tolerance
	}

	var (
		query Embedding
		found bool
	)
	err := s.acquire(ctx, req.DeviceIndex, func(dev Device) error {
		res, err := s.searcher.Search(ctx, dev, req.Timeout, req.MinWidth)
		if err != nil {
			return err
		}
		if res.Outcome == OutcomeFound {
			query, found = res.Embedding, true
		}
		return nil
	})
	if err != nil {
		return MatchResult{}, err
	}

	result := MatchResult{Status: MatchFail, Reason: FailReasonNoFace}
	if found {
		result, err = s.matcher.Identify(ctx, query, tolerance)
		if err != nil {
			return MatchResult{}, err
		}
	}

	s.notifier.Notify(Event{
		Type:        EventIdentify,
		DeviceIndex: req.DeviceIndex,
		Status:      string(result.Status),
		Label:       result.User,
		Distance:    result.Distance,
		Timestamp:   time.Now(),
	})
	return result, nil
}

// RemoveIdentity deletes an identity, its capture records and their files.
// It returns the number of removed captures and false if the label is unknown.
func (s *Service) RemoveIdentity(ctx context.Context, label string) (int, bool, error) {
	captures, found, err := s.catalog.DeleteIdentity(ctx, label)
	if err != nil {
		return 0, false, storageError("delete identity", err)
	}
	if !found {
		return 0, false, nil
	}

	paths := make([]string, 0, len(captures)*2)
	for _, c := range captures {
		paths = append(paths, c.ImagePath)
		if c.EmbeddingPath != nil {
			paths = append(paths, *c.EmbeddingPath)
		}
	}
	if err := s.store.Remove(paths...); err != nil {
		// Records are gone already; leftovers are picked up by the cleanup service.
		log.WithFields(log.Fields{"component": "capture_service", "label": label}).WithError(err).Warn("Failed to remove some capture files")
	}
	return len(captures), true, nil
}
