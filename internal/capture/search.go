package capture

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Outcome classifies how a face search ended.
type Outcome int

const (
	OutcomeFound Outcome = iota
	OutcomeTimedOut
	OutcomeNoFace
	OutcomeMultipleFaces
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeNoFace:
		return "no_face"
	case OutcomeMultipleFaces:
		return "multiple_faces"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MultiFacePolicy decides what the search does with a frame showing several faces.
type MultiFacePolicy string

const (
	// MultiFaceWait remembers the frame and keeps looking for a single face.
	MultiFaceWait MultiFacePolicy = "wait"
	// MultiFaceFailFast stops the search at the first multi-face frame.
	MultiFaceFailFast MultiFacePolicy = "fail_fast"
)

// ParseMultiFacePolicy maps a config value to a MultiFacePolicy.
func ParseMultiFacePolicy(s string) (MultiFacePolicy, error) {
	switch MultiFacePolicy(s) {
	case MultiFaceWait, "":
		return MultiFaceWait, nil
	case MultiFaceFailFast:
		return MultiFaceFailFast, nil
	}
	return "", fmt.Errorf("unknown multi-face policy %q", s)
}

// SearchResult is the tagged result of a face search. Frame, Embedding and Box
// are only set for OutcomeFound.
type SearchResult struct {
	Outcome      Outcome
	Frame        Frame
	Embedding    Embedding
	Box          BoundingBox
	FacesInFrame int
	Timeout      time.Duration
}

// Err converts a non-found outcome into the matching sentinel error.
func (r SearchResult) Err() error {
	switch r.Outcome {
	case OutcomeFound:
		return nil
	case OutcomeTimedOut:
		return &SearchTimeoutError{Seconds: r.Timeout.Seconds()}
	case OutcomeNoFace:
		return ErrNoFaceDetected
	case OutcomeMultipleFaces:
		return ErrMultipleFacesDetected
	}
	return fmt.Errorf("unexpected search outcome %s", r.Outcome)
}

// Searcher scans live frames until exactly one face is visible.
type Searcher struct {
	oracle Oracle
	policy MultiFacePolicy
	idle   time.Duration
}

// NewSearcher creates a Searcher.
func NewSearcher(oracle Oracle, policy MultiFacePolicy) *Searcher {
	return &Searcher{oracle: oracle, policy: policy, idle: 10 * time.Millisecond}
}

// Search reads frames from dev until a single-face frame is found or timeout
// elapses, then re-evaluates the chosen frame once before accepting it.
// Oracle failures are returned as errors; every other ending is an Outcome.
func (s *Searcher) Search(ctx context.Context, dev Device, timeout time.Duration, minWidth int) (SearchResult, error) {
	logger := log.WithFields(log.Fields{"component": "face_search", "timeout": timeout})
	start := time.Now()
	deadline := start.Add(timeout)

	var (
		candidate Frame
		haveOne   bool
		faces     int
	)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return SearchResult{}, err
		}

		readCtx, cancel := context.WithDeadline(ctx, deadline)
		frame, err := dev.Read(readCtx)
		cancel()
		if err != nil || frame.Empty() {
			s.pause(ctx)
			continue
		}

		frame = Downscale(frame, minWidth)
		obs, err := s.oracle.Evaluate(ctx, frame)
		if err != nil {
			return SearchResult{}, fmt.Errorf("evaluate frame: %w", err)
		}

		if len(obs) == 1 {
			candidate, haveOne, faces = frame, true, 1
			break
		}
		if len(obs) > 1 {
			candidate, haveOne, faces = frame, true, len(obs)
			if s.policy == MultiFaceFailFast {
				break
			}
		}
	}

	if !haveOne {
		logger.Debugf("No candidate frame after %s", time.Since(start))
		return SearchResult{Outcome: OutcomeTimedOut, Timeout: timeout}, nil
	}

	obs, err := s.oracle.Evaluate(ctx, candidate)
	if err != nil {
		return SearchResult{}, fmt.Errorf("re-evaluate candidate frame: %w", err)
	}

	switch {
	case len(obs) == 0:
		logger.Debug("Candidate frame lost its face on re-evaluation")
		return SearchResult{Outcome: OutcomeNoFace, Timeout: timeout}, nil
	case len(obs) > 1:
		logger.Debugf("Candidate frame shows %d faces (first pass saw %d)", len(obs), faces)
		return SearchResult{Outcome: OutcomeMultipleFaces, FacesInFrame: len(obs), Timeout: timeout}, nil
	}

	return SearchResult{
		Outcome:      OutcomeFound,
		Frame:        candidate,
		Embedding:    obs[0].Embedding,
		Box:          obs[0].Box,
		FacesInFrame: 1,
		Timeout:      timeout,
	}, nil
}

func (s *Searcher) pause(ctx context.Context) {
	if s.idle <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(s.idle):
	}
}
