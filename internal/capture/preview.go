package capture

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Signal is an operator decision sent to a running preview.
type Signal int

const (
	SignalCommit Signal = iota + 1
	SignalCancel
)

func (s Signal) String() string {
	switch s {
	case SignalCommit:
		return "commit"
	case SignalCancel:
		return "cancel"
	}
	return "unknown"
}

// FrameSink receives every evaluated preview frame, e.g. to render overlays
// and publish them to an operator.
type FrameSink interface {
	Show(frame Frame, observations []FaceObservation)
}

// PreviewResult is the outcome of an operator preview. Frame, Embedding and
// Box are only set when Committed is true.
type PreviewResult struct {
	Committed bool
	Frame     Frame
	Embedding Embedding
	Box       BoundingBox
}

// Previewer shows live frames to an operator until they commit or cancel.
type Previewer struct {
	oracle Oracle
	idle   time.Duration
}

// NewPreviewer creates a Previewer.
func NewPreviewer(oracle Oracle) *Previewer {
	return &Previewer{oracle: oracle, idle: 20 * time.Millisecond}
}

// Confirm runs the preview loop for at most window. A commit binds to the
// frame on screen when it arrives: signals are applied to the shown frame
// before a newer one replaces it, and a commit before the first frame is
// shown or while the shown frame does not hold exactly one face is ignored.
// Cancel or an elapsed window ends the preview uncommitted.
func (p *Previewer) Confirm(ctx context.Context, dev Device, window time.Duration, signals <-chan Signal, sink FrameSink) (PreviewResult, error) {
	logger := log.WithFields(log.Fields{"component": "preview"})
	deadline := time.Now().Add(window)

	var (
		shown    Frame
		shownObs []FaceObservation
	)
	drain := func() (PreviewResult, bool) {
		for {
			select {
			case sig := <-signals:
				if res, done := p.handle(sig, shown, shownObs, logger); done {
					return res, true
				}
			default:
				return PreviewResult{}, false
			}
		}
	}

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return PreviewResult{}, err
		}
		if res, done := drain(); done {
			return res, nil
		}

		readCtx, cancel := context.WithDeadline(ctx, deadline)
		frame, err := dev.Read(readCtx)
		cancel()
		if err != nil || frame.Empty() {
			// Nothing new to show; wait briefly for a signal instead of spinning.
			select {
			case sig := <-signals:
				if res, done := p.handle(sig, shown, shownObs, logger); done {
					return res, nil
				}
			case <-ctx.Done():
				return PreviewResult{}, ctx.Err()
			case <-time.After(p.idle):
			}
			continue
		}

		obs, err := p.oracle.Evaluate(ctx, frame)
		if err != nil {
			return PreviewResult{}, err
		}
		// Signals sent during the read or evaluation still refer to the old frame.
		if res, done := drain(); done {
			return res, nil
		}
		shown, shownObs = frame, obs
		if sink != nil {
			sink.Show(frame, obs)
		}
	}

	logger.Debugf("Preview window of %s elapsed without commit", window)
	return PreviewResult{}, nil
}

func (p *Previewer) handle(sig Signal, frame Frame, obs []FaceObservation, logger *log.Entry) (PreviewResult, bool) {
	switch sig {
	case SignalCancel:
		logger.Info("Preview cancelled by operator")
		return PreviewResult{}, true
	case SignalCommit:
		if frame.Empty() || len(obs) != 1 {
			logger.Debugf("Commit ignored: current frame shows %d faces", len(obs))
			return PreviewResult{}, false
		}
		logger.Info("Preview committed by operator")
		return PreviewResult{
			Committed: true,
			Frame:     frame,
			Embedding: obs[0].Embedding,
			Box:       obs[0].Box,
		}, true
	}
	return PreviewResult{}, false
}
