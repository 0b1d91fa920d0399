package mot

import (
	"time"

	"github.com/pkg/errors"
)

// FrameSource produces frames one at a time. ok == false marks end of stream.
type FrameSource[F any] interface {
	Next() (frame F, ok bool, err error)
}

// Detector runs the pose model on a frame. Confidence filtering and the cap on
// candidates are the detector's own configuration.
type Detector[F any] interface {
	Detect(frame F) ([]Candidate, error)
}

// VisualTracker is a per-track appearance tracker handle.
// Update refines the tracked box against the next frame and reports tracking quality.
// Handles which implement io.Closer are closed when their track is evicted.
type VisualTracker[F any] interface {
	Update(frame F) (Rectangle, float64, error)
}

// TrackerFactory starts a new visual tracker on the given frame and box
type TrackerFactory[F any] func(frame F, box Rectangle) (VisualTracker[F], error)

// FrameSink consumes processed frames together with the live tracks
type FrameSink[F any] interface {
	Consume(frame F, frameIndex int, tracks []TrackView) error
}

// MultiSink fans frames out to several sinks in order. First error stops the chain.
type MultiSink[F any] []FrameSink[F]

// Consume implements FrameSink
func (sinks MultiSink[F]) Consume(frame F, frameIndex int, tracks []TrackView) error {
	for i, sink := range sinks {
		if sink == nil {
			continue
		}
		if err := sink.Consume(frame, frameIndex, tracks); err != nil {
			return errors.Wrapf(err, "Sink #%d failed on frame %d", i, frameIndex)
		}
	}
	return nil
}

// EvictionReason tells why a track has been removed
type EvictionReason string

const (
	// EvictedLowQuality is set when visual tracking quality dropped below threshold
	EvictedLowQuality EvictionReason = "low_quality"
	// EvictedUnclaimed is set when no detection box claimed the track for too long
	EvictedUnclaimed EvictionReason = "unclaimed"
)

// Observer receives lifecycle notifications from TrackManager (metrics, auditing).
// All methods are called synchronously on the processing path.
type Observer interface {
	FrameProcessed(frameIndex int, detectionFrame bool, activeTracks int)
	TrackCreated(id int, box Rectangle)
	TrackEvicted(id int, reason EvictionReason, quality float64)
	CandidatesSkipped(n int)
	DetectorLatency(d time.Duration)
}

type nopObserver struct{}

func (nopObserver) FrameProcessed(int, bool, int) {}
func (nopObserver) TrackCreated(int, Rectangle) {}
func (nopObserver) TrackEvicted(int, EvictionReason, float64) {}
func (nopObserver) CandidatesSkipped(int) {}
func (nopObserver) DetectorLatency(time.Duration) {}

// MultiObserver fans notifications out to several observers in order
type MultiObserver []Observer

func (observers MultiObserver) FrameProcessed(frameIndex int, detectionFrame bool, activeTracks int) {
	for _, o := range observers {
		o.FrameProcessed(frameIndex, detectionFrame, activeTracks)
	}
}

func (observers MultiObserver) TrackCreated(id int, box Rectangle) {
	for _, o := range observers {
		o.TrackCreated(id, box)
	}
}

func (observers MultiObserver) TrackEvicted(id int, reason EvictionReason, quality float64) {
	for _, o := range observers {
		o.TrackEvicted(id, reason, quality)
	}
}

func (observers MultiObserver) CandidatesSkipped(n int) {
	for _, o := range observers {
		o.CandidatesSkipped(n)
	}
}

func (observers MultiObserver) DetectorLatency(d time.Duration) {
	for _, o := range observers {
		o.DetectorLatency(d)
	}
}
