package mot

import (
	"io"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// Track is a single tracked subject. Its position is driven by the owned visual tracker,
// while an 8-D Kalman filter (state [cx, cy, w, h, vx, vy, vw, vh]) smooths the box
// used for rendering and provides velocity estimates.
type Track[F any] struct {
	id           int
	tracker      VisualTracker[F]
	bbox         Rectangle
	smoothedBBox Rectangle
	lastQuality  float64
	trail        []Point
	maxTrailLen  int
	// Frame index the track was created on
	bornAt int
	// Number of per-frame updates since creation
	age int
	// Consecutive detection frames without a claiming detection box
	unclaimed int
	kf        *kalman_filter.KalmanBBox
}

// newTrack starts a track on a detection box. Quality is not measured before the first
// update, so it starts at initialQuality (the manager passes its eviction threshold).
func newTrack[F any](id int, tracker VisualTracker[F], bbox Rectangle, frameIndex int, initialQuality float64, maxTrailLen int, dt float64) *Track[F] {
	center := bbox.Center()

	// Kalman filter props
	uCx := 1.0
	uCy := 1.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, bbox.Width, bbox.Height),
	)

	track := Track[F]{
		id:           id,
		tracker:      tracker,
		bbox:         bbox,
		smoothedBBox: bbox,
		lastQuality:  initialQuality,
		trail:        make([]Point, 0, maxTrailLen),
		maxTrailLen:  maxTrailLen,
		bornAt:       frameIndex,
		kf:           kf,
	}
	track.trail = append(track.trail, center)
	return &track
}

// ID returns track's identifier
func (track *Track[F]) ID() int {
	return track.id
}

// BBox returns box reported by the visual tracker on the latest update
func (track *Track[F]) BBox() Rectangle {
	return track.bbox
}

// SmoothedBBox returns Kalman-smoothed box
func (track *Track[F]) SmoothedBBox() Rectangle {
	return track.smoothedBBox
}

// Quality returns tracking quality from the latest update.
// Before the first update it is the initial quality given on creation.
func (track *Track[F]) Quality() float64 {
	return track.lastQuality
}

// Age returns number of frames the track has been updated for
func (track *Track[F]) Age() int {
	return track.age
}

// BornAt returns index of the frame the track was created on
func (track *Track[F]) BornAt() int {
	return track.bornAt
}

// Trail returns track's recent centers. Be careful: this is not copy of trail, but reference to it
func (track *Track[F]) Trail() []Point {
	return track.trail
}

// PathLength returns distance travelled along the kept trail
func (track *Track[F]) PathLength() float64 {
	total := 0.0
	for i := 1; i < len(track.trail); i++ {
		total += euclideanDistance(track.trail[i-1], track.trail[i])
	}
	return total
}

// Velocity returns current velocity estimates (vx, vy, vw, vh) from Kalman filter
func (track *Track[F]) Velocity() (float64, float64, float64, float64) {
	return track.kf.GetVelocity()
}

// update refreshes track position against the next frame
func (track *Track[F]) update(frame F) error {
	bbox, quality, err := track.tracker.Update(frame)
	if err != nil {
		return errors.Wrapf(err, "Can't update visual tracker of track %d", track.id)
	}
	track.bbox = bbox
	track.lastQuality = quality
	track.age++

	center := bbox.Center()
	track.kf.Predict()
	err = track.kf.Update(center.X, center.Y, bbox.Width, bbox.Height)
	if err != nil {
		return errors.Wrapf(err, "Can't update smoothing filter of track %d", track.id)
	}
	cx, cy, w, h := track.kf.GetState()
	track.smoothedBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}

	track.trail = append(track.trail, center)
	if len(track.trail) > track.maxTrailLen {
		track.trail = track.trail[1:]
	}
	return nil
}

// release frees visual tracker resources if it holds any
func (track *Track[F]) release() error {
	closer, ok := track.tracker.(io.Closer)
	if !ok {
		return nil
	}
	return closer.Close()
}

// View returns a snapshot of the track safe to hand over to sinks
func (track *Track[F]) View() TrackView {
	vx, vy, _, _ := track.Velocity()
	trail := make([]Point, len(track.trail))
	copy(trail, track.trail)
	return TrackView{
		ID:           track.id,
		BBox:         track.bbox,
		SmoothedBBox: track.smoothedBBox,
		Quality:      track.lastQuality,
		Age:          track.age,
		BornAt:       track.bornAt,
		Velocity:     Point{X: vx, Y: vy},
		PathLength:   track.PathLength(),
		Trail:        trail,
	}
}

// TrackView is a read-only snapshot of a track for rendering and recording
type TrackView struct {
	ID           int
	BBox         Rectangle
	SmoothedBBox Rectangle
	Quality      float64
	Age          int
	BornAt       int
	Velocity     Point
	PathLength   float64
	Trail        []Point
}
