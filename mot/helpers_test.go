package mot

import (
	"errors"
	"io"
	"log/slog"
)

// testFrame is a synthetic frame: it knows where every subject is
type testFrame struct {
	index    int
	subjects []testSubject
}

type testSubject struct {
	center Point
	// Detector reports the subject with every face keypoint missing
	faceHidden bool
}

// faceKeypoints returns 17 COCO-ordered keypoints in (row, col) order
// for a subject whose nose is at center (image space)
func faceKeypoints(center Point) []Keypoint {
	at := func(dx, dy float64) Keypoint {
		return AxisRowCol.FromImage(Point{X: center.X + dx, Y: center.Y + dy})
	}
	return []Keypoint{
		at(0, 0),     // nose
		at(-10, -5),  // left eye
		at(10, -5),   // right eye
		at(-20, 0),   // left ear
		at(20, 0),    // right ear
		at(-40, 60),  // left shoulder
		at(40, 60),   // right shoulder
		at(-50, 120), // left elbow
		at(50, 120),  // right elbow
		at(-55, 170), // left wrist
		at(55, 170),  // right wrist
		at(-30, 180), // left hip
		at(30, 180),  // right hip
		at(-30, 260), // left knee
		at(30, 260),  // right knee
		at(-30, 330), // left ankle
		at(30, 330),  // right ankle
	}
}

// sceneDetector reports every subject of a frame
type sceneDetector struct {
	calls []int
	err   error
}

func (d *sceneDetector) Detect(frame testFrame) ([]Candidate, error) {
	d.calls = append(d.calls, frame.index)
	if d.err != nil {
		return nil, d.err
	}
	candidates := make([]Candidate, 0, len(frame.subjects))
	for _, subject := range frame.subjects {
		keypoints := faceKeypoints(subject.center)
		if subject.faceHidden {
			for i := 0; i < 5; i++ {
				keypoints[i] = Keypoint{}
			}
		}
		candidates = append(candidates, Candidate{Score: 0.9, Keypoints: keypoints})
	}
	return candidates, nil
}

// sceneTracker follows any subject whose center stays inside its box.
// Once nothing is there quality decays by 5 per frame.
type sceneTracker struct {
	box     Rectangle
	quality float64
	closed  *int
	err     error
}

func (tracker *sceneTracker) Update(frame testFrame) (Rectangle, float64, error) {
	if tracker.err != nil {
		return Rectangle{}, 0, tracker.err
	}
	for _, subject := range frame.subjects {
		if tracker.box.ContainsPoint(subject.center) {
			tracker.box.X = subject.center.X - tracker.box.Width/2
			tracker.box.Y = subject.center.Y - tracker.box.Height/2
			tracker.quality = 20
			return tracker.box, tracker.quality, nil
		}
	}
	tracker.quality -= 5
	return tracker.box, tracker.quality, nil
}

func (tracker *sceneTracker) Close() error {
	if tracker.closed != nil {
		*tracker.closed++
	}
	return nil
}

type sceneTrackers struct {
	started []Rectangle
	closed  int
	err     error
}

func (f *sceneTrackers) factory(frame testFrame, box Rectangle) (VisualTracker[testFrame], error) {
	if f.err != nil {
		return nil, f.err
	}
	f.started = append(f.started, box)
	return &sceneTracker{box: box, quality: 20, closed: &f.closed}, nil
}

// sliceSource replays prepared frames
type sliceSource struct {
	frames []testFrame
	pos    int
	err    error
}

func (s *sliceSource) Next() (testFrame, bool, error) {
	if s.err != nil && s.pos == len(s.frames) {
		return testFrame{}, false, s.err
	}
	if s.pos >= len(s.frames) {
		return testFrame{}, false, nil
	}
	frame := s.frames[s.pos]
	s.pos++
	return frame, true, nil
}

// collectSink remembers live track IDs of every frame
type collectSink struct {
	ids    [][]int
	stopAt int
}

func (s *collectSink) Consume(frame testFrame, frameIndex int, tracks []TrackView) error {
	ids := make([]int, 0, len(tracks))
	for _, track := range tracks {
		ids = append(ids, track.ID)
	}
	s.ids = append(s.ids, ids)
	if s.stopAt > 0 && frameIndex == s.stopAt {
		return ErrStopped
	}
	return nil
}

// buildFrames creates n frames, placing subjects returned by at for every index
func buildFrames(n int, at func(i int) []testSubject) []testFrame {
	frames := make([]testFrame, n)
	for i := range frames {
		frames[i] = testFrame{index: i, subjects: at(i)}
	}
	return frames
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errCollaborator = errors.New("collaborator failure")
