package mot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackUpdate(t *testing.T) {
	trackers := &sceneTrackers{}
	box := NewRect(60, 77.5, 80, 45)
	tracker, err := trackers.factory(testFrame{}, box)
	require.NoError(t, err)
	track := newTrack[testFrame](3, tracker, box, 10, 9, 4, 1.0)

	assert.Equal(t, 3, track.ID())
	assert.Equal(t, 10, track.BornAt())
	assert.Equal(t, 9.0, track.Quality(), "quality before the first update is the initial one")
	assert.Equal(t, []Point{{X: 100, Y: 100}}, track.Trail())

	// Subject walks right by 10 pixels per frame
	for i := 1; i <= 6; i++ {
		frame := testFrame{index: 10 + i, subjects: []testSubject{{center: Point{X: 100 + 10*float64(i), Y: 100}}}}
		require.NoError(t, track.update(frame))
	}
	assert.Equal(t, 6, track.Age())
	assert.Equal(t, 20.0, track.Quality())
	assert.Equal(t, Point{X: 160, Y: 100}, track.BBox().Center())

	// Trail is capped
	assert.Equal(t, []Point{{X: 130, Y: 100}, {X: 140, Y: 100}, {X: 150, Y: 100}, {X: 160, Y: 100}}, track.Trail())
	assert.InDelta(t, 30.0, track.PathLength(), 1e-9)

	vx, _, _, _ := track.Velocity()
	assert.Greater(t, vx, 0.0)
	smoothed := track.SmoothedBBox().Center()
	assert.InDelta(t, 160.0, smoothed.X, 15.0)

	view := track.View()
	assert.Equal(t, 3, view.ID)
	assert.Equal(t, track.BBox(), view.BBox)
	view.Trail[0] = Point{}
	assert.Equal(t, Point{X: 130, Y: 100}, track.Trail()[0], "view must not share trail storage")

	require.NoError(t, track.release())
	assert.Equal(t, 1, trackers.closed)
}

type plainTracker struct{}

func (plainTracker) Update(testFrame) (Rectangle, float64, error) { return Rectangle{}, 0, nil }

func TestTrackReleaseWithoutCloser(t *testing.T) {
	track := newTrack[testFrame](0, plainTracker{}, NewRect(0, 0, 10, 10), 0, 9, 10, 1.0)
	assert.NoError(t, track.release())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	broken := []func(*Config){
		func(c *Config) { c.DetectEvery = 0 },
		func(c *Config) { c.MinPoints = 0 },
		func(c *Config) { c.Padding = -1 },
		func(c *Config) { c.Axes = AxisOrder(5) },
		func(c *Config) { c.Association = AssociationAlgorithm(9) },
		func(c *Config) { c.MaxUnclaimedDetections = -1 },
		func(c *Config) { c.MaxTrailLen = 0 },
		func(c *Config) { c.SmoothingDt = 0 },
	}
	for i, mutate := range broken {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), "case %d", i)
	}
}

func TestIsDetectionFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DetectEvery = 3
	got := make([]int, 0)
	for i := 0; i < 10; i++ {
		if cfg.IsDetectionFrame(i) {
			got = append(got, i)
		}
	}
	assert.Equal(t, []int{0, 3, 6, 9}, got)

	cfg.DetectEvery = 1
	assert.True(t, cfg.IsDetectionFrame(7))
}
