package mot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDetectionBox(t *testing.T) {
	t.Parallel()

	t.Run("pads keypoint bounds and transposes axes", func(t *testing.T) {
		t.Parallel()
		// (row, col) keypoints
		keypoints := []Keypoint{
			{X: 100, Y: 200},
			{X: 90, Y: 190},
			{X: 90, Y: 210},
			{X: 95, Y: 180},
			{X: 95, Y: 220},
			{X: 300, Y: 300},
		}
		box, ok := ExtractDetectionBox(keypoints, 5, 20, AxisRowCol)
		require.True(t, ok)
		assert.Equal(t, 160.0, box.XMin)
		assert.Equal(t, 240.0, box.XMax)
		assert.Equal(t, 70.0, box.YMin)
		assert.Equal(t, 120.0, box.YMax)
		assert.Equal(t, 80.0, box.Width())
		assert.Equal(t, 50.0, box.Height())
		assert.Equal(t, Point{X: 200, Y: 95}, box.Center())
	})

	t.Run("col_row keeps axes", func(t *testing.T) {
		t.Parallel()
		keypoints := []Keypoint{{X: 10, Y: 50}, {X: 30, Y: 60}, {X: 1, Y: 1}}
		box, ok := ExtractDetectionBox(keypoints, 5, 0, AxisColRow)
		require.True(t, ok)
		assert.Equal(t, NewRectFromBounds(10, 50, 30, 60), box.Rect())
	})

	t.Run("uses at most len-1 keypoints", func(t *testing.T) {
		t.Parallel()
		// Last keypoint is never considered, whatever min points is
		keypoints := []Keypoint{{X: 10, Y: 10}, {X: 20, Y: 20}, {X: 500, Y: 500}}
		box, ok := ExtractDetectionBox(keypoints, 17, 0, AxisColRow)
		require.True(t, ok)
		assert.Equal(t, 20.0, box.XMax)
		assert.Equal(t, 20.0, box.YMax)
	})

	t.Run("skips zero keypoints", func(t *testing.T) {
		t.Parallel()
		keypoints := []Keypoint{{}, {X: 40, Y: 60}, {}, {X: 50, Y: 70}, {}, {}}
		box, ok := ExtractDetectionBox(keypoints, 5, 20, AxisColRow)
		require.True(t, ok)
		assert.Equal(t, NewRectFromBounds(20, 40, 70, 90), box.Rect())
	})

	t.Run("all selected keypoints zero gives no box", func(t *testing.T) {
		t.Parallel()
		keypoints := make([]Keypoint, 17)
		// Keypoints past the face subset do not count
		keypoints[10] = Keypoint{X: 100, Y: 100}
		_, ok := ExtractDetectionBox(keypoints, 5, 20, AxisRowCol)
		assert.False(t, ok)
	})

	t.Run("too few keypoints gives no box", func(t *testing.T) {
		t.Parallel()
		_, ok := ExtractDetectionBox(nil, 5, 20, AxisRowCol)
		assert.False(t, ok)
		_, ok = ExtractDetectionBox([]Keypoint{{X: 5, Y: 5}}, 5, 20, AxisRowCol)
		assert.False(t, ok)
	})
}

func TestExtractDetectionBoxes(t *testing.T) {
	candidates := []Candidate{
		{Score: 0.9, Keypoints: faceKeypoints(Point{X: 100, Y: 100})},
		{Score: 0.8, Keypoints: make([]Keypoint, 17)},
		{Score: 0.7, Keypoints: faceKeypoints(Point{X: 400, Y: 100})},
	}
	boxes, skipped := ExtractDetectionBoxes(candidates, 5, 20, AxisRowCol)
	require.Len(t, boxes, 2)
	assert.Equal(t, []int{1}, skipped)
	assert.Equal(t, 0, boxes[0].CandidateIndex)
	assert.Equal(t, 2, boxes[1].CandidateIndex)
}

func TestAxisOrderRoundTrip(t *testing.T) {
	for _, order := range []AxisOrder{AxisRowCol, AxisColRow} {
		p := Point{X: 12, Y: 34}
		assert.Equal(t, p, order.ToImage(order.FromImage(p)), order.String())
	}
	assert.Equal(t, Point{X: 2, Y: 1}, AxisRowCol.ToImage(Keypoint{X: 1, Y: 2}))

	order, err := ParseAxisOrder("COL_ROW")
	require.NoError(t, err)
	assert.Equal(t, AxisColRow, order)
	order, err = ParseAxisOrder("")
	require.NoError(t, err)
	assert.Equal(t, AxisRowCol, order)
	_, err = ParseAxisOrder("xy")
	assert.Error(t, err)
}

func TestPresets(t *testing.T) {
	assert.Equal(t, []string{PresetFace, PresetUpperBody, PresetFullBody}, PresetNames())
	n, ok := PresetMinPoints("Upper_Body")
	assert.True(t, ok)
	assert.Equal(t, 11, n)
	_, ok = PresetMinPoints("tail")
	assert.False(t, ok)
}
