package pose

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/mot-pose/mot"
)

func filled(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestLetterbox(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	out, transform := Letterbox(filled(200, 100, red), 64)

	assert.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())
	assert.InDelta(t, 0.32, transform.Scale, 1e-9)
	assert.Equal(t, 0.0, transform.PadX)
	assert.Equal(t, 16.0, transform.PadY)

	assert.Equal(t, padColor, out.NRGBAAt(0, 0))
	assert.Equal(t, padColor, out.NRGBAAt(32, 63))
	assert.Equal(t, red, out.NRGBAAt(32, 32))

	x, y := transform.ToSource(32, 32)
	assert.InDelta(t, 100.0, x, 1e-9)
	assert.InDelta(t, 50.0, y, 1e-9)
}

func TestToCHW(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 102, B: 255, A: 255})

	data := make([]float32, 6)
	toCHW(img, data)
	assert.InDeltaSlice(t, []float32{1, 0, 0, 0.4, 0.2, 1}, data, 1e-6)
}

func TestNumAnchors(t *testing.T) {
	assert.Equal(t, 8400, numAnchors(640))
	assert.Equal(t, 21, numAnchors(32))
}

// poseOutput builds a [5+3K, N] output buffer from per-anchor rows
func poseOutput(rows [][]float32) []float32 {
	channels := len(rows[0])
	out := make([]float32, channels*len(rows))
	for a, row := range rows {
		for c, v := range row {
			out[c*len(rows)+a] = v
		}
	}
	return out
}

func TestDecode(t *testing.T) {
	params := DecodeParams{
		NumKeypoints:  2,
		MinPoseScore:  0.15,
		MinPartScore:  0.1,
		MaxDetections: 10,
		NMSThreshold:  0.45,
		Axes:          mot.AxisRowCol,
	}
	output := poseOutput([][]float32{
		// cx, cy, w, h, score, (x, y, s) x 2
		{50, 50, 20, 20, 0.8, 45, 40, 0.9, 55, 40, 0.05},
		{52, 50, 20, 20, 0.9, 47, 41, 0.8, 57, 41, 0.7},
		{150, 50, 20, 20, 0.1, 145, 40, 0.9, 155, 40, 0.9},
		{300, 60, 40, 40, 0.5, 290, 50, 0.6, 310, 50, 0.6},
	})

	candidates := Decode(output, 4, Transform{Scale: 1}, params)
	require.Len(t, candidates, 2)

	// Best score first, the overlapping weaker pose is suppressed
	assert.InDelta(t, 0.9, candidates[0].Score, 1e-6)
	assert.InDelta(t, 0.5, candidates[1].Score, 1e-6)

	// Keypoints come out in (row, col) order
	kp := candidates[0].Keypoints[0]
	assert.Equal(t, 41.0, kp.X)
	assert.Equal(t, 47.0, kp.Y)
	assert.Equal(t, mot.NewPoint(47, 41), mot.AxisRowCol.ToImage(kp))

	params.MaxDetections = 1
	params.MinPartScore = 0.75
	candidates = Decode(output, 4, Transform{Scale: 2, PadX: 10}, params)
	require.Len(t, candidates, 1)
	// Weak keypoint is reported as not detected
	assert.True(t, candidates[0].Keypoints[1].IsZero())
	assert.Equal(t, mot.NewPoint(18.5, 20.5), mot.AxisRowCol.ToImage(candidates[0].Keypoints[0]))
}

func TestDecodeShortOutput(t *testing.T) {
	assert.Empty(t, Decode(make([]float32, 10), 4, Transform{Scale: 1}, DecodeParams{NumKeypoints: 17}))
	assert.Empty(t, Decode(nil, 0, Transform{Scale: 1}, DecodeParams{NumKeypoints: 17}))
}
