package cvio

import (
	"errors"
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"

	"github.com/LdDl/mot-pose/mot"
)

// Half size of the window around the response peak left out of sidelobe statistics
const peakExclusion = 5

var errEmptyBox = errors.New("tracking box does not intersect the frame")

// CorrelationTracker follows an appearance template with normalized cross-correlation
// inside a search window around the previous box.
//
// Quality is the peak-to-sidelobe ratio of the correlation response: a sharp single peak
// gives large values, a lost target gives values close to zero.
type CorrelationTracker struct {
	template gocv.Mat
	gray     gocv.Mat
	response gocv.Mat
	mask     gocv.Mat
	box      image.Rectangle
	// Search window side relative to box side
	searchScale float64
	// Template is replaced with the current patch when quality is at least this value
	refreshQuality float64
}

var _ mot.VisualTracker[gocv.Mat] = (*CorrelationTracker)(nil)

// CorrelationTrackerFactory returns a factory starting correlation trackers
func CorrelationTrackerFactory(searchScale, refreshQuality float64) mot.TrackerFactory[gocv.Mat] {
	return func(frame gocv.Mat, box mot.Rectangle) (mot.VisualTracker[gocv.Mat], error) {
		return NewCorrelationTracker(frame, box, searchScale, refreshQuality)
	}
}

// NewCorrelationTracker takes the initial template from frame at box
func NewCorrelationTracker(frame gocv.Mat, box mot.Rectangle, searchScale, refreshQuality float64) (*CorrelationTracker, error) {
	if searchScale < 1 {
		searchScale = 1
	}
	tracker := &CorrelationTracker{
		gray:           gocv.NewMat(),
		response:       gocv.NewMat(),
		mask:           gocv.NewMat(),
		searchScale:    searchScale,
		refreshQuality: refreshQuality,
	}
	toGray(frame, &tracker.gray)
	rect := box.Image().Intersect(image.Rect(0, 0, tracker.gray.Cols(), tracker.gray.Rows()))
	if rect.Empty() {
		tracker.Close()
		return nil, errEmptyBox
	}
	tracker.box = rect
	tracker.template = cloneRegion(tracker.gray, rect)
	return tracker, nil
}

// Update searches the template in the new frame
func (tracker *CorrelationTracker) Update(frame gocv.Mat) (mot.Rectangle, float64, error) {
	toGray(frame, &tracker.gray)
	bounds := image.Rect(0, 0, tracker.gray.Cols(), tracker.gray.Rows())
	window := searchWindow(tracker.box, tracker.searchScale, bounds)
	size := tracker.box.Size()
	if window.Dx() < size.X || window.Dy() < size.Y {
		// Target drifted out of frame
		return mot.NewRectFrom(tracker.box), 0, nil
	}

	region := tracker.gray.Region(window)
	gocv.MatchTemplate(region, tracker.template, &tracker.response, gocv.TmCcoeffNormed, tracker.mask)
	region.Close()

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(tracker.response)
	quality := peakToSidelobe(responseValues(tracker.response), tracker.response.Cols(), maxLoc, float64(maxVal))

	tracker.box = image.Rectangle{Min: window.Min.Add(maxLoc), Max: window.Min.Add(maxLoc).Add(size)}
	if quality >= tracker.refreshQuality {
		tracker.template.Close()
		tracker.template = cloneRegion(tracker.gray, tracker.box)
	}
	return mot.NewRectFrom(tracker.box), quality, nil
}

func (tracker *CorrelationTracker) Close() error {
	tracker.template.Close()
	tracker.gray.Close()
	tracker.response.Close()
	tracker.mask.Close()
	return nil
}

func toGray(frame gocv.Mat, dst *gocv.Mat) {
	if frame.Channels() == 1 {
		frame.CopyTo(dst)
		return
	}
	gocv.CvtColor(frame, dst, gocv.ColorBGRToGray)
}

func cloneRegion(mat gocv.Mat, rect image.Rectangle) gocv.Mat {
	region := mat.Region(rect)
	defer region.Close()
	return region.Clone()
}

// searchWindow scales box around its center and clips it to bounds
func searchWindow(box image.Rectangle, scale float64, bounds image.Rectangle) image.Rectangle {
	size := box.Size()
	padX := int(math.Round(float64(size.X) * (scale - 1) / 2))
	padY := int(math.Round(float64(size.Y) * (scale - 1) / 2))
	return image.Rect(box.Min.X-padX, box.Min.Y-padY, box.Max.X+padX, box.Max.Y+padY).Intersect(bounds)
}

func responseValues(response gocv.Mat) []float64 {
	rows, cols := response.Rows(), response.Cols()
	values := make([]float64, 0, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			values = append(values, float64(response.GetFloatAt(y, x)))
		}
	}
	return values
}

// peakToSidelobe computes (peak - mean) / std of the response outside the peak neighbourhood.
// values is a row-major map with cols columns.
func peakToSidelobe(values []float64, cols int, peak image.Point, peakValue float64) float64 {
	if cols <= 0 {
		return 0
	}
	sidelobe := make([]float64, 0, len(values))
	for i, v := range values {
		x, y := i%cols, i/cols
		if abs(x-peak.X) <= peakExclusion && abs(y-peak.Y) <= peakExclusion {
			continue
		}
		sidelobe = append(sidelobe, v)
	}
	if len(sidelobe) < 2 {
		// Response is too small to tell the peak from noise
		return 0
	}
	mean, std := stat.MeanStdDev(sidelobe, nil)
	if std < 1e-9 {
		return 0
	}
	return (peakValue - mean) / std
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
