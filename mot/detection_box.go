package mot

// DetectionBox is a padded bounding box derived from one candidate's keypoints.
// It lives for a single detection frame only.
type DetectionBox struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
	// Index of the candidate in detector output
	CandidateIndex int
}

// Rect returns box as Rectangle
func (box DetectionBox) Rect() Rectangle {
	return NewRectFromBounds(box.XMin, box.YMin, box.XMax, box.YMax)
}

// Width returns box width
func (box DetectionBox) Width() float64 {
	return box.XMax - box.XMin
}

// Height returns box height
func (box DetectionBox) Height() float64 {
	return box.YMax - box.YMin
}

// Center returns box center
func (box DetectionBox) Center() Point {
	return Point{
		X: box.XMin + 0.5*box.Width(),
		Y: box.YMin + 0.5*box.Height(),
	}
}

// ExtractDetectionBox builds padded box from leading keypoints of a candidate.
//
// Only the first min(minPoints, len(keypoints)-1) keypoints are considered and those at (0, 0)
// are skipped as not detected. Returns false when nothing is left.
// Keypoints are converted to image space via order before bounds are computed.
func ExtractDetectionBox(keypoints []Keypoint, minPoints int, padding float64, order AxisOrder) (DetectionBox, bool) {
	n := minInt(minPoints, len(keypoints)-1)
	found := false
	var xMin, yMin, xMax, yMax float64
	for i := 0; i < n; i++ {
		kp := keypoints[i]
		if kp.IsZero() {
			continue
		}
		p := order.ToImage(kp)
		if !found {
			xMin, xMax = p.X, p.X
			yMin, yMax = p.Y, p.Y
			found = true
			continue
		}
		xMin = minFloat64(xMin, p.X)
		xMax = maxFloat64(xMax, p.X)
		yMin = minFloat64(yMin, p.Y)
		yMax = maxFloat64(yMax, p.Y)
	}
	if !found {
		return DetectionBox{}, false
	}
	return DetectionBox{
		XMin: xMin - padding,
		YMin: yMin - padding,
		XMax: xMax + padding,
		YMax: yMax + padding,
	}, true
}

// ExtractDetectionBoxes runs ExtractDetectionBox for every candidate.
// Skipped candidates are reported by index.
func ExtractDetectionBoxes(candidates []Candidate, minPoints int, padding float64, order AxisOrder) (boxes []DetectionBox, skipped []int) {
	boxes = make([]DetectionBox, 0, len(candidates))
	for i, candidate := range candidates {
		box, ok := ExtractDetectionBox(candidate.Keypoints, minPoints, padding, order)
		if !ok {
			skipped = append(skipped, i)
			continue
		}
		box.CandidateIndex = i
		boxes = append(boxes, box)
	}
	return boxes, skipped
}
