package mot

import (
	"fmt"
	"sort"
	"strings"
)

// Keypoint is a single landmark as reported by the pose detector.
// Coordinates are in detector space: see AxisOrder for how they map onto the image.
// A keypoint at (0, 0) means "not detected".
type Keypoint struct {
	X     float64
	Y     float64
	Score float64
}

// IsZero reports whether keypoint is the "not detected" marker
func (kp Keypoint) IsZero() bool {
	return kp.X == 0 && kp.Y == 0
}

// Candidate is one subject returned by the pose detector
type Candidate struct {
	Score     float64
	Keypoints []Keypoint
}

// AxisOrder tells how detector keypoint axes map onto image axes
type AxisOrder uint16

const (
	// AxisRowCol means keypoint X is the image row and keypoint Y is the image column.
	// PoseNet-style decoders report keypoints this way.
	AxisRowCol AxisOrder = iota
	// AxisColRow means keypoint X is the image column and keypoint Y is the image row
	AxisColRow
)

// ToImage converts a detector-space keypoint into an image-space point (X = column, Y = row).
// This is the only place where the axis convention is applied.
func (order AxisOrder) ToImage(kp Keypoint) Point {
	if order == AxisColRow {
		return Point{X: kp.X, Y: kp.Y}
	}
	return Point{X: kp.Y, Y: kp.X}
}

// FromImage is the inverse of ToImage
func (order AxisOrder) FromImage(p Point) Keypoint {
	if order == AxisColRow {
		return Keypoint{X: p.X, Y: p.Y}
	}
	return Keypoint{X: p.Y, Y: p.X}
}

func (order AxisOrder) String() string {
	switch order {
	case AxisRowCol:
		return "row_col"
	case AxisColRow:
		return "col_row"
	default:
		return fmt.Sprintf("AxisOrder(%d)", order)
	}
}

// ParseAxisOrder parses "row_col" / "col_row". Empty string gives the default AxisRowCol.
func ParseAxisOrder(s string) (AxisOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "row_col":
		return AxisRowCol, nil
	case "col_row":
		return AxisColRow, nil
	default:
		return AxisRowCol, fmt.Errorf("unknown axis order %q", s)
	}
}

// Keypoint presets: how many leading keypoints of a COCO-ordered skeleton describe a body region
const (
	PresetFace      = "face"
	PresetUpperBody = "upper_body"
	PresetFullBody  = "full_body"
)

var keypointPresets = map[string]int{
	PresetFace:      5,
	PresetUpperBody: 11,
	PresetFullBody:  17,
}

// PresetMinPoints returns keypoint count for named preset
func PresetMinPoints(name string) (int, bool) {
	n, ok := keypointPresets[strings.ToLower(strings.TrimSpace(name))]
	return n, ok
}

// PresetNames returns known preset names sorted by keypoint count
func PresetNames() []string {
	names := make([]string, 0, len(keypointPresets))
	for name := range keypointPresets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return keypointPresets[names[i]] < keypointPresets[names[j]]
	})
	return names
}
