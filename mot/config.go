package mot

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// AssociationAlgorithm is for algorithm type for matching detection boxes to tracks
type AssociationAlgorithm uint16

const (
	// AssociationSequential associates every box independently. Several boxes may land on the same track.
	AssociationSequential AssociationAlgorithm = iota
	// AssociationGreedy is one-to-one matching processing eligible pairs by IoU, highest first
	AssociationGreedy
	// AssociationHungarian is one-to-one matching (Kuhn-Munkres) maximizing the number of matches, then total IoU
	AssociationHungarian
)

func (algorithm AssociationAlgorithm) String() string {
	switch algorithm {
	case AssociationSequential:
		return "sequential"
	case AssociationGreedy:
		return "greedy"
	case AssociationHungarian:
		return "hungarian"
	default:
		return fmt.Sprintf("AssociationAlgorithm(%d)", algorithm)
	}
}

// ParseAssociationAlgorithm parses algorithm name. Empty string gives AssociationSequential.
func ParseAssociationAlgorithm(s string) (AssociationAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sequential":
		return AssociationSequential, nil
	case "greedy":
		return AssociationGreedy, nil
	case "hungarian":
		return AssociationHungarian, nil
	default:
		return AssociationSequential, errors.Errorf("unknown association algorithm %q", s)
	}
}

// Config holds TrackManager parameters. TrackManager keeps its own copy, so changing
// a Config after construction has no effect on a running manager.
type Config struct {
	// Run detector on every N-th frame. Default is 10
	DetectEvery int
	// Tracks with visual tracking quality below this value are evicted. Default is 9
	QualityThreshold float64
	// Number of leading keypoints used to build a detection box. Default is 5 (face)
	MinPoints int
	// Padding added around keypoints in each direction (pixels). Default is 20
	Padding float64
	// Keypoint axes convention of the detector
	Axes AxisOrder
	// Batch association strategy
	Association AssociationAlgorithm
	// Evict tracks not claimed by any detection box in this many consecutive detection frames. Zero disables.
	MaxUnclaimedDetections int
	// Max number of centers kept in track's trail. Default is 150
	MaxTrailLen int
	// Time step for the box smoothing filter. Default is 1.0 (one frame)
	SmoothingDt float64
}

// DefaultConfig returns configuration matching the reference pipeline
func DefaultConfig() Config {
	return Config{
		DetectEvery:            10,
		QualityThreshold:       9,
		MinPoints:              5,
		Padding:                20,
		Axes:                   AxisRowCol,
		Association:            AssociationSequential,
		MaxUnclaimedDetections: 0,
		MaxTrailLen:            150,
		SmoothingDt:            1.0,
	}
}

// Validate checks that configuration can drive a TrackManager
func (cfg Config) Validate() error {
	if cfg.DetectEvery < 1 {
		return errors.Errorf("detect_every must be >= 1, got %d", cfg.DetectEvery)
	}
	if cfg.MinPoints < 1 {
		return errors.Errorf("min_points must be >= 1, got %d", cfg.MinPoints)
	}
	if cfg.Padding < 0 {
		return errors.Errorf("padding must be >= 0, got %f", cfg.Padding)
	}
	if cfg.Axes != AxisRowCol && cfg.Axes != AxisColRow {
		return errors.Errorf("unknown axis order %d", cfg.Axes)
	}
	switch cfg.Association {
	case AssociationSequential, AssociationGreedy, AssociationHungarian:
	default:
		return errors.Errorf("unknown association algorithm %d", cfg.Association)
	}
	if cfg.MaxUnclaimedDetections < 0 {
		return errors.Errorf("max_unclaimed_detections must be >= 0, got %d", cfg.MaxUnclaimedDetections)
	}
	if cfg.MaxTrailLen < 1 {
		return errors.Errorf("max_trail_len must be >= 1, got %d", cfg.MaxTrailLen)
	}
	if cfg.SmoothingDt <= 0 {
		return errors.Errorf("smoothing_dt must be > 0, got %f", cfg.SmoothingDt)
	}
	return nil
}

// IsDetectionFrame reports whether detector should run on frame with given 0-based index
func (cfg Config) IsDetectionFrame(frameIndex int) bool {
	return frameIndex%cfg.DetectEvery == 0
}
