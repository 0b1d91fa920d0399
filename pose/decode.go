package pose

import (
	"sort"

	"github.com/LdDl/mot-pose/mot"
)

// DecodeParams control how raw model output is turned into candidates
type DecodeParams struct {
	NumKeypoints int
	// Candidates scoring below are dropped
	MinPoseScore float64
	// Keypoints scoring below are reported as (0, 0), i.e. not detected
	MinPartScore  float64
	MaxDetections int
	NMSThreshold  float64
	// Axis order of emitted keypoints
	Axes mot.AxisOrder
}

type rawPose struct {
	score     float64
	box       mot.Rectangle
	keypoints []mot.Keypoint
}

// Decode parses YOLOv8-pose style output laid out as [5+3K, N]: box center, box size,
// pose score and K triples (x, y, score) for each of N anchors. Coordinates are mapped
// back onto the source image with transform.
func Decode(output []float32, numAnchors int, transform Transform, params DecodeParams) []mot.Candidate {
	channels := 5 + 3*params.NumKeypoints
	if numAnchors <= 0 || len(output) < channels*numAnchors {
		return nil
	}
	at := func(channel, anchor int) float64 {
		return float64(output[channel*numAnchors+anchor])
	}

	poses := make([]rawPose, 0)
	for a := 0; a < numAnchors; a++ {
		score := at(4, a)
		if score < params.MinPoseScore {
			continue
		}
		cx, cy := transform.ToSource(at(0, a), at(1, a))
		w := at(2, a) / transform.Scale
		h := at(3, a) / transform.Scale
		pose := rawPose{
			score:     score,
			box:       mot.NewRect(cx-w/2, cy-h/2, w, h),
			keypoints: make([]mot.Keypoint, params.NumKeypoints),
		}
		for k := 0; k < params.NumKeypoints; k++ {
			partScore := at(5+3*k+2, a)
			if partScore < params.MinPartScore {
				continue
			}
			x, y := transform.ToSource(at(5+3*k, a), at(5+3*k+1, a))
			kp := params.Axes.FromImage(mot.NewPoint(x, y))
			kp.Score = partScore
			pose.keypoints[k] = kp
		}
		poses = append(poses, pose)
	}

	poses = nms(poses, params.NMSThreshold)
	if params.MaxDetections > 0 && len(poses) > params.MaxDetections {
		poses = poses[:params.MaxDetections]
	}

	candidates := make([]mot.Candidate, 0, len(poses))
	for _, pose := range poses {
		candidates = append(candidates, mot.Candidate{Score: pose.score, Keypoints: pose.keypoints})
	}
	return candidates
}

// nms keeps the best scoring pose of every overlapping group. Result is sorted by score.
func nms(poses []rawPose, iouThreshold float64) []rawPose {
	if len(poses) == 0 {
		return poses
	}

	sort.SliceStable(poses, func(i, j int) bool {
		return poses[i].score > poses[j].score
	})

	keep := make([]bool, len(poses))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(poses); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(poses); j++ {
			if !keep[j] {
				continue
			}
			if mot.IoU(poses[i].box, poses[j].box) > iouThreshold {
				keep[j] = false
			}
		}
	}

	result := make([]rawPose, 0, len(poses))
	for i, pose := range poses {
		if keep[i] {
			result = append(result, pose)
		}
	}
	return result
}
