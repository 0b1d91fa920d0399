package cvio

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/LdDl/mot-pose/mot"
)

// MatDetector adapts a detector working on image.Image to gocv frames
type MatDetector struct {
	Detector mot.Detector[image.Image]
}

func (d MatDetector) Detect(frame gocv.Mat) ([]mot.Candidate, error) {
	img, err := frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return d.Detector.Detect(img)
}
