package cvio

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Capture reads frames from a video file or camera, optionally rescaling them.
// It implements mot.FrameSource. The returned Mat is reused: it stays valid until the next call to Next.
type Capture struct {
	capture *gocv.VideoCapture
	raw     gocv.Mat
	frame   gocv.Mat
	scale   float64
}

// OpenCapture opens a video file (or camera when input is a device number).
// Non-positive scale means no rescaling.
func OpenCapture(input string, scale float64) (*Capture, error) {
	capture, err := gocv.OpenVideoCapture(input)
	if err != nil {
		return nil, fmt.Errorf("open video %q: %w", input, err)
	}
	if scale <= 0 {
		scale = 1
	}
	return &Capture{
		capture: capture,
		raw:     gocv.NewMat(),
		frame:   gocv.NewMat(),
		scale:   scale,
	}, nil
}

// Next reads the next frame. ok is false at end of stream.
func (c *Capture) Next() (gocv.Mat, bool, error) {
	if ok := c.capture.Read(&c.raw); !ok || c.raw.Empty() {
		return c.frame, false, nil
	}
	if c.scale == 1 {
		c.raw.CopyTo(&c.frame)
	} else {
		gocv.Resize(c.raw, &c.frame, image.Point{}, c.scale, c.scale, gocv.InterpolationLinear)
	}
	return c.frame, true, nil
}

// FPS returns frame rate reported by the source
func (c *Capture) FPS() float64 {
	return c.capture.Get(gocv.VideoCaptureFPS)
}

// FrameSize returns size of frames produced by Next, scale applied
func (c *Capture) FrameSize() image.Point {
	w := c.capture.Get(gocv.VideoCaptureFrameWidth)
	h := c.capture.Get(gocv.VideoCaptureFrameHeight)
	return image.Pt(int(w*c.scale+0.5), int(h*c.scale+0.5))
}

func (c *Capture) Close() error {
	c.raw.Close()
	c.frame.Close()
	return c.capture.Close()
}
