package cvio

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/LdDl/mot-pose/mot"
)

var (
	boxColor    = color.RGBA{0, 255, 0, 0}
	smoothColor = color.RGBA{255, 255, 0, 0}
	textColor   = color.RGBA{0, 0, 255, 0}
)

// Trail colours, picked by track ID
var palette = []color.RGBA{
	{255, 0, 0, 0},
	{0, 128, 255, 0},
	{255, 0, 255, 0},
	{0, 255, 255, 0},
	{255, 128, 0, 0},
	{128, 0, 255, 0},
}

// RendererOptions configure Renderer
type RendererOptions struct {
	// Output video path. Empty disables writing
	OutputPath string
	Codec      string
	FPS        float64
	FrameSize  image.Point
	// Show preview window. Pressing 'q' stops processing
	Show         bool
	DrawTrails   bool
	DrawSmoothed bool
}

// Renderer draws live tracks on frames, writes them into a video file and/or shows them
// in a window. It implements mot.FrameSink.
type Renderer struct {
	writer       *gocv.VideoWriter
	window       *gocv.Window
	drawTrails   bool
	drawSmoothed bool
}

var _ mot.FrameSink[gocv.Mat] = (*Renderer)(nil)

func NewRenderer(opts RendererOptions) (*Renderer, error) {
	renderer := &Renderer{
		drawTrails:   opts.DrawTrails,
		drawSmoothed: opts.DrawSmoothed,
	}
	if opts.OutputPath != "" {
		codec := opts.Codec
		if codec == "" {
			codec = "XVID"
		}
		fps := opts.FPS
		if fps <= 0 {
			fps = 29.97
		}
		writer, err := gocv.VideoWriterFile(opts.OutputPath, codec, fps, opts.FrameSize.X, opts.FrameSize.Y, true)
		if err != nil {
			return nil, fmt.Errorf("open video writer %q: %w", opts.OutputPath, err)
		}
		renderer.writer = writer
	}
	if opts.Show {
		renderer.window = gocv.NewWindow("posetrack")
	}
	return renderer, nil
}

// Consume draws tracks on frame in place
func (r *Renderer) Consume(frame gocv.Mat, frameIndex int, tracks []mot.TrackView) error {
	for _, track := range tracks {
		drawTrack(&frame, track, r.drawTrails, r.drawSmoothed)
	}
	if r.writer != nil {
		if err := r.writer.Write(frame); err != nil {
			return fmt.Errorf("write frame %d: %w", frameIndex, err)
		}
	}
	if r.window != nil {
		r.window.IMShow(frame)
		if r.window.WaitKey(1) == 'q' {
			return mot.ErrStopped
		}
	}
	return nil
}

func drawTrack(frame *gocv.Mat, track mot.TrackView, drawTrail, drawSmoothed bool) {
	rect := track.BBox.Image()
	gocv.Rectangle(frame, rect, boxColor, 2)
	if drawSmoothed {
		gocv.Rectangle(frame, track.SmoothedBBox.Image(), smoothColor, 1)
	}
	gocv.Circle(frame, track.BBox.Center().Image(), 5, boxColor, 2)
	label := fmt.Sprintf("%d q=%.1f", track.ID, track.Quality)
	gocv.PutText(frame, label, rect.Min.Add(image.Pt(0, -6)), gocv.FontHersheyPlain, 1.2, textColor, 2)
	if !drawTrail {
		return
	}
	trailColor := palette[track.ID%len(palette)]
	for i := 1; i < len(track.Trail); i++ {
		gocv.Line(frame, track.Trail[i-1].Image(), track.Trail[i].Image(), trailColor, 2)
	}
}

func (r *Renderer) Close() error {
	var err error
	if r.writer != nil {
		err = r.writer.Close()
	}
	if r.window != nil {
		if closeErr := r.window.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
