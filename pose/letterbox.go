package pose

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/gift"
)

// Letterbox fill colour used by YOLO family models
var padColor = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// Transform maps model input coordinates back onto the source image
type Transform struct {
	Scale float64
	PadX  float64
	PadY  float64
}

// ToSource converts a point from model input space into source image space
func (t Transform) ToSource(x, y float64) (float64, float64) {
	return (x - t.PadX) / t.Scale, (y - t.PadY) / t.Scale
}

// Letterbox resizes img to fit a size x size square keeping aspect ratio, centering it
// on a grey canvas
func Letterbox(img image.Image, size int) (*image.NRGBA, Transform) {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: padColor}, image.Point{}, draw.Src)
	if srcW == 0 || srcH == 0 {
		return canvas, Transform{Scale: 1}
	}

	scale := float64(size) / float64(srcW)
	if s := float64(size) / float64(srcH); s < scale {
		scale = s
	}
	newW := int(float64(srcW)*scale + 0.5)
	newH := int(float64(srcH)*scale + 0.5)
	padX := (size - newW) / 2
	padY := (size - newH) / 2

	g := gift.New(gift.Resize(newW, newH, gift.LinearResampling))
	g.DrawAt(canvas, img, image.Pt(padX, padY), gift.CopyOperator)

	return canvas, Transform{Scale: scale, PadX: float64(padX), PadY: float64(padY)}
}

// toCHW converts image into CHW float32 layout scaled into [0, 1]
func toCHW(img *image.NRGBA, dst []float32) {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	plane := w * h
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			idx := y*w + x
			dst[idx] = float32(row[x*4]) / 255.0
			dst[plane+idx] = float32(row[x*4+1]) / 255.0
			dst[2*plane+idx] = float32(row[x*4+2]) / 255.0
		}
	}
}
