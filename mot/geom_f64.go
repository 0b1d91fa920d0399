package mot

import (
	"image"
	"math"
)

// Rectangle is an axis-aligned box in image space: X grows to the right (columns),
// Y grows downwards (rows).
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

// NewRectFromBounds builds rectangle from its min/max corners
func NewRectFromBounds(xMin, yMin, xMax, yMax float64) Rectangle {
	return Rectangle{
		X:      xMin,
		Y:      yMin,
		Width:  xMax - xMin,
		Height: yMax - yMin,
	}
}

func NewRectFrom(rect image.Rectangle) Rectangle {
	return Rectangle{
		X:      float64(rect.Min.X),
		Y:      float64(rect.Min.Y),
		Width:  float64(rect.Dx()),
		Height: float64(rect.Dy()),
	}
}

// Image converts rectangle to integer image rectangle (truncating like the pixel grid does)
func (r Rectangle) Image() image.Rectangle {
	return image.Rect(int(r.X), int(r.Y), int(r.X+r.Width), int(r.Y+r.Height))
}

// MaxX returns right edge
func (r Rectangle) MaxX() float64 {
	return r.X + r.Width
}

// MaxY returns bottom edge
func (r Rectangle) MaxY() float64 {
	return r.Y + r.Height
}

// Center returns rectangle's center
func (r Rectangle) Center() Point {
	return Point{
		X: r.X + 0.5*r.Width,
		Y: r.Y + 0.5*r.Height,
	}
}

// Area returns rectangle's area. Degenerate rectangles have zero area.
func (r Rectangle) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

// ContainsPoint checks if point lies inside rectangle. Edges are inclusive.
func (r Rectangle) ContainsPoint(p Point) bool {
	return r.X <= p.X && p.X <= r.MaxX() && r.Y <= p.Y && p.Y <= r.MaxY()
}

type Point struct {
	X float64
	Y float64
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

// Image converts point to integer image point
func (p Point) Image() image.Point {
	return image.Pt(int(p.X), int(p.Y))
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(float64(p1.X-p2.X), 2) + math.Pow(float64(p1.Y-p2.Y), 2))
}
