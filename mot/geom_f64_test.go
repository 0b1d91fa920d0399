package mot

import (
	"math"
	"testing"
)

const (
	eps = 0.00001
)

func TestEuclideanDistance(t *testing.T) {
	p1 := Point{X: 341, Y: 264}
	p2 := Point{X: 421, Y: 427}
	correnctAnswer := 181.57367
	answer := euclideanDistance(p1, p2)
	if math.Abs(answer-correnctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correnctAnswer)
	}
}

func TestRectangleCenter(t *testing.T) {
	rect := NewRect(10, 20, 30, 40)
	center := rect.Center()
	if center != (Point{X: 25, Y: 40}) {
		t.Errorf("Wrong center: %v, expected: %v", center, Point{X: 25, Y: 40})
	}
	fromBounds := NewRectFromBounds(10, 20, 40, 60)
	if fromBounds != rect {
		t.Errorf("Wrong rectangle from bounds: %v, expected: %v", fromBounds, rect)
	}
}

func TestRectangleContainsPoint(t *testing.T) {
	rect := NewRect(0, 0, 10, 10)
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{X: 5, Y: 5}, true},
		{Point{X: 0, Y: 0}, true},
		{Point{X: 10, Y: 10}, true},
		{Point{X: 10.01, Y: 5}, false},
		{Point{X: 5, Y: -0.01}, false},
	}
	for _, tt := range tests {
		if got := rect.ContainsPoint(tt.p); got != tt.want {
			t.Errorf("ContainsPoint(%v) = %v, expected: %v", tt.p, got, tt.want)
		}
	}
}

func TestIoU(t *testing.T) {
	r1 := NewRect(0, 0, 10, 10)
	r2 := NewRect(5, 0, 10, 10)
	correctAnswer := 50.0 / 150.0
	if answer := IoU(r1, r2); math.Abs(answer-correctAnswer) > eps {
		t.Errorf("Wrong answer: %v, correct answer: %v", answer, correctAnswer)
	}
	if answer := IoU(r1, NewRect(20, 20, 5, 5)); answer != 0 {
		t.Errorf("Wrong answer for disjoint rectangles: %v, correct answer: 0", answer)
	}
	if answer := IoU(r1, r1); math.Abs(answer-1.0) > eps {
		t.Errorf("Wrong answer for identical rectangles: %v, correct answer: 1", answer)
	}
}
