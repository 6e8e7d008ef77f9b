package cv

import "image"

// Region is a rectangular screen area in frame coordinates.
type Region struct {
	X1, Y1, X2, Y2 int
}

// NewRegion creates a region from two corners.
func NewRegion(x1, y1, x2, y2 int) Region {
	return Region{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Width returns the region width.
func (r Region) Width() int {
	return r.X2 - r.X1
}

// Height returns the region height.
func (r Region) Height() int {
	return r.Y2 - r.Y1
}

// Rect converts the region to an image.Rectangle for matching calls.
func (r Region) Rect() *image.Rectangle {
	rect := image.Rect(r.X1, r.Y1, r.X2, r.Y2)
	return &rect
}
