package mot

import (
	"image"
	"math"
)

// Box is an axis-aligned bounding box given by its corners, in pixels.
type Box struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

func NewBox(xmin, ymin, xmax, ymax float64) Box {
	return Box{
		XMin: xmin,
		YMin: ymin,
		XMax: xmax,
		YMax: ymax,
	}
}

func NewBoxFrom(rect image.Rectangle) Box {
	return Box{
		XMin: float64(rect.Min.X),
		YMin: float64(rect.Min.Y),
		XMax: float64(rect.Max.X),
		YMax: float64(rect.Max.Y),
	}
}

// Area returns raw (possibly negative for inverted boxes) area
func (b Box) Area() float64 {
	return (b.XMax - b.XMin) * (b.YMax - b.YMin)
}

// Center returns middle point of the box
func (b Box) Center() Point {
	return NewPoint((b.XMin+b.XMax)/2.0, (b.YMin+b.YMax)/2.0)
}

// Size returns width and height of the box, each clamped to at least one pixel
func (b Box) Size() Size {
	return Size{
		W: math.Max(1, b.XMax-b.XMin),
		H: math.Max(1, b.YMax-b.YMin),
	}
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func NewPoint(x, y float64) Point {
	return Point{
		X: x,
		Y: y,
	}
}

// Size is width and height of a box
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Hypot(p1.X-p2.X, p1.Y-p2.Y)
}
