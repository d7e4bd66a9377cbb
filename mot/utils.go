package mot

import "math"

// iouEps keeps the union strictly positive for degenerate boxes.
const iouEps = 1e-6

// IoU calculates Intersection over Union between two boxes.
// The union term carries a small epsilon, so zero-area boxes yield 0 instead of NaN.
func IoU(a, b Box) float64 {
	xA := maxFloat64(a.XMin, b.XMin)
	yA := maxFloat64(a.YMin, b.YMin)
	xB := minFloat64(a.XMax, b.XMax)
	yB := minFloat64(a.YMax, b.YMax)

	interArea := maxFloat64(0, xB-xA) * maxFloat64(0, yB-yA)
	union := a.Area() + b.Area() - interArea + iouEps
	return interArea / union
}

// roundTo rounds v to the given number of decimal places
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
