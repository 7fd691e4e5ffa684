package postprocess

import (
	"github.com/chewxy/math32"
)

// Width returns the box width, zero for an inverted box
func (b Box) Width() float32 {
	return math32.Max(0, b.X2-b.X1)
}

// Height returns the box height, zero for an inverted box
func (b Box) Height() float32 {
	return math32.Max(0, b.Y2-b.Y1)
}

// Area returns the box area
func (b Box) Area() float32 {
	return b.Width() * b.Height()
}

// Clamp returns the box with its corners ordered and restricted to an image
// of the given width and height, so 0 <= X1 <= X2 <= width and
// 0 <= Y1 <= Y2 <= height
func (b Box) Clamp(width, height int) Box {

	x1, x2 := math32.Min(b.X1, b.X2), math32.Max(b.X1, b.X2)
	y1, y2 := math32.Min(b.Y1, b.Y2), math32.Max(b.Y1, b.Y2)

	return Box{
		X1: clamp(x1, 0, float32(width)),
		Y1: clamp(y1, 0, float32(height)),
		X2: clamp(x2, 0, float32(width)),
		Y2: clamp(y2, 0, float32(height)),
	}
}

// CenterToCorner converts a center point and size into corner form
func CenterToCorner(cx, cy, w, h float32) Box {
	return Box{
		X1: cx - w/2,
		Y1: cy - h/2,
		X2: cx + w/2,
		Y2: cy + h/2,
	}
}

// IoU works out the Intersection over Union of two boxes.  Inverted boxes
// have zero area and a zero union returns 0
func IoU(a, b Box) float32 {

	iw := math32.Max(0, math32.Min(a.X2, b.X2)-math32.Max(a.X1, b.X1))
	ih := math32.Max(0, math32.Min(a.Y2, b.Y2)-math32.Max(a.Y1, b.Y1))
	intersection := iw * ih

	union := a.Area() + b.Area() - intersection

	if union <= 0 {
		return 0
	}

	return intersection / union
}

// clamp restricts the value val to be within the range min and max
func clamp(val, min, max float32) float32 {

	if val > min {

		if val < max {
			return val
		}

		return max
	}

	return min
}

// isValidBox reports whether a box in network input space is plausible:
// larger than a pixel in both axes and overlapping the input canvas
func isValidBox(b Box, inW, inH int) bool {
	return b.X2-b.X1 > 1 && b.Y2-b.Y1 > 1 && b.X2 > 0 && b.Y2 > 0 &&
		b.X1 < float32(inW) && b.Y1 < float32(inH)
}

// countValid returns the number of valid boxes
func countValid(boxes []Box, inW, inH int) int {

	n := 0

	for _, b := range boxes {
		if isValidBox(b, inW, inH) {
			n++
		}
	}

	return n
}
