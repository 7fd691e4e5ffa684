// Package anonymize obscures face regions of video frames and still images
// by blurring or pixelating them.
package anonymize

import (
	"image"
	"math"
	"strings"

	clipper "github.com/ctessum/go.clipper"
	"github.com/swdee/go-visionedge/postprocess"
)

// Mode is the method used to obscure a face
type Mode int

const (
	// ModeBlur applies a gaussian blur to the face region
	ModeBlur Mode = iota
	// ModePixelate reduces the face region to large blocks
	ModePixelate
)

// ParseMode returns the Mode named by s, anything other than "pixelate"
// is treated as blur
func ParseMode(s string) Mode {

	if strings.EqualFold(strings.TrimSpace(s), "pixelate") {
		return ModePixelate
	}

	return ModeBlur
}

// String returns the mode name
func (m Mode) String() string {

	if m == ModePixelate {
		return "pixelate"
	}

	return "blur"
}

// Params defines how faces are obscured
type Params struct {
	Mode Mode
	// BlurRadius is the gaussian sigma in pixels used by ModeBlur
	BlurRadius float64
	// PixelateSize is the block size in pixels used by ModePixelate.  A
	// size of 1 or less leaves the region unchanged
	PixelateSize int
	// Margin grows each face outward by Margin * area / perimeter pixels
	// before obscuring, 0 obscures the detected box only
	Margin float32
}

// DefaultParams returns the default anonymization parameters
func DefaultParams() Params {
	return Params{
		Mode:         ModeBlur,
		BlurRadius:   12,
		PixelateSize: 10,
	}
}

// Region returns the pixel rectangle of a face box within a width x height
// image.  Coordinates are rounded then clamped, ok is false when the
// rectangle is empty
func Region(box postprocess.Box, margin float32, width, height int) (image.Rectangle, bool) {

	if margin > 0 {
		box = expand(box, margin)
	}

	x1 := max(0, int(math.RoundToEven(float64(box.X1))))
	y1 := max(0, int(math.RoundToEven(float64(box.Y1))))
	x2 := min(width, int(math.RoundToEven(float64(box.X2))))
	y2 := min(height, int(math.RoundToEven(float64(box.Y2))))

	if x2 <= x1 || y2 <= y1 {
		return image.Rectangle{}, false
	}

	return image.Rect(x1, y1, x2, y2), true
}

// expand grows the box outward as a closed polygon offset, the offset
// distance being ratio * area / perimeter
func expand(box postprocess.Box, ratio float32) postprocess.Box {

	w, h := box.Width(), box.Height()

	if w <= 0 || h <= 0 {
		return box
	}

	distance := w * h * ratio / (2 * (w + h))

	path := clipper.Path{
		&clipper.IntPoint{X: clipper.CInt(box.X1), Y: clipper.CInt(box.Y1)},
		&clipper.IntPoint{X: clipper.CInt(box.X2), Y: clipper.CInt(box.Y1)},
		&clipper.IntPoint{X: clipper.CInt(box.X2), Y: clipper.CInt(box.Y2)},
		&clipper.IntPoint{X: clipper.CInt(box.X1), Y: clipper.CInt(box.Y2)},
	}

	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtMiter, clipper.EtClosedPolygon)

	solution := co.Execute(float64(distance))

	out := postprocess.Box{
		X1: float32(math.Inf(1)),
		Y1: float32(math.Inf(1)),
		X2: float32(math.Inf(-1)),
		Y2: float32(math.Inf(-1)),
	}

	found := false

	for _, sol := range solution {
		for _, pt := range sol {
			out.X1 = min(out.X1, float32(pt.X))
			out.Y1 = min(out.Y1, float32(pt.Y))
			out.X2 = max(out.X2, float32(pt.X))
			out.Y2 = max(out.Y2, float32(pt.Y))
			found = true
		}
	}

	if !found {
		return box
	}

	return out
}

// smallSize returns the downscaled size of a w x h region pixelated with
// the given block size
func smallSize(w, h, size int) (int, int) {
	return max(1, w/size), max(1, h/size)
}
