package preprocess

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/swdee/go-visionedge"
)

// Transform maps a coordinate in network input space back to the source
// image space it was produced from
type Transform interface {
	// ToSource maps network input coordinates to source image coordinates
	ToSource(x, y float32) (float32, float32)
	// Validate returns ErrInvalidInput if the transform can not be inverted
	Validate() error
}

// Letterbox defines the aspect ratio preserving mapping between a source
// image and the network input produced by a letterbox resize.  PadX and PadY
// are kept unrounded so the inverse mapping does not accumulate error, the
// pixel placement of the resized content rounds them independently
type Letterbox struct {
	// Ratio is the scale factor applied to the source image
	Ratio float32
	// PadX is the padding added to the left (and right) of the content
	PadX float32
	// PadY is the padding added to the top (and bottom) of the content
	PadY float32
}

// NewLetterbox calculates the letterbox mapping of a srcW x srcH image into
// a dstW x dstH network input
func NewLetterbox(srcW, srcH, dstW, dstH int) (Letterbox, error) {

	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Letterbox{}, fmt.Errorf("%w: letterbox of %dx%d into %dx%d",
			visionedge.ErrInvalidInput, srcW, srcH, dstW, dstH)
	}

	ratio := math32.Min(float32(dstW)/float32(srcW), float32(dstH)/float32(srcH))

	newW := math32.RoundToEven(float32(srcW) * ratio)
	newH := math32.RoundToEven(float32(srcH) * ratio)

	// a very thin source scales to no content at all
	if newW < 1 || newH < 1 {
		return Letterbox{}, fmt.Errorf("%w: %dx%d scales to %vx%v in %dx%d",
			visionedge.ErrInvalidInput, srcW, srcH, newW, newH, dstW, dstH)
	}

	lb := Letterbox{
		Ratio: ratio,
		PadX:  (float32(dstW) - newW) / 2,
		PadY:  (float32(dstH) - newH) / 2,
	}

	return lb, lb.Validate()
}

// Validate returns ErrInvalidInput if the ratio is not positive, which
// happens for a zero sized source or a zero value Letterbox
func (l Letterbox) Validate() error {

	if l.Ratio <= 0 || math32.IsNaN(l.Ratio) {
		return fmt.Errorf("%w: letterbox ratio %v", visionedge.ErrInvalidInput, l.Ratio)
	}

	return nil
}

// ToSource maps a network input coordinate to source image space
func (l Letterbox) ToSource(x, y float32) (float32, float32) {
	return (x - l.PadX) / l.Ratio, (y - l.PadY) / l.Ratio
}

// ToNetwork maps a source image coordinate to network input space
func (l Letterbox) ToNetwork(x, y float32) (float32, float32) {
	return x*l.Ratio + l.PadX, y*l.Ratio + l.PadY
}

// Stretch defines the mapping of a resize that scales each axis
// independently without padding
type Stretch struct {
	// ScaleX is the source width divided by the network input width
	ScaleX float32
	// ScaleY is the source height divided by the network input height
	ScaleY float32
}

// NewStretch calculates the stretch mapping of a srcW x srcH image into a
// dstW x dstH network input
func NewStretch(srcW, srcH, dstW, dstH int) (Stretch, error) {

	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Stretch{}, fmt.Errorf("%w: stretch of %dx%d into %dx%d",
			visionedge.ErrInvalidInput, srcW, srcH, dstW, dstH)
	}

	return Stretch{
		ScaleX: float32(srcW) / float32(dstW),
		ScaleY: float32(srcH) / float32(dstH),
	}, nil
}

// Validate returns ErrInvalidInput if either scale is not positive
func (s Stretch) Validate() error {

	if s.ScaleX <= 0 || s.ScaleY <= 0 {
		return fmt.Errorf("%w: stretch scale %vx%v", visionedge.ErrInvalidInput,
			s.ScaleX, s.ScaleY)
	}

	return nil
}

// ToSource maps a network input coordinate to source image space
func (s Stretch) ToSource(x, y float32) (float32, float32) {
	return x * s.ScaleX, y * s.ScaleY
}
