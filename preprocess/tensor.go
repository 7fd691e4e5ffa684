package preprocess

import (
	"fmt"

	"github.com/swdee/go-visionedge"
	"gocv.io/x/gocv"
)

// Normalization defines how 8 bit pixel values are scaled into the input
// tensor
type Normalization int

const (
	// NormalizeUnit scales pixels to [0,1] with p/255
	NormalizeUnit Normalization = iota
	// NormalizeCentered scales pixels to roughly [-1,1] with (p-127)/128 as
	// used by prior based face detectors
	NormalizeCentered
)

// apply normalizes a single pixel value
func (n Normalization) apply(p uint8) float32 {

	if n == NormalizeCentered {
		return (float32(p) - 127) / 128
	}

	return float32(p) / 255
}

// ToTensor converts a continuous BGR 8 bit Mat into a RGB planar NCHW
// float32 tensor with a batch size of 1
func ToTensor(img gocv.Mat, norm Normalization) ([]float32, error) {

	if img.Empty() || img.Type() != gocv.MatTypeCV8UC3 {
		return nil, fmt.Errorf("%w: expected non empty 8 bit BGR Mat",
			visionedge.ErrInvalidInput)
	}

	return PixelsToTensor(img.ToBytes(), img.Cols(), img.Rows(), norm)
}

// PixelsToTensor converts interleaved BGR bytes of a width x height image
// into a RGB planar NCHW float32 tensor
func PixelsToTensor(bgr []byte, width, height int, norm Normalization) ([]float32, error) {

	plane := width * height

	if width <= 0 || height <= 0 || len(bgr) != plane*3 {
		return nil, fmt.Errorf("%w: pixel buffer of %d bytes for %dx%d image",
			visionedge.ErrInvalidInput, len(bgr), width, height)
	}

	out := make([]float32, plane*3)

	for i := 0; i < plane; i++ {
		out[i] = norm.apply(bgr[i*3+2])
		out[plane+i] = norm.apply(bgr[i*3+1])
		out[plane*2+i] = norm.apply(bgr[i*3])
	}

	return out, nil
}
