package preprocess

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"gocv.io/x/gocv"
)

// ResizeMode selects how a source image is fitted to the network input
type ResizeMode int

const (
	// ModeLetterbox preserves aspect ratio and pads the remainder
	ModeLetterbox ResizeMode = iota
	// ModeStretch scales each axis to the network input independently
	ModeStretch
)

// PadColor is the gray used for letterbox padding
var PadColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Resizer defines the struct used for handling image resizing
type Resizer struct {
	// srcWidth is the width of the source image
	srcWidth int
	// srcHeight is the height of the source image
	srcHeight int
	// destWidth is the width to scale to
	destWidth int
	// destHeight is the height to scale to
	destHeight int
	// mode is the resize method used
	mode ResizeMode
	// tempMat is a Mat used during the resize process
	tempMat gocv.Mat
	// letterbox and stretch are the coordinate mappings of the resize,
	// only the one matching mode is used
	letterbox Letterbox
	stretch   Stretch
	// rounded pixel placement of the letterbox content
	xPad int
	yPad int
	// resize dimensions
	resizeW int
	resizeH int
}

// NewResizer returns a resizer used for scaling an image to the needed
// dimensions for input tensor size
func NewResizer(srcWidth, srcHeight, destWidth, destHeight int,
	mode ResizeMode) (*Resizer, error) {

	r := &Resizer{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		mode:       mode,
	}

	// precalculate scaling dimensions
	if err := r.preCalc(); err != nil {
		return nil, err
	}

	r.tempMat = gocv.NewMat()

	return r, nil
}

// Close frees memory allocated during resize process
func (r *Resizer) Close() error {
	return r.tempMat.Close()
}

// preCalc the scaling factors for source and destination Mats
func (r *Resizer) preCalc() error {

	var err error

	if r.mode == ModeStretch {
		r.stretch, err = NewStretch(r.srcWidth, r.srcHeight, r.destWidth, r.destHeight)
		r.resizeW = r.destWidth
		r.resizeH = r.destHeight
		return err
	}

	r.letterbox, err = NewLetterbox(r.srcWidth, r.srcHeight, r.destWidth, r.destHeight)

	if err != nil {
		return err
	}

	r.resizeW = int(math32.RoundToEven(float32(r.srcWidth) * r.letterbox.Ratio))
	r.resizeH = int(math32.RoundToEven(float32(r.srcHeight) * r.letterbox.Ratio))
	r.xPad = int(math32.RoundToEven(r.letterbox.PadX))
	r.yPad = int(math32.RoundToEven(r.letterbox.PadY))

	return nil
}

// Resize scales src into dest using the resizer's mode
func (r *Resizer) Resize(src gocv.Mat, dest *gocv.Mat) {

	if r.mode == ModeStretch {
		gocv.Resize(src, dest, image.Pt(r.destWidth, r.destHeight),
			0, 0, gocv.InterpolationLinear)
		return
	}

	r.LetterBoxResize(src, dest, PadColor)
}

// LetterBoxResize resizes the input image to the dimensions needed for the input
// tensor size whilst maintaining image aspect.  Color is that used for letter
// box padding.
func (r *Resizer) LetterBoxResize(src gocv.Mat, dest *gocv.Mat, color color.RGBA) {

	gocv.Resize(src, &r.tempMat, image.Pt(r.resizeW, r.resizeH),
		0, 0, gocv.InterpolationLinear)

	gocv.CopyMakeBorder(r.tempMat, dest, r.yPad, r.destHeight-r.resizeH-r.yPad,
		r.xPad, r.destWidth-r.resizeW-r.xPad, gocv.BorderConstant, color)
}

// Transform returns the coordinate mapping back to the source image
func (r *Resizer) Transform() Transform {

	if r.mode == ModeStretch {
		return r.stretch
	}

	return r.letterbox
}

// ScaleFactor returns the scale factor used in letterbox resize
func (r *Resizer) ScaleFactor() float32 {
	return r.letterbox.Ratio
}

// XPad returns the rounded x padding used in letterbox resize
func (r *Resizer) XPad() int {
	return r.xPad
}

// YPad returns the rounded y padding used in letterbox resize
func (r *Resizer) YPad() int {
	return r.yPad
}
