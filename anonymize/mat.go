package anonymize

import (
	"image"

	"github.com/swdee/go-visionedge/postprocess"
	"gocv.io/x/gocv"
)

// Mat obscures the faces in place on a BGR video frame and returns the
// number of face regions processed
func Mat(img *gocv.Mat, faces []postprocess.FaceBox, p Params) int {

	applied := 0

	for _, face := range faces {

		r, ok := Region(face.Box, p.Margin, img.Cols(), img.Rows())

		if !ok {
			continue
		}

		roi := img.Region(r)

		switch p.Mode {
		case ModePixelate:
			pixelateMat(&roi, p.PixelateSize)
		default:
			blurMat(&roi, p.BlurRadius)
		}

		roi.Close()
		applied++
	}

	return applied
}

// blurMat blurs the region in place, the ROI shares memory with its parent
// frame so the result is written straight back
func blurMat(roi *gocv.Mat, sigma float64) {

	if sigma <= 0 {
		return
	}

	gocv.GaussianBlur(*roi, roi, image.Pt(0, 0), sigma, sigma, gocv.BorderDefault)
}

// pixelateMat shrinks the region with nearest neighbor sampling then
// enlarges it back over itself
func pixelateMat(roi *gocv.Mat, size int) {

	if size <= 1 {
		return
	}

	w, h := roi.Cols(), roi.Rows()
	sw, sh := smallSize(w, h, size)

	small := gocv.NewMat()
	defer small.Close()

	gocv.Resize(*roi, &small, image.Pt(sw, sh), 0, 0, gocv.InterpolationNearestNeighbor)
	gocv.Resize(small, roi, image.Pt(w, h), 0, 0, gocv.InterpolationNearestNeighbor)
}
