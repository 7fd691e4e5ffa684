package anonymize

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/swdee/go-visionedge/postprocess"
)

// Image returns a copy of img with the faces obscured and the number of
// face regions processed.  The source image is not modified
func Image(img image.Image, faces []postprocess.FaceBox, p Params) (*image.NRGBA, int) {

	out := imaging.Clone(img)
	applied := 0

	for _, face := range faces {

		r, ok := Region(face.Box, p.Margin, out.Bounds().Dx(), out.Bounds().Dy())

		if !ok {
			continue
		}

		region := imaging.Crop(out, r)

		switch p.Mode {
		case ModePixelate:
			if p.PixelateSize > 1 {
				sw, sh := smallSize(r.Dx(), r.Dy(), p.PixelateSize)
				small := imaging.Resize(region, sw, sh, imaging.NearestNeighbor)
				region = imaging.Resize(small, r.Dx(), r.Dy(), imaging.NearestNeighbor)
			}
		default:
			if p.BlurRadius > 0 {
				region = imaging.Blur(region, p.BlurRadius)
			}
		}

		out = imaging.Paste(out, region, r.Min)
		applied++
	}

	return out, applied
}
