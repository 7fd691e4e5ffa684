package postprocess

import (
	"fmt"
	"sync"

	"github.com/chewxy/math32"
)

// Prior is an anchor box in normalized center form
type Prior struct {
	CX float32
	CY float32
	W  float32
	H  float32
}

// PriorParams defines the anchor layout of a prior encoded face model
type PriorParams struct {
	// Strides are the feature map strides in input pixels
	Strides []int
	// MinBoxes are the anchor sizes in input pixels for each stride
	MinBoxes [][]float32
	// Variances scale the encoded center and size offsets
	Variances [2]float32
}

// ULFDPriorParams returns the anchor layout of the Ultra-Light-Fast-Generic
// face detector
func ULFDPriorParams() PriorParams {
	return PriorParams{
		Strides: []int{8, 16, 32, 64},
		MinBoxes: [][]float32{
			{10, 16, 24},
			{32, 48},
			{64, 96},
			{128, 192, 256},
		},
		Variances: [2]float32{0.1, 0.2},
	}
}

// GeneratePriors builds the prior list for an inW x inH input.  For each
// stride s the feature map is ceil(inW/s) x ceil(inH/s) cells, every cell
// emits one prior per min box centered at ((x+0.5)*s/inW, (y+0.5)*s/inH),
// iterating rows, then columns, then min boxes
func GeneratePriors(inW, inH int, p PriorParams) []Prior {

	priors := make([]Prior, 0)

	if inW <= 0 || inH <= 0 {
		return priors
	}

	for i, stride := range p.Strides {

		if i >= len(p.MinBoxes) || stride <= 0 {
			break
		}

		fw := int(math32.Ceil(float32(inW) / float32(stride)))
		fh := int(math32.Ceil(float32(inH) / float32(stride)))

		for y := 0; y < fh; y++ {
			for x := 0; x < fw; x++ {

				cx := (float32(x) + 0.5) * float32(stride) / float32(inW)
				cy := (float32(y) + 0.5) * float32(stride) / float32(inH)

				for _, m := range p.MinBoxes[i] {
					priors = append(priors, Prior{
						CX: cx,
						CY: cy,
						W:  m / float32(inW),
						H:  m / float32(inH),
					})
				}
			}
		}
	}

	return priors
}

// priorCache holds generated priors keyed by input size and layout
var priorCache sync.Map

// CachedPriors returns the priors for the input size, generating them on
// first use.  The returned slice is shared and must not be modified
func CachedPriors(inW, inH int, p PriorParams) []Prior {

	key := fmt.Sprintf("%dx%d/%v/%v", inW, inH, p.Strides, p.MinBoxes)

	if v, ok := priorCache.Load(key); ok {
		return v.([]Prior)
	}

	v, _ := priorCache.LoadOrStore(key, GeneratePriors(inW, inH, p))

	return v.([]Prior)
}

// decodePrior decodes a [dx, dy, dw, dh] offset against prior into a box in
// normalized corner form
func decodePrior(off []float32, prior Prior, variances [2]float32) Box {

	cx := prior.CX + off[0]*variances[0]*prior.W
	cy := prior.CY + off[1]*variances[0]*prior.H
	w := prior.W * math32.Exp(off[2]*variances[1])
	h := prior.H * math32.Exp(off[3]*variances[1])

	return CenterToCorner(cx, cy, w, h)
}
