package anonymize

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-visionedge/postprocess"
	"gocv.io/x/gocv"
)

func face(x1, y1, x2, y2 float32) postprocess.FaceBox {
	return postprocess.FaceBox{
		Box:   postprocess.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Score: 0.9,
	}
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModePixelate, ParseMode(" Pixelate "))
	assert.Equal(t, ModeBlur, ParseMode("blur"))
	assert.Equal(t, ModeBlur, ParseMode("unknown"))
	assert.Equal(t, "pixelate", ModePixelate.String())
	assert.Equal(t, "blur", ModeBlur.String())
}

func TestRegion(t *testing.T) {

	tests := []struct {
		name     string
		box      postprocess.Box
		expected image.Rectangle
		ok       bool
	}{
		{"inside", postprocess.Box{X1: 10.4, Y1: 20.6, X2: 30.2, Y2: 40}, image.Rect(10, 21, 30, 40), true},
		{"clamped", postprocess.Box{X1: -5, Y1: -5, X2: 150, Y2: 90}, image.Rect(0, 0, 100, 80), true},
		{"empty", postprocess.Box{X1: 10, Y1: 10, X2: 10.2, Y2: 30}, image.Rectangle{}, false},
		{"outside", postprocess.Box{X1: 120, Y1: 10, X2: 140, Y2: 30}, image.Rectangle{}, false},
	}

	for _, tc := range tests {
		r, ok := Region(tc.box, 0, 100, 80)
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.expected, r, tc.name)
	}
}

func TestRegionMargin(t *testing.T) {

	// area 400 over perimeter 80 gives a 5 pixel offset
	r, ok := Region(postprocess.Box{X1: 10, Y1: 10, X2: 30, Y2: 30}, 1, 100, 100)
	require.True(t, ok)
	assert.Equal(t, image.Rect(5, 5, 35, 35), r)

	// margin growth is still clamped to the image
	r, ok = Region(postprocess.Box{X1: 0, Y1: 0, X2: 20, Y2: 20}, 1, 100, 100)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 25, 25), r)
}

// stripes returns a w x h image of alternating black and white columns
func stripes(w, h int) *image.NRGBA {

	img := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{A: 255}

			if x%2 == 0 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}

			img.SetNRGBA(x, y, c)
		}
	}

	return img
}

func TestImageBlur(t *testing.T) {

	src := stripes(40, 40)
	out, n := Image(src, []postprocess.FaceBox{face(10, 10, 30, 30), face(50, 50, 60, 60)},
		Params{Mode: ModeBlur, BlurRadius: 3})

	assert.Equal(t, 1, n)
	assert.Equal(t, src.Bounds(), out.Bounds())

	// inside the region the stripes are smoothed towards gray
	c := out.NRGBAAt(20, 20)
	assert.Greater(t, c.R, uint8(60))
	assert.Less(t, c.R, uint8(200))

	// outside is untouched and the source is unmodified
	assert.Equal(t, src.NRGBAAt(5, 5), out.NRGBAAt(5, 5))
	assert.Equal(t, uint8(255), src.NRGBAAt(20, 20).R)
}

func TestImagePixelate(t *testing.T) {

	src := stripes(40, 40)
	out, n := Image(src, []postprocess.FaceBox{face(0, 0, 20, 20)},
		Params{Mode: ModePixelate, PixelateSize: 10})

	assert.Equal(t, 1, n)

	// each 10x10 block is a single color
	for by := 0; by < 2; by++ {
		for bx := 0; bx < 2; bx++ {
			first := out.NRGBAAt(bx*10, by*10)

			for y := by * 10; y < by*10+10; y++ {
				for x := bx * 10; x < bx*10+10; x++ {
					assert.Equal(t, first, out.NRGBAAt(x, y))
				}
			}
		}
	}

	assert.Equal(t, src.NRGBAAt(25, 25), out.NRGBAAt(25, 25))
}

func TestImagePixelateSizeOne(t *testing.T) {

	src := stripes(20, 20)
	out, n := Image(src, []postprocess.FaceBox{face(0, 0, 10, 10)},
		Params{Mode: ModePixelate, PixelateSize: 1})

	// region is counted but unchanged
	assert.Equal(t, 1, n)
	assert.Equal(t, src.Pix, out.Pix)
}

// stripesMat returns a BGR Mat of alternating black and white columns
func stripesMat(t *testing.T, w, h int) gocv.Mat {

	data := make([]byte, w*h*3)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x += 2 {
			i := (y*w + x) * 3
			data[i], data[i+1], data[i+2] = 255, 255, 255
		}
	}

	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)

	return m
}

func TestMatBlur(t *testing.T) {

	img := stripesMat(t, 40, 40)
	defer img.Close()

	before := img.ToBytes()
	n := Mat(&img, []postprocess.FaceBox{face(10, 10, 30, 30), face(45, 45, 50, 50)},
		Params{Mode: ModeBlur, BlurRadius: 3})

	assert.Equal(t, 1, n)

	after := img.ToBytes()
	at := func(buf []byte, x, y int) byte { return buf[(y*40+x)*3] }

	assert.Greater(t, at(after, 20, 20), byte(60))
	assert.Less(t, at(after, 20, 20), byte(200))
	assert.Equal(t, at(before, 5, 5), at(after, 5, 5))
	assert.Equal(t, at(before, 35, 35), at(after, 35, 35))
}

func TestMatPixelate(t *testing.T) {

	img := stripesMat(t, 40, 40)
	defer img.Close()

	n := Mat(&img, []postprocess.FaceBox{face(0, 0, 20, 20)},
		Params{Mode: ModePixelate, PixelateSize: 10})

	assert.Equal(t, 1, n)

	buf := img.ToBytes()
	at := func(x, y int) byte { return buf[(y*40+x)*3] }

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			assert.Equal(t, at(0, 0), at(x, y))
		}
	}

	// outside keeps the stripes
	assert.NotEqual(t, at(24, 30), at(25, 30))
}

func TestMatBlurZeroRadius(t *testing.T) {

	img := stripesMat(t, 20, 20)
	defer img.Close()

	before := img.ToBytes()
	n := Mat(&img, []postprocess.FaceBox{face(0, 0, 10, 10)}, Params{Mode: ModeBlur})

	assert.Equal(t, 1, n)
	assert.Equal(t, before, img.ToBytes())
}
