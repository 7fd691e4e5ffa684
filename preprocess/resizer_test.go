package preprocess

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-visionedge"
	"gocv.io/x/gocv"
)

var (
	black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
)

func TestLetterBoxResize(t *testing.T) {

	tests := []struct {
		srcWidth      int
		srcHeight     int
		resizeWidth   int
		resizeHeight  int
		expectedXPad  int
		expectedYPad  int
		expectedScale float32
	}{
		{1280, 720, 640, 640, 0, 140, 0.50},
		{800, 1000, 640, 640, 64, 0, 0.64},
		{800, 800, 640, 640, 0, 0, 0.8},
	}

	for _, tc := range tests {
		img := gocv.NewMatWithSize(tc.srcHeight, tc.srcWidth, gocv.MatTypeCV8UC3)

		resizedImg := gocv.NewMat()

		resizer, err := NewResizer(tc.srcWidth, tc.srcHeight, tc.resizeWidth,
			tc.resizeHeight, ModeLetterbox)
		require.NoError(t, err)

		resizer.LetterBoxResize(img, &resizedImg, black)

		assert.Equal(t, tc.expectedXPad, resizer.XPad(), "xpad for src (%d, %d)", tc.srcWidth, tc.srcHeight)
		assert.Equal(t, tc.expectedYPad, resizer.YPad(), "ypad for src (%d, %d)", tc.srcWidth, tc.srcHeight)
		assert.InDelta(t, tc.expectedScale, resizer.ScaleFactor(), 1e-6)
		assert.Equal(t, tc.resizeWidth, resizedImg.Cols())
		assert.Equal(t, tc.resizeHeight, resizedImg.Rows())

		img.Close()
		resizedImg.Close()
		resizer.Close()
	}
}

func TestStretchResize(t *testing.T) {
	img := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()

	resized := gocv.NewMat()
	defer resized.Close()

	resizer, err := NewResizer(640, 480, 320, 240, ModeStretch)
	require.NoError(t, err)
	defer resizer.Close()

	resizer.Resize(img, &resized)

	assert.Equal(t, 320, resized.Cols())
	assert.Equal(t, 240, resized.Rows())

	x, y := resizer.Transform().ToSource(160, 120)
	assert.InDelta(t, 320, x, 1e-4)
	assert.InDelta(t, 240, y, 1e-4)
}

func TestNewResizerInvalid(t *testing.T) {
	_, err := NewResizer(0, 480, 640, 640, ModeLetterbox)
	assert.Error(t, err)
}

func TestNewResizerTooThin(t *testing.T) {
	_, err := NewResizer(1, 10000, 640, 640, ModeLetterbox)
	assert.ErrorIs(t, err, visionedge.ErrInvalidInput)
}

func TestToTensor(t *testing.T) {
	// a 1x2 BGR image
	img, err := gocv.NewMatFromBytes(1, 2, gocv.MatTypeCV8UC3,
		[]byte{0, 127, 255, 255, 255, 255})
	require.NoError(t, err)
	defer img.Close()

	tensor, err := ToTensor(img, NormalizeUnit)
	require.NoError(t, err)

	// planes are R, G, B
	assert.InDeltaSlice(t, []float32{1, 1, 127.0 / 255, 1, 0, 1}, tensor, 1e-6)

	gray := gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC1)
	defer gray.Close()

	_, err = ToTensor(gray, NormalizeUnit)
	assert.Error(t, err)
}
