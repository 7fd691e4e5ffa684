package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/preprocess"
)

func TestDetectorDecode(t *testing.T) {

	out := visionedge.NewOutput("output0", []int64{1, 3, 6}, []float32{
		100, 100, 200, 200, 0.9, 0,
		0, 0, 0, 0, 0, 0,
		10, 50, 30, 70, 0.4, 3,
	})

	lb := preprocess.Letterbox{Ratio: 0.5, PadX: 0, PadY: 40}
	d := NewDetector([]string{"person"})

	dets, err := d.Decode([]visionedge.Output{out}, lb, 400, 300)
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, 0, dets[0].ClassID)
	assert.Equal(t, "person", dets[0].Label)
	assert.InDelta(t, 0.9, dets[0].Score, 1e-6)
	assert.Equal(t, Box{200, 120, 400, 300}, dets[0].Box)

	// class outside of labels is named by its id
	assert.Equal(t, 3, dets[1].ClassID)
	assert.Equal(t, "3", dets[1].Label)
	assert.Equal(t, Box{20, 20, 60, 60}, dets[1].Box)
}

func TestDetectorDecodeEmpty(t *testing.T) {

	out := visionedge.NewOutput("", []int64{1, 2, 6}, []float32{
		10, 10, 20, 20, 0, 1,
		10, 10, 20, 20, -0.5, 1,
	})

	dets, err := NewDetector(nil).Decode([]visionedge.Output{out},
		preprocess.Letterbox{Ratio: 1}, 100, 100)

	require.NoError(t, err)
	assert.NotNil(t, dets)
	assert.Len(t, dets, 0)

	// zero rows is not an error
	out = visionedge.NewOutput("", []int64{1, 0, 6}, []float32{})
	dets, err = NewDetector(nil).Decode([]visionedge.Output{out},
		preprocess.Letterbox{Ratio: 1}, 100, 100)

	require.NoError(t, err)
	assert.Len(t, dets, 0)
}

func TestDetectorDecodeStretch(t *testing.T) {

	out := visionedge.NewOutput("", []int64{1, 6}, []float32{
		160, 120, 320, 240, 0.7, 0,
	})

	st, err := preprocess.NewStretch(1280, 960, 640, 480)
	require.NoError(t, err)

	dets, err := NewDetector([]string{"car"}).Decode([]visionedge.Output{out}, st, 1280, 960)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	assert.InDelta(t, 320, dets[0].Box.X1, 1e-3)
	assert.InDelta(t, 240, dets[0].Box.Y1, 1e-3)
	assert.InDelta(t, 640, dets[0].Box.X2, 1e-3)
	assert.InDelta(t, 480, dets[0].Box.Y2, 1e-3)
}

func TestDetectorDecodeErrors(t *testing.T) {

	d := NewDetector(nil)
	good := visionedge.NewOutput("", []int64{1, 1, 6}, make([]float32, 6))
	lb := preprocess.Letterbox{Ratio: 1}

	_, err := d.Decode(nil, lb, 100, 100)
	assert.ErrorIs(t, err, visionedge.ErrInvalidInput)

	_, err = d.Decode([]visionedge.Output{good}, lb, 0, 100)
	assert.ErrorIs(t, err, visionedge.ErrInvalidInput)

	_, err = d.Decode([]visionedge.Output{good}, preprocess.Letterbox{}, 100, 100)
	assert.ErrorIs(t, err, visionedge.ErrInvalidInput)

	bad := visionedge.NewOutput("", []int64{1, 4, 5}, make([]float32, 20))
	_, err = d.Decode([]visionedge.Output{bad}, lb, 100, 100)
	assert.ErrorIs(t, err, visionedge.ErrUnsupportedOutputFormat)

	// valid layout but the run produced fewer values than the shape
	short := visionedge.NewOutput("", []int64{1, 3, 6}, make([]float32, 12))
	_, err = d.Decode([]visionedge.Output{short}, lb, 100, 100)
	assert.ErrorIs(t, err, visionedge.ErrDecodeFailure)
	assert.NotErrorIs(t, err, visionedge.ErrUnsupportedOutputFormat)
}

func TestDetectorClampInvariant(t *testing.T) {

	out := visionedge.NewOutput("", []int64{4, 6}, []float32{
		-50, -50, 900, 900, 0.5, 0,
		300, 300, 100, 100, 0.5, 0,
		640, 640, 700, 700, 0.5, 0,
		10, 10, 20, 20, 0.5, 0,
	})

	dets, err := NewDetector(nil).Decode([]visionedge.Output{out},
		preprocess.Letterbox{Ratio: 1, PadX: 0, PadY: 80}, 640, 480)
	require.NoError(t, err)
	require.Len(t, dets, 4)

	for _, det := range dets {
		b := det.Box
		assert.True(t, 0 <= b.X1 && b.X1 <= b.X2 && b.X2 <= 640, "x range %v", b)
		assert.True(t, 0 <= b.Y1 && b.Y1 <= b.Y2 && b.Y2 <= 480, "y range %v", b)
	}
}
