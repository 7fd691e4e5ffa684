package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIoU(t *testing.T) {

	tests := []struct {
		name     string
		a        Box
		b        Box
		expected float32
	}{
		{"identical", Box{0, 0, 10, 10}, Box{0, 0, 10, 10}, 1},
		{"disjoint", Box{0, 0, 10, 10}, Box{20, 20, 30, 30}, 0},
		{"touching", Box{0, 0, 10, 10}, Box{10, 0, 20, 10}, 0},
		{"contained", Box{0, 0, 10, 10}, Box{0, 0, 10, 6}, 0.6},
		{"half shifted", Box{0, 0, 10, 10}, Box{5, 0, 15, 10}, 50.0 / 150.0},
		{"inverted", Box{10, 10, 0, 0}, Box{0, 0, 10, 10}, 0},
		{"zero area", Box{5, 5, 5, 5}, Box{5, 5, 5, 5}, 0},
	}

	for _, tc := range tests {
		assert.InDelta(t, tc.expected, IoU(tc.a, tc.b), 1e-6, tc.name)
		assert.InDelta(t, tc.expected, IoU(tc.b, tc.a), 1e-6, tc.name+" symmetric")
	}
}

func TestCenterToCorner(t *testing.T) {
	b := CenterToCorner(50, 40, 20, 10)
	assert.Equal(t, Box{40, 35, 60, 45}, b)
	assert.InDelta(t, 200, b.Area(), 1e-6)
}

func TestClamp(t *testing.T) {

	b := Box{X1: -10, Y1: 20, X2: 500, Y2: 400}.Clamp(400, 300)
	assert.Equal(t, Box{0, 20, 400, 300}, b)

	// corners are reordered before clamping
	b = Box{X1: 50, Y1: 60, X2: 10, Y2: -5}.Clamp(400, 300)
	assert.Equal(t, Box{10, 0, 50, 60}, b)

	for _, in := range []Box{
		{-1000, -1000, 1000, 1000},
		{300, 200, 100, 50},
		{5, 5, 5, 5},
	} {
		c := in.Clamp(640, 480)
		assert.True(t, 0 <= c.X1 && c.X1 <= c.X2 && c.X2 <= 640, "x range %v", c)
		assert.True(t, 0 <= c.Y1 && c.Y1 <= c.Y2 && c.Y2 <= 480, "y range %v", c)
	}
}

func TestCountValid(t *testing.T) {
	boxes := []Box{
		{10, 10, 20, 20},   // valid
		{10, 10, 10.5, 20}, // too narrow
		{-30, -30, -10, -10},
		{700, 10, 720, 20}, // right of canvas
		{630, 470, 660, 490},
	}

	assert.Equal(t, 2, countValid(boxes, 640, 480))
	assert.Equal(t, 0, countValid(nil, 640, 480))
}
