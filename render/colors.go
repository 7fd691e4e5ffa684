package render

import "image/color"

var (
	// palette are the colors detection boxes are drawn in, picked by the
	// index of the detection within its frame so a color does not identify
	// an object across frames
	palette = []color.RGBA{
		{R: 0, G: 48, B: 87, A: 255},     // #003057
		{R: 211, G: 96, B: 0, A: 255},    // #D36000
		{R: 26, G: 135, B: 84, A: 255},   // #1A8754
		{R: 74, G: 158, B: 255, A: 255},  // #4A9EFF
		{R: 196, G: 18, B: 48, A: 255},   // #C41230
		{R: 0, G: 77, B: 140, A: 255},    // #004D8C
		{R: 255, G: 133, B: 51, A: 255},  // #FF8533
		{R: 46, G: 204, B: 113, A: 255},  // #2ECC71
		{R: 109, G: 179, B: 255, A: 255}, // #6DB3FF
		{R: 231, G: 76, B: 60, A: 255},   // #E74C3C
	}

	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// PaletteColor returns the box color for the i'th detection of a frame
func PaletteColor(i int) color.RGBA {

	if i < 0 {
		i = -i
	}

	return palette[i%len(palette)]
}
