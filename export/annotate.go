// Package export draws detections onto still images and encodes them for
// download.
package export

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
	"github.com/swdee/go-visionedge/postprocess"
	"github.com/swdee/go-visionedge/render"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// FontCandidates are the TrueType fonts tried in order when creating an
// Annotator, the built in bitmap face is used if none load
var FontCandidates = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
	"C:/Windows/Fonts/arialbd.ttf",
	"C:/Windows/Fonts/segoeui.ttf",
}

// fillAlpha is the opacity of the box fill, about 12%
const fillAlpha = 32

// Style defines how boxes are drawn
type Style struct {
	LineWidth    int
	FontSize     float64
	ShowLabels   bool
	ShowScores   bool
	LabelPadding int
}

// DefaultStyle returns the default annotation Style
func DefaultStyle() Style {
	return Style{
		LineWidth:    3,
		FontSize:     14,
		ShowLabels:   true,
		ShowScores:   true,
		LabelPadding: 4,
	}
}

// Annotator draws detection boxes and labels onto images
type Annotator struct {
	style Style
	face  font.Face
}

// NewAnnotator returns an Annotator using the first loadable font from
// FontCandidates
func NewAnnotator(style Style) *Annotator {

	a := &Annotator{
		style: style,
		face:  basicfont.Face7x13,
	}

	for _, path := range FontCandidates {
		face, err := loadFace(path, style.FontSize)

		if err == nil {
			a.face = face
			break
		}
	}

	return a
}

// loadFace loads the TTF font at path and sets up a new font face
func loadFace(path string, size float64) (font.Face, error) {

	fontBytes, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}

	f, err := opentype.Parse(fontBytes)

	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create type face: %w", err)
	}

	return face, nil
}

// Label returns the caption for a detection
func (a *Annotator) Label(det postprocess.Detection) string {

	if a.style.ShowScores {
		return render.LabelText(det)
	}

	return det.Label
}

// Annotate returns a copy of img with the detections drawn on it, the
// source image is not modified
func (a *Annotator) Annotate(img image.Image, dets []postprocess.Detection) *image.NRGBA {

	dst := imaging.Clone(img)

	for i, det := range dets {

		clr := render.PaletteColor(i)

		x1 := int(det.Box.X1)
		y1 := int(det.Box.Y1)
		x2 := int(det.Box.X2)
		y2 := int(det.Box.Y2)

		a.outline(dst, image.Rect(x1, y1, x2+1, y2+1), clr)

		// translucent fill over the box
		fill := color.NRGBA{R: clr.R, G: clr.G, B: clr.B, A: fillAlpha}
		draw.Draw(dst, image.Rect(x1, y1, x2+1, y2+1), image.NewUniform(fill),
			image.Point{}, draw.Over)

		if a.style.ShowLabels {
			a.label(dst, a.Label(det), x1, y1, clr)
		}
	}

	return dst
}

// outline draws a rectangle border of the style's line width inside r
func (a *Annotator) outline(dst draw.Image, r image.Rectangle, clr color.RGBA) {

	lw := max(a.style.LineWidth, 1)
	src := image.NewUniform(clr)

	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+lw),
		image.Rect(r.Min.X, r.Max.Y-lw, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+lw, r.Max.Y),
		image.Rect(r.Max.X-lw, r.Min.Y, r.Max.X, r.Max.Y),
	}

	for _, e := range edges {
		draw.Draw(dst, e.Intersect(r), src, image.Point{}, draw.Src)
	}
}

// label draws white text on a filled background above the box corner x1,y1
func (a *Annotator) label(dst draw.Image, text string, x1, y1 int, clr color.RGBA) {

	pad := a.style.LabelPadding
	tw, th, ascent := a.textSize(text)

	ly := max(0, y1-th-pad*2-2)

	draw.Draw(dst, image.Rect(x1, ly, x1+tw+pad*2+1, ly+th+pad*2+1),
		image.NewUniform(clr), image.Point{}, draw.Src)

	dr := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: a.face,
		Dot:  fixed.P(x1+pad, ly+pad+ascent),
	}
	dr.DrawString(text)
}

// textSize returns the width and height of the rendered text and the
// ascent of the face
func (a *Annotator) textSize(text string) (int, int, int) {

	metrics := a.face.Metrics()
	width := font.MeasureString(a.face, text).Ceil()

	return width, metrics.Ascent.Ceil() + metrics.Descent.Ceil(), metrics.Ascent.Ceil()
}
