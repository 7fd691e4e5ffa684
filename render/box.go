package render

import (
	"fmt"
	"image"

	"github.com/swdee/go-visionedge/postprocess"
	"gocv.io/x/gocv"
)

// LabelText returns the caption drawn above a detection, eg: "person 87%"
func LabelText(det postprocess.Detection) string {
	return fmt.Sprintf("%s %.0f%%", det.Label, det.Score*100)
}

// labelPlacement returns the filled background rectangle of a label with a
// text size of tw x th placed on a box whose top left corner is x1,y1, and
// the baseline origin of the text.  The label sits above the box, moved
// inside the image when the box touches the top edge
func labelPlacement(x1, y1, tw, th, pad int) (image.Rectangle, image.Point) {

	ly := max(y1-th-2*pad, 0)

	rect := image.Rect(x1, ly, x1+tw+2*pad, ly+th+2*pad)
	origin := image.Pt(x1+pad, ly+th+pad)

	return rect, origin
}

// DetectionBoxes renders the bounding boxes around the objects detected, and
// their labels when drawLabels is set.  Box corners are truncated to whole
// pixels
func DetectionBoxes(img *gocv.Mat, dets []postprocess.Detection, font Font,
	lineThickness int, drawLabels bool) {

	for i, det := range dets {

		useClr := PaletteColor(i)

		x1 := int(det.Box.X1)
		y1 := int(det.Box.Y1)
		x2 := int(det.Box.X2)
		y2 := int(det.Box.Y2)

		// draw rectangle around detected object
		gocv.Rectangle(img, image.Rect(x1, y1, x2, y2), useClr, lineThickness)

		if !drawLabels {
			continue
		}

		text := LabelText(det)
		textSize := gocv.GetTextSize(text, font.Face, font.Scale, font.Thickness)

		rect, origin := labelPlacement(x1, y1, textSize.X, textSize.Y, font.Pad)

		// draw box text gets written on
		gocv.Rectangle(img, rect, useClr, -1)

		// draw the label over box
		gocv.PutTextWithParams(img, text, origin, font.Face, font.Scale,
			font.Color, font.Thickness, font.LineType, false)
	}
}
