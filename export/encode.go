package export

import (
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/postprocess"
)

// DefaultJPEGQuality is used when EncodeTo is given a quality outside 1..100
const DefaultJPEGQuality = 90

// Format is an export encoding
type Format int

const (
	JPEG Format = iota
	PNG
)

// ParseFormat returns the Format named by s, eg: "png", "jpeg" or "jpg"
func ParseFormat(s string) (Format, error) {

	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg", "":
		return JPEG, nil
	case "png":
		return PNG, nil
	}

	return JPEG, fmt.Errorf("%w: export format %q", visionedge.ErrInvalidInput, s)
}

// Ext returns the file extension of the format
func (f Format) Ext() string {

	if f == PNG {
		return ".png"
	}

	return ".jpg"
}

// Encode writes img to w in the given format
func Encode(w io.Writer, img image.Image, format Format, quality int) error {

	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	if format == PNG {
		return imaging.Encode(w, img, imaging.PNG)
	}

	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

// EncodeTo annotates img with dets and writes the result to w
func (a *Annotator) EncodeTo(w io.Writer, img image.Image, dets []postprocess.Detection,
	format Format, quality int) error {

	if err := Encode(w, a.Annotate(img, dets), format, quality); err != nil {
		return fmt.Errorf("error encoding annotated image: %w", err)
	}

	return nil
}
