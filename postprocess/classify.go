package postprocess

import (
	"fmt"
	"strings"

	"github.com/swdee/go-visionedge"
)

// OutputKind is the decoding scheme a set of model outputs follows
type OutputKind int

const (
	// OutputUnknown outputs matched no decoding scheme
	OutputUnknown OutputKind = iota
	// NmsBaked outputs are a single (N,>=6) tensor of rows
	// [x1,y1,x2,y2,score,class] with NMS already applied by the model
	NmsBaked
	// PriorEncoded outputs are a boxes tensor of offsets against a set of
	// prior anchors plus a per class scores tensor
	PriorEncoded
	// DirectCoordinate outputs carry box coordinates directly, either as a
	// boxes and scores tensor pair or a single (N,4) or (N,5) tensor
	DirectCoordinate
)

// String returns the name of the output kind
func (k OutputKind) String() string {
	switch k {
	case NmsBaked:
		return "nms-baked"
	case PriorEncoded:
		return "prior-encoded"
	case DirectCoordinate:
		return "direct-coordinate"
	default:
		return "unknown"
	}
}

// Classification describes which tensors of a model output set hold the
// boxes and scores and how they are to be decoded
type Classification struct {
	Kind OutputKind
	// Boxes is the index of the tensor holding the box rows
	Boxes int
	// Scores is the index of the scores tensor, or -1 when the scores are
	// columns of the Boxes tensor
	Scores int
	// Rows is the number of box rows
	Rows int
	// BoxCols is the number of columns in the Boxes tensor
	BoxCols int
	// ScoreCols is the number of columns in the Scores tensor
	ScoreCols int
}

// Paired reports whether boxes and scores are held in separate tensors
func (c Classification) Paired() bool {
	return c.Scores >= 0
}

// Classify inspects the output tensors and determines how they are to be
// decoded.  When two or more outputs are present a boxes (N,4) and scores
// (N,>=2) tensor pair is selected, first by name and then by shape.  The
// pair is PriorEncoded when numPriors is positive and equals the number of
// box rows, otherwise DirectCoordinate.  Without a pair the first output is
// classified on its own by column count.  An output whose buffer is shorter
// than its shape returns ErrDecodeFailure
func Classify(outputs []visionedge.Output, numPriors int) (Classification, error) {

	if len(outputs) == 0 {
		return Classification{}, fmt.Errorf("%w: no output tensors", visionedge.ErrInvalidInput)
	}

	for _, o := range outputs {
		if o.ShortBuffer() {
			return Classification{}, fmt.Errorf("%w: output %q has %d values for shape %v",
				visionedge.ErrDecodeFailure, o.Name, len(o.BufFloat), o.Shape)
		}
	}

	if len(outputs) >= 2 {
		boxes, scores := selectRoles(outputs)

		if boxes >= 0 && scores >= 0 {
			rows, boxCols, _ := outputs[boxes].Matrix()
			scoreRows, scoreCols, _ := outputs[scores].Matrix()

			if rows != scoreRows {
				return Classification{}, fmt.Errorf("%w: boxes tensor has %d rows, scores tensor has %d",
					visionedge.ErrUnsupportedOutputFormat, rows, scoreRows)
			}

			kind := DirectCoordinate

			if numPriors > 0 && rows == numPriors {
				kind = PriorEncoded
			}

			return Classification{
				Kind:      kind,
				Boxes:     boxes,
				Scores:    scores,
				Rows:      rows,
				BoxCols:   boxCols,
				ScoreCols: scoreCols,
			}, nil
		}
	}

	rows, cols, ok := outputs[0].Matrix()

	if !ok {
		return Classification{}, fmt.Errorf("%w: output %q has shape %v",
			visionedge.ErrUnsupportedOutputFormat, outputs[0].Name, outputs[0].Shape)
	}

	c := Classification{
		Boxes:   0,
		Scores:  -1,
		Rows:    rows,
		BoxCols: cols,
	}

	switch {
	case cols >= 6:
		c.Kind = NmsBaked
	case cols == 5 || cols == 4:
		c.Kind = DirectCoordinate
	default:
		return Classification{}, fmt.Errorf("%w: output %q has shape %v",
			visionedge.ErrUnsupportedOutputFormat, outputs[0].Name, outputs[0].Shape)
	}

	return c, nil
}

// selectRoles returns the index of the boxes and scores tensors, or -1 for
// a role that could not be filled.  Names containing "boxes" and "scores" or
// "conf" are matched first, then remaining roles are filled by shape in
// output order
func selectRoles(outputs []visionedge.Output) (boxes, scores int) {

	boxes, scores = -1, -1

	for i, o := range outputs {
		_, cols, ok := o.Matrix()

		if !ok {
			continue
		}

		name := strings.ToLower(o.Name)

		if boxes < 0 && cols == 4 && strings.Contains(name, "boxes") {
			boxes = i
			continue
		}

		if scores < 0 && cols >= 2 &&
			(strings.Contains(name, "scores") || strings.Contains(name, "conf")) {
			scores = i
		}
	}

	for i, o := range outputs {
		_, cols, ok := o.Matrix()

		if !ok || i == boxes || i == scores {
			continue
		}

		if boxes < 0 && cols == 4 {
			boxes = i
			continue
		}

		if scores < 0 && cols >= 2 {
			scores = i
		}
	}

	return boxes, scores
}
