package postprocess

import (
	"fmt"
	"strings"

	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/preprocess"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultFaceMinScore is the minimum face score kept
	DefaultFaceMinScore = 0.5
	// ULFDFaceMinScore is the minimum face score used for prior encoded
	// models whose scores run low
	ULFDFaceMinScore = 0.15
	// DefaultFaceNMSThreshold is the IoU above which overlapping faces are
	// suppressed
	DefaultFaceNMSThreshold = 0.3
	// DefaultScoreColumn is the foreground column of a two class scores
	// tensor, column 0 being background.  This is the convention of the
	// Ultra-Light-Fast-Generic face detector family and other models may
	// order their classes differently
	DefaultScoreColumn = 1
)

// FaceParams defines the parameters of a FaceDetector
type FaceParams struct {
	// MinScore is the minimum score a face must have to be kept
	MinScore float32
	// NMSThreshold is the IoU threshold for non-maximum suppression
	NMSThreshold float32
	// ScoreColumn is the column of the scores tensor holding the face score
	ScoreColumn int
	// Priors is the anchor layout of prior encoded models
	Priors PriorParams
}

// DefaultFaceParams returns the parameters for direct coordinate face models
func DefaultFaceParams() FaceParams {
	return FaceParams{
		MinScore:     DefaultFaceMinScore,
		NMSThreshold: DefaultFaceNMSThreshold,
		ScoreColumn:  DefaultScoreColumn,
		Priors:       ULFDPriorParams(),
	}
}

// ULFDFaceParams returns the parameters for the Ultra-Light-Fast-Generic
// face detector
func ULFDFaceParams() FaceParams {
	p := DefaultFaceParams()
	p.MinScore = ULFDFaceMinScore
	return p
}

// LooksLikeULFD reports whether a model appears to be a prior encoded face
// detector, either from its output tensor names or its file name
func LooksLikeULFD(outputNames []string, modelPath string) bool {

	if strings.Contains(strings.ToLower(modelPath), "ulfd") {
		return true
	}

	if len(outputNames) < 2 {
		return false
	}

	hasBoxes, hasScores := false, false

	for _, name := range outputNames {
		lname := strings.ToLower(name)

		if strings.Contains(lname, "boxes") {
			hasBoxes = true
		}

		if strings.Contains(lname, "scores") || strings.Contains(lname, "conf") {
			hasScores = true
		}
	}

	return hasBoxes && hasScores
}

// FaceDetector decodes the output of a face detection model into face boxes
// in original image space
type FaceDetector struct {
	Params FaceParams
}

// NewFaceDetector returns a FaceDetector using the given parameters
func NewFaceDetector(p FaceParams) *FaceDetector {
	return &FaceDetector{
		Params: p,
	}
}

// DetectFaces decodes outputs produced for an inW x inH network input into
// faces in the original imgW x imgH image, mapped back through tf.  Faces are
// returned in descending score order for paired outputs and model order
// otherwise
func (f *FaceDetector) DetectFaces(outputs []visionedge.Output, inW, inH int,
	tf preprocess.Transform, imgW, imgH int) ([]FaceBox, error) {

	if imgW <= 0 || imgH <= 0 || inW <= 0 || inH <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d, input size %dx%d",
			visionedge.ErrInvalidInput, imgW, imgH, inW, inH)
	}

	if err := tf.Validate(); err != nil {
		return nil, err
	}

	priors := CachedPriors(inW, inH, f.Params.Priors)

	cls, err := Classify(outputs, len(priors))

	if err != nil {
		return nil, err
	}

	var raw []FaceBox

	if cls.Paired() {
		raw, err = f.decodePaired(outputs, cls, priors, inW, inH)
	} else {
		raw, err = f.decodeDirect(outputs[cls.Boxes], cls)
	}

	if err != nil {
		return nil, err
	}

	faces := make([]FaceBox, 0, len(raw))

	for _, r := range raw {
		if r.Score < f.Params.MinScore {
			continue
		}

		x1, y1 := tf.ToSource(r.X1, r.Y1)
		x2, y2 := tf.ToSource(r.X2, r.Y2)

		faces = append(faces, FaceBox{
			Box:   Box{X1: x1, Y1: y1, X2: x2, Y2: y2}.Clamp(imgW, imgH),
			Score: r.Score,
		})
	}

	return faces, nil
}

// decodePaired decodes a boxes and scores tensor pair into faces in network
// input pixels, applying the score threshold and NMS
func (f *FaceDetector) decodePaired(outputs []visionedge.Output, cls Classification,
	priors []Prior, inW, inH int) ([]FaceBox, error) {

	col := f.Params.ScoreColumn

	if col < 0 || col >= cls.ScoreCols {
		return nil, fmt.Errorf("%w: score column %d outside of scores tensor with %d columns",
			visionedge.ErrUnsupportedOutputFormat, col, cls.ScoreCols)
	}

	boxT := outputs[cls.Boxes]
	scoreT := outputs[cls.Scores]

	if cls.Kind == PriorEncoded && len(priors) != cls.Rows {
		return nil, fmt.Errorf("%w: %d priors for %d box rows",
			visionedge.ErrDecodeFailure, len(priors), cls.Rows)
	}

	boxes := make([]Box, 0)
	scores := make([]float32, 0)

	for i := 0; i < cls.Rows; i++ {
		score := scoreT.Row(i, cls.ScoreCols)[col]

		if !(score >= f.Params.MinScore) {
			continue
		}

		row := boxT.Row(i, cls.BoxCols)
		var b Box

		if cls.Kind == PriorEncoded {
			b = decodePrior(row, priors[i], f.Params.Priors.Variances)
		} else {
			b = Box{X1: row[0], Y1: row[1], X2: row[2], Y2: row[3]}
		}

		boxes = append(boxes, b)
		scores = append(scores, score)
	}

	if len(boxes) == 0 {
		return []FaceBox{}, nil
	}

	scaleNormalized(boxes, inW, inH)
	boxes = chooseBoxFormat(boxes, inW, inH)

	faces := make([]FaceBox, len(boxes))

	for i := range boxes {
		faces[i] = FaceBox{Box: boxes[i], Score: scores[i]}
	}

	return NMS(faces, f.Params.NMSThreshold), nil
}

// decodeDirect decodes a single (N,4), (N,5) or (N,>=6) tensor of corner
// form boxes in network input pixels.  Rows with a score column and a score
// <= 0 are skipped, (N,4) rows have an implicit score of 1
func (f *FaceDetector) decodeDirect(out visionedge.Output, cls Classification) ([]FaceBox, error) {

	faces := make([]FaceBox, 0)

	for i := 0; i < cls.Rows; i++ {
		row := out.Row(i, cls.BoxCols)
		score := float32(1)

		if cls.BoxCols >= 5 {
			score = row[4]

			if !(score > 0) {
				continue
			}
		}

		faces = append(faces, FaceBox{
			Box:   Box{X1: row[0], Y1: row[1], X2: row[2], Y2: row[3]},
			Score: score,
		})
	}

	return faces, nil
}

// scaleNormalized multiplies the boxes by the input size when every value
// lies within [-0.5, 1.5] and so appears to be normalized.  This is a
// heuristic, a model emitting tiny pixel boxes would be scaled wrongly
func scaleNormalized(boxes []Box, inW, inH int) {

	data := make([]float64, 0, len(boxes)*4)

	for _, b := range boxes {
		data = append(data, float64(b.X1), float64(b.Y1), float64(b.X2), float64(b.Y2))
	}

	m := mat.NewDense(len(boxes), 4, data)

	if mat.Max(m) > 1.5 || mat.Min(m) < -0.5 {
		return
	}

	w, h := float64(inW), float64(inH)
	scale := mat.NewDiagDense(4, []float64{w, h, w, h})

	var scaled mat.Dense
	scaled.Mul(m, scale)

	for i := range boxes {
		boxes[i] = Box{
			X1: float32(scaled.At(i, 0)),
			Y1: float32(scaled.At(i, 1)),
			X2: float32(scaled.At(i, 2)),
			Y2: float32(scaled.At(i, 3)),
		}
	}
}

// chooseBoxFormat interprets the raw values as both corner and center form
// and returns whichever interpretation has more valid boxes.  Ties keep
// corner form
func chooseBoxFormat(boxes []Box, inW, inH int) []Box {

	center := make([]Box, len(boxes))

	for i, b := range boxes {
		center[i] = CenterToCorner(b.X1, b.Y1, b.X2, b.Y2)
	}

	if countValid(center, inW, inH) > countValid(boxes, inW, inH) {
		return center
	}

	return boxes
}
