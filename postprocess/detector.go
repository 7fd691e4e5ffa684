package postprocess

import (
	"fmt"

	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/preprocess"
)

// Detector decodes the output of an object detection model exported with
// NMS baked into the graph, each output row being
// [x1, y1, x2, y2, score, class_id] in network input pixels
type Detector struct {
	labels []string
}

// NewDetector returns a Detector that names classes from labels.  Classes
// outside of labels are named by their id
func NewDetector(labels []string) *Detector {
	return &Detector{
		labels: labels,
	}
}

// Labels returns the class labels used
func (d *Detector) Labels() []string {
	return d.labels
}

// Decode maps the first output tensor of the model to detections in the
// original imgW x imgH image space.  Rows with a score <= 0 are padding and
// skipped.  Boxes are mapped through tf and clamped to the image
func (d *Detector) Decode(outputs []visionedge.Output, tf preprocess.Transform,
	imgW, imgH int) ([]Detection, error) {

	if imgW <= 0 || imgH <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d", visionedge.ErrInvalidInput, imgW, imgH)
	}

	if err := tf.Validate(); err != nil {
		return nil, err
	}

	if len(outputs) == 0 {
		return nil, fmt.Errorf("%w: no output tensors", visionedge.ErrInvalidInput)
	}

	cls, err := Classify(outputs[:1], 0)

	if err != nil {
		return nil, err
	}

	if cls.Kind != NmsBaked {
		return nil, fmt.Errorf("%w: object detector expects a (N,>=6) output, got %v",
			visionedge.ErrUnsupportedOutputFormat, outputs[0].Shape)
	}

	out := outputs[0]
	dets := make([]Detection, 0)

	for i := 0; i < cls.Rows; i++ {
		row := out.Row(i, cls.BoxCols)
		score := row[4]

		// skip padding rows, NaN scores also fail this test
		if !(score > 0) {
			continue
		}

		x1, y1 := tf.ToSource(row[0], row[1])
		x2, y2 := tf.ToSource(row[2], row[3])

		box := Box{X1: x1, Y1: y1, X2: x2, Y2: y2}.Clamp(imgW, imgH)
		classID := int(row[5])

		dets = append(dets, Detection{
			ClassID: classID,
			Label:   visionedge.LabelFor(d.labels, classID),
			Score:   score,
			Box:     box,
		})
	}

	return dets, nil
}
