package engine

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/config"
	"github.com/swdee/go-visionedge/metrics"
	"github.com/swdee/go-visionedge/postprocess"
	"github.com/swdee/go-visionedge/preprocess"
	"gocv.io/x/gocv"
)

// ObjectEngine detects objects with a model whose graph includes NMS
type ObjectEngine struct {
	log      logs.Log
	metrics  *metrics.Metrics
	state    State
	model    *model
	detector *postprocess.Detector
}

// NewObjectEngine loads the object detection bundle named in cfg.  An
// engine is always returned, check Loaded or State for the outcome
func NewObjectEngine(cfg config.Config, log logs.Log, m *metrics.Metrics) *ObjectEngine {

	if m == nil {
		m = metrics.New()
	}

	e := &ObjectEngine{
		log:     log,
		metrics: m,
	}

	if cfg.ModelPath == "" {
		e.state.Detail = "Set VISION_MODEL_PATH to <bundle>/model.onnx"
		return e
	}

	bundle, err := openBundle(cfg.ModelPath, "Model file not found", &e.state)

	if err != nil {
		log.Warnf("Object model not loaded: %v", err)
		return e
	}

	e.model, err = loadModel(bundle, cfg)

	if err != nil {
		e.state.Detail = fmt.Sprintf("Failed to load model: %v", err)
		log.Errorf("Object model not loaded: %v", err)
		return e
	}

	e.detector = postprocess.NewDetector(bundle.Labels)
	e.state.Loaded = true
	e.state.Detail = fmt.Sprintf("Loaded ONNX model. input_size=%dx%d labels=%d providers=%v",
		e.model.inW, e.model.inH, len(bundle.Labels), e.model.providers)

	log.Infof("%s", e.state.Detail)

	return e
}

// State returns the configuration and load status
func (e *ObjectEngine) State() State {
	return e.state
}

// Loaded reports whether the model is ready for inference
func (e *ObjectEngine) Loaded() bool {
	return e.state.Loaded
}

// Labels returns the class names of the loaded bundle
func (e *ObjectEngine) Labels() []string {

	if e.detector == nil {
		return nil
	}

	return e.detector.Labels()
}

// Detect runs object detection on a BGR frame returning detections in
// frame coordinates
func (e *ObjectEngine) Detect(img gocv.Mat) ([]postprocess.Detection, error) {

	if !e.Loaded() {
		return nil, ErrNotLoaded
	}

	start := time.Now()

	tensor, tf, err := prepare(img, e.model.inW, e.model.inH,
		preprocess.ModeLetterbox, preprocess.NormalizeUnit)

	if err != nil {
		return nil, err
	}

	outputs, err := e.model.infer(tensor)

	if err != nil {
		return nil, err
	}

	dets, err := e.detector.Decode(outputs.Output, tf, img.Cols(), img.Rows())

	if errors.Is(err, visionedge.ErrUnsupportedOutputFormat) {
		return nil, fmt.Errorf("%w, export the model with NMS in the graph, eg: "+
			"yolo export model=yolov8n.pt format=onnx nms=True", err)
	}

	if err != nil {
		return nil, err
	}

	e.metrics.UpdateInferenceLatency(time.Since(start))
	e.metrics.FramesInferred.Add(1)
	e.metrics.Detections.Add(uint64(len(dets)))

	return dets, nil
}

// DetectImage runs object detection on a still image
func (e *ObjectEngine) DetectImage(img image.Image) ([]postprocess.Detection, error) {

	mat, err := gocv.ImageToMatRGB(img)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", visionedge.ErrInvalidInput, err)
	}

	defer mat.Close()

	return e.Detect(mat)
}

// Close releases the session pool
func (e *ObjectEngine) Close() {
	e.model.close()
}
