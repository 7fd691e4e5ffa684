package engine

import (
	"fmt"
	"image"

	"github.com/cyclopcam/logs"
	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/anonymize"
	"github.com/swdee/go-visionedge/config"
	"github.com/swdee/go-visionedge/metrics"
	"github.com/swdee/go-visionedge/postprocess"
	"github.com/swdee/go-visionedge/preprocess"
	"gocv.io/x/gocv"
)

// PrivacyEngine detects faces and obscures them
type PrivacyEngine struct {
	log       logs.Log
	metrics   *metrics.Metrics
	state     State
	enabled   bool
	model     *model
	faces     *postprocess.FaceDetector
	letterbox bool
	ulfd      bool
	params    anonymize.Params
}

// faceParams returns the face decoder parameters for the privacy settings.
// Prior encoded models default to a lower minimum score unless one was
// configured explicitly
func faceParams(p config.Privacy, ulfd bool) postprocess.FaceParams {

	fp := postprocess.DefaultFaceParams()

	if ulfd {
		fp = postprocess.ULFDFaceParams()
	}

	if p.MinScoreSet {
		fp.MinScore = p.MinScore
	}

	fp.NMSThreshold = p.NMSThreshold
	fp.ScoreColumn = p.ScoreColumn

	return fp
}

// normalization returns the input scaling of the face model variant
func normalization(ulfd bool) preprocess.Normalization {

	if ulfd {
		return preprocess.NormalizeCentered
	}

	return preprocess.NormalizeUnit
}

// resizeMode returns the resize of the face model input
func resizeMode(letterbox bool) preprocess.ResizeMode {

	if letterbox {
		return preprocess.ModeLetterbox
	}

	return preprocess.ModeStretch
}

// NewPrivacyEngine loads the face detection bundle named in cfg.  An engine
// is always returned, check Loaded or State for the outcome
func NewPrivacyEngine(cfg config.Config, log logs.Log, m *metrics.Metrics) *PrivacyEngine {

	if m == nil {
		m = metrics.New()
	}

	e := &PrivacyEngine{
		log:     log,
		metrics: m,
		enabled: cfg.Privacy.Enabled,
		params:  cfg.Privacy.Anonymize,
	}

	if cfg.Privacy.ModelPath == "" {
		e.state.Detail = "Set VISION_PRIVACY_MODEL_PATH to <bundle>/model.onnx"
		return e
	}

	bundle, err := openBundle(cfg.Privacy.ModelPath, "Privacy model file not found", &e.state)

	if err != nil {
		log.Warnf("Privacy model not loaded: %v", err)
		return e
	}

	e.model, err = loadModel(bundle, cfg)

	if err != nil {
		e.state.Detail = fmt.Sprintf("Failed to load privacy model: %v", err)
		log.Errorf("Privacy model not loaded: %v", err)
		return e
	}

	e.letterbox = cfg.Privacy.Letterbox.Use(e.model.inW, e.model.inH)
	e.ulfd = postprocess.LooksLikeULFD(e.model.outputNames, bundle.ModelPath)
	e.faces = postprocess.NewFaceDetector(faceParams(cfg.Privacy, e.ulfd))

	e.state.Loaded = true
	e.state.Detail = fmt.Sprintf("Loaded privacy model. input_size=%dx%d ulfd=%t providers=%v",
		e.model.inW, e.model.inH, e.ulfd, e.model.providers)

	log.Infof("%s", e.state.Detail)

	return e
}

// State returns the configuration and load status
func (e *PrivacyEngine) State() State {
	return e.state
}

// Loaded reports whether the face model is ready for inference
func (e *PrivacyEngine) Loaded() bool {
	return e.state.Loaded
}

// Enabled reports whether faces are obscured, which requires both the
// privacy setting and a loaded model
func (e *PrivacyEngine) Enabled() bool {
	return e.enabled && e.state.Loaded
}

// Params returns the anonymization parameters
func (e *PrivacyEngine) Params() anonymize.Params {
	return e.params
}

// DetectFaces runs face detection on a BGR frame returning faces in frame
// coordinates
func (e *PrivacyEngine) DetectFaces(img gocv.Mat) ([]postprocess.FaceBox, error) {

	if !e.Loaded() {
		return nil, ErrNotLoaded
	}

	tensor, tf, err := prepare(img, e.model.inW, e.model.inH,
		resizeMode(e.letterbox), normalization(e.ulfd))

	if err != nil {
		return nil, err
	}

	outputs, err := e.model.infer(tensor)

	if err != nil {
		return nil, err
	}

	return e.faces.DetectFaces(outputs.Output, e.model.inW, e.model.inH, tf,
		img.Cols(), img.Rows())
}

// Anonymize obscures the faces found on a BGR frame in place.  applied is
// false when privacy is disabled or face detection failed, in which case
// the frame is unchanged
func (e *PrivacyEngine) Anonymize(img *gocv.Mat) (applied bool, faces int) {

	if !e.Enabled() {
		return false, 0
	}

	found, err := e.DetectFaces(*img)

	if err != nil {
		e.log.Warnf("Face detection failed, frame left unchanged: %v", err)
		return false, 0
	}

	faces = anonymize.Mat(img, found, e.params)
	e.metrics.FacesObscured.Add(uint64(faces))

	return true, faces
}

// AnonymizeImage returns a copy of a still image with its faces obscured
func (e *PrivacyEngine) AnonymizeImage(img image.Image) (image.Image, bool, int) {

	if !e.Enabled() {
		return img, false, 0
	}

	mat, err := gocv.ImageToMatRGB(img)

	if err != nil {
		e.log.Warnf("Face detection failed, image left unchanged: %v",
			fmt.Errorf("%w: %v", visionedge.ErrInvalidInput, err))
		return img, false, 0
	}

	defer mat.Close()

	found, err := e.DetectFaces(mat)

	if err != nil {
		e.log.Warnf("Face detection failed, image left unchanged: %v", err)
		return img, false, 0
	}

	out, faces := anonymize.Image(img, found, e.params)
	e.metrics.FacesObscured.Add(uint64(faces))

	return out, true, faces
}

// Close releases the session pool
func (e *PrivacyEngine) Close() {
	e.model.close()
}
