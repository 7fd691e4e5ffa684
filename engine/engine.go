// Package engine loads model bundles into ONNX Runtime session pools and
// runs object and face detection on frames.
package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/swdee/go-visionedge"
	"github.com/swdee/go-visionedge/config"
	"github.com/swdee/go-visionedge/preprocess"
	"gocv.io/x/gocv"
)

// ErrNotLoaded is returned when detection is requested from an engine whose
// model could not be loaded
var ErrNotLoaded = errors.New("engine not loaded")

// State reports the configuration and load status of an engine
type State struct {
	ConfiguredModelPath string `json:"configured_model_path"`
	Loaded              bool   `json:"loaded"`
	Detail              string `json:"detail"`
}

// model is a loaded bundle and the session pool serving it
type model struct {
	bundle      *visionedge.Bundle
	pool        *visionedge.Pool
	inW         int
	inH         int
	outputNames []string
	providers   []string
}

// openBundle resolves the bundle at path recording the outcome in state.
// notFound prefixes the detail when the model file does not exist
func openBundle(path, notFound string, state *State) (*visionedge.Bundle, error) {

	state.ConfiguredModelPath = visionedge.ResolveModelFile(path)

	bundle, err := visionedge.LoadBundle(path)

	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			state.Detail = fmt.Sprintf("%s: %s", notFound, state.ConfiguredModelPath)
		} else {
			state.Detail = err.Error()
		}

		return nil, err
	}

	return bundle, nil
}

// loadModel creates the session pool for the bundle and resolves its
// input size
func loadModel(bundle *visionedge.Bundle, cfg config.Config) (*model, error) {

	if err := visionedge.InitializeEnvironment(cfg.ORTLibrary); err != nil {
		return nil, fmt.Errorf("error initializing onnx runtime: %w", err)
	}

	pool, err := visionedge.NewPool(cfg.PoolSize, bundle.ModelPath, cfg.Runtime)

	if err != nil {
		return nil, fmt.Errorf("error creating runtime pool: %w", err)
	}

	m := &model{
		bundle: bundle,
		pool:   pool,
	}

	rt := pool.Get()
	defer pool.Return(rt)

	staticW, staticH, _ := rt.InputSize()
	m.inW, m.inH = bundle.InputSize(staticW, staticH)
	m.outputNames = rt.OutputNames()
	m.providers = rt.Providers()

	return m, nil
}

// infer runs the tensor on a pooled session
func (m *model) infer(tensor []float32) (*visionedge.Outputs, error) {

	rt := m.pool.Get()
	defer m.pool.Return(rt)

	return rt.Inference(tensor, m.inW, m.inH)
}

// close releases the session pool
func (m *model) close() {
	if m != nil {
		m.pool.Close()
	}
}

// prepare resizes img to the inW x inH network input and converts it to a
// tensor, returning the mapping of network coordinates back to img
func prepare(img gocv.Mat, inW, inH int, mode preprocess.ResizeMode,
	norm preprocess.Normalization) ([]float32, preprocess.Transform, error) {

	if img.Empty() {
		return nil, nil, fmt.Errorf("%w: empty image", visionedge.ErrInvalidInput)
	}

	resizer, err := preprocess.NewResizer(img.Cols(), img.Rows(), inW, inH, mode)

	if err != nil {
		return nil, nil, err
	}

	defer resizer.Close()

	resized := gocv.NewMat()
	defer resized.Close()

	resizer.Resize(img, &resized)

	tensor, err := preprocess.ToTensor(resized, norm)

	if err != nil {
		return nil, nil, err
	}

	return tensor, resizer.Transform(), nil
}
