package visionedge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// BundleModelFile is the model file name inside a bundle directory
	BundleModelFile = "model.onnx"
	// BundleLabelsFile holds one class name per line
	BundleLabelsFile = "labels.txt"
	// BundleMetaFile holds optional model metadata
	BundleMetaFile = "meta.json"

	// DefaultInputSize is used when neither meta.json nor the model define
	// a static input size
	DefaultInputSize = 640
)

// Bundle defines a model directory containing the ONNX model, its class
// names and metadata
type Bundle struct {
	// ModelPath is the full path to the ONNX model file
	ModelPath string
	// Labels are the class names indexed by class id, empty if the bundle
	// has no labels file
	Labels []string
	// metaWidth and metaHeight are the input size from meta.json, zero if
	// not specified
	metaWidth  int
	metaHeight int
}

// bundleMeta is the meta.json document
type bundleMeta struct {
	InputSize []int `json:"input_size"`
}

// ResolveModelFile returns the model file of a bundle path, joining
// BundleModelFile when path is a directory
func ResolveModelFile(path string) string {

	if st, err := os.Stat(path); err == nil && st.IsDir() {
		return filepath.Join(path, BundleModelFile)
	}

	return path
}

// LoadBundle loads the bundle at path which may be either the bundle
// directory or the model file within it
func LoadBundle(path string) (*Bundle, error) {

	modelFile := ResolveModelFile(path)

	if _, err := os.Stat(modelFile); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", modelFile, err)
	}

	b := &Bundle{
		ModelPath: modelFile,
		Labels:    make([]string, 0),
	}

	dir := filepath.Dir(modelFile)

	labels, err := LoadLabels(filepath.Join(dir, BundleLabelsFile))

	if err == nil {
		b.Labels = labels
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading bundle labels: %w", err)
	}

	// a malformed meta.json is ignored and the input size is resolved from
	// the model instead
	if data, err := os.ReadFile(filepath.Join(dir, BundleMetaFile)); err == nil {
		var meta bundleMeta

		if json.Unmarshal(data, &meta) == nil && len(meta.InputSize) == 2 &&
			meta.InputSize[0] > 0 && meta.InputSize[1] > 0 {
			b.metaWidth = meta.InputSize[0]
			b.metaHeight = meta.InputSize[1]
		}
	}

	return b, nil
}

// InputSize resolves the model input width and height.  The size given in
// meta.json takes priority, then the static size of the model input tensor
// (pass zero when the model input is dynamic), then DefaultInputSize
func (b *Bundle) InputSize(staticWidth, staticHeight int) (int, int) {

	if b.metaWidth > 0 && b.metaHeight > 0 {
		return b.metaWidth, b.metaHeight
	}

	if staticWidth > 0 && staticHeight > 0 {
		return staticWidth, staticHeight
	}

	return DefaultInputSize, DefaultInputSize
}
