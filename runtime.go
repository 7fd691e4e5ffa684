package visionedge

import (
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNX Runtime execution provider names as accepted in VISION_ORT_PROVIDERS
const (
	ProviderCPU      = "CPUExecutionProvider"
	ProviderOpenVINO = "OpenVINOExecutionProvider"
)

var (
	envOnce sync.Once
	envErr  error
)

// InitializeEnvironment loads the ONNX Runtime shared library and initializes
// the global environment.  It must be called once before any Runtime is
// created, subsequent calls return the result of the first call.  An empty
// libPath uses the library search path of the platform
func InitializeEnvironment(libPath string) error {

	envOnce.Do(func() {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}

		envErr = ort.InitializeEnvironment()
	})

	return envErr
}

// DestroyEnvironment releases the ONNX Runtime environment
func DestroyEnvironment() error {
	return ort.DestroyEnvironment()
}

// RuntimeOptions defines the session options used when creating a Runtime
type RuntimeOptions struct {
	// Providers is the ordered list of execution providers to try.  Unknown
	// providers are skipped and CPU is always available as the fallback
	Providers []string
	// OpenVINODeviceType is the OpenVINO device_type, eg: CPU, GPU, NPU
	// or AUTO:GPU,CPU
	OpenVINODeviceType string
	// OpenVINOCacheDir is an optional model cache directory for OpenVINO
	OpenVINOCacheDir string
	// OpenVINOLoadConfig is an optional JSON config file for OpenVINO
	OpenVINOLoadConfig string
	// IntraOpThreads sets the number of threads used within an operator,
	// zero leaves the ONNX Runtime default
	IntraOpThreads int
}

// DefaultRuntimeOptions returns RuntimeOptions using the CPU provider only
func DefaultRuntimeOptions() RuntimeOptions {
	return RuntimeOptions{
		Providers:          []string{ProviderCPU},
		OpenVINODeviceType: "CPU",
	}
}

// TensorInfo describes a model input or output tensor
type TensorInfo struct {
	Name string
	// Shape of the tensor, dynamic dimensions are -1
	Shape []int64
}

// Runtime defines the ONNX Runtime session instance for a single model
type Runtime struct {
	session   *ort.DynamicAdvancedSession
	modelFile string
	// inputs caches the model input tensor information
	inputs []TensorInfo
	// outputs caches the model output tensor information
	outputs []TensorInfo
	// providers are the execution providers that were enabled
	providers []string
	closeOnce sync.Once
}

// NewRuntime returns an ONNX Runtime instance for the given model file.
// InitializeEnvironment must have been called beforehand
func NewRuntime(modelFile string, opts RuntimeOptions) (*Runtime, error) {

	inputInfo, outputInfo, err := ort.GetInputOutputInfo(modelFile)

	if err != nil {
		return nil, fmt.Errorf("error reading model tensor info: %w", err)
	}

	if len(inputInfo) == 0 {
		return nil, fmt.Errorf("%w: model %s has no inputs", ErrInvalidInput, modelFile)
	}

	r := &Runtime{
		modelFile: modelFile,
	}

	inputNames := make([]string, 0, len(inputInfo))

	for _, info := range inputInfo {
		r.inputs = append(r.inputs, TensorInfo{Name: info.Name, Shape: info.Dimensions})
		inputNames = append(inputNames, info.Name)
	}

	outputNames := make([]string, 0, len(outputInfo))

	for _, info := range outputInfo {
		r.outputs = append(r.outputs, TensorInfo{Name: info.Name, Shape: info.Dimensions})
		outputNames = append(outputNames, info.Name)
	}

	options, err := ort.NewSessionOptions()

	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}

	defer options.Destroy()

	if opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("error setting intra op threads: %w", err)
		}
	}

	r.providers = appendProviders(options, opts)

	// only the first input is fed, remaining inputs are expected to have
	// defaults baked into the graph
	r.session, err = ort.NewDynamicAdvancedSession(modelFile, inputNames[:1],
		outputNames, options)

	if err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return r, nil
}

// appendProviders enables the requested execution providers on the session
// options and returns the names of those enabled
func appendProviders(options *ort.SessionOptions, opts RuntimeOptions) []string {

	enabled := make([]string, 0)

	for _, p := range opts.Providers {
		switch strings.TrimSpace(p) {
		case ProviderOpenVINO:
			ovOpts := map[string]string{
				"device_type": opts.OpenVINODeviceType,
			}

			if opts.OpenVINOCacheDir != "" {
				ovOpts["cache_dir"] = opts.OpenVINOCacheDir
			}

			if opts.OpenVINOLoadConfig != "" {
				ovOpts["load_config"] = opts.OpenVINOLoadConfig
			}

			if err := options.AppendExecutionProviderOpenVINO(ovOpts); err != nil {
				// provider not compiled into the shared library, fall through
				// to the next one
				continue
			}

			enabled = append(enabled, ProviderOpenVINO)
		}
	}

	// CPU is always present in ONNX Runtime
	return append(enabled, ProviderCPU)
}

// ModelFile returns the path of the loaded model
func (r *Runtime) ModelFile() string {
	return r.modelFile
}

// Providers returns the execution providers enabled for the session
func (r *Runtime) Providers() []string {
	return r.providers
}

// InputAttrs returns the model input tensor information
func (r *Runtime) InputAttrs() []TensorInfo {
	return r.inputs
}

// OutputAttrs returns the model output tensor information
func (r *Runtime) OutputAttrs() []TensorInfo {
	return r.outputs
}

// OutputNames returns the model output tensor names in model order
func (r *Runtime) OutputNames() []string {

	names := make([]string, len(r.outputs))

	for i, o := range r.outputs {
		names[i] = o.Name
	}

	return names
}

// InputSize returns the static width and height of an NCHW model input.
// ok is false when the input shape is dynamic or not rank 4
func (r *Runtime) InputSize() (width, height int, ok bool) {

	shape := r.inputs[0].Shape

	if len(shape) != 4 || shape[2] <= 0 || shape[3] <= 0 {
		return 0, 0, false
	}

	return int(shape[3]), int(shape[2]), true
}

// Inference runs the model on a single NCHW float32 input tensor of the
// given width and height and returns the outputs converted to float32
func (r *Runtime) Inference(input []float32, width, height int) (*Outputs, error) {

	if len(input) != 3*width*height {
		return nil, fmt.Errorf("%w: input tensor has %d values, expected %d",
			ErrInvalidInput, len(input), 3*width*height)
	}

	inTensor, err := ort.NewTensor(ort.NewShape(1, 3, int64(height), int64(width)), input)

	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	defer inTensor.Destroy()

	// nil outputs are allocated by onnxruntime as their shapes are not known
	// until the model has run
	values := make([]ort.Value, len(r.outputs))

	if err := r.session.Run([]ort.Value{inTensor}, values); err != nil {
		return nil, fmt.Errorf("runtime inference failed: %w", err)
	}

	defer func() {
		for _, v := range values {
			if v != nil {
				v.Destroy()
			}
		}
	}()

	outputs := &Outputs{
		Output:      make([]Output, len(values)),
		InputWidth:  width,
		InputHeight: height,
	}

	for i, v := range values {

		data, err := valueToFloat32(v)

		if err != nil {
			return nil, fmt.Errorf("output %s: %w", r.outputs[i].Name, err)
		}

		outputs.Output[i] = Output{
			Name:     r.outputs[i].Name,
			Shape:    append([]int64(nil), v.GetShape()...),
			BufFloat: data,
		}
	}

	return outputs, nil
}

// valueToFloat32 copies an onnxruntime output value into a Go owned float32
// slice, converting from the element type of the tensor
func valueToFloat32(v ort.Value) ([]float32, error) {

	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return append([]float32(nil), t.GetData()...), nil

	case *ort.Tensor[float64]:
		return convertSlice(t.GetData()), nil

	case *ort.Tensor[int64]:
		return convertSlice(t.GetData()), nil

	case *ort.Tensor[int32]:
		return convertSlice(t.GetData()), nil

	case *ort.CustomDataTensor:
		return customToFloat32(ort.TensorElementDataType(t.DataType()), t.GetData())

	default:
		return nil, fmt.Errorf("%w: tensor type %T", ErrUnsupportedOutputFormat, v)
	}
}

// customToFloat32 converts the raw bytes of a tensor with no native Go
// element type.  Only float16 is supported
func customToFloat32(dataType ort.TensorElementDataType, data []byte) ([]float32, error) {

	if dataType != ort.TensorElementDataTypeFloat16 {
		return nil, fmt.Errorf("%w: tensor element type %v", ErrUnsupportedOutputFormat, dataType)
	}

	return convertFloat16BytesToFloat32(data), nil
}

// convertSlice converts a numeric slice to float32
func convertSlice[T float64 | int64 | int32](in []T) []float32 {

	out := make([]float32, len(in))

	for i, v := range in {
		out[i] = float32(v)
	}

	return out
}

// Close releases the ONNX Runtime session
func (r *Runtime) Close() error {

	var err error

	r.closeOnce.Do(func() {
		err = r.session.Destroy()
	})

	return err
}
