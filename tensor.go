package visionedge

// Output is a single model output tensor converted to float32
type Output struct {
	// Name is the output tensor name defined in the model, it may be empty
	// when the caller only has positional outputs
	Name string
	// Shape are the tensor dimensions
	Shape []int64
	// BufFloat holds the tensor data in row major order
	BufFloat []float32
}

// NewOutput returns an Output for the given name, shape and data
func NewOutput(name string, shape []int64, data []float32) Output {
	return Output{
		Name:     name,
		Shape:    shape,
		BufFloat: data,
	}
}

// Squeeze returns the Output with a leading batch dimension of size 1
// removed, eg: (1,N,6) becomes (N,6)
func (o Output) Squeeze() Output {

	if len(o.Shape) == 3 && o.Shape[0] == 1 {
		return Output{
			Name:     o.Name,
			Shape:    o.Shape[1:],
			BufFloat: o.BufFloat,
		}
	}

	return o
}

// Matrix returns the number of rows and columns of the tensor after the
// batch dimension has been squeezed.  ok is false if the tensor is not rank
// 2 or its buffer is too small for its shape
func (o Output) Matrix() (rows, cols int, ok bool) {

	s := o.Squeeze()

	if len(s.Shape) != 2 {
		return 0, 0, false
	}

	rows = int(s.Shape[0])
	cols = int(s.Shape[1])

	if rows < 0 || cols <= 0 || rows*cols > len(s.BufFloat) {
		return 0, 0, false
	}

	return rows, cols, true
}

// ShortBuffer reports whether the tensor has a valid rank 2 shape but its
// buffer holds fewer values than the shape declares.  This is a fault of a
// single inference run rather than of the model's output layout
func (o Output) ShortBuffer() bool {

	s := o.Squeeze()

	if len(s.Shape) != 2 || s.Shape[0] < 0 || s.Shape[1] <= 0 {
		return false
	}

	return s.Shape[0]*s.Shape[1] > int64(len(s.BufFloat))
}

// Row returns the i'th row of a rank 2 tensor with cols columns
func (o Output) Row(i, cols int) []float32 {
	return o.BufFloat[i*cols : (i+1)*cols]
}

// Outputs holds the output tensors of a single inference run
type Outputs struct {
	Output []Output
	// InputWidth is the model input tensor width the outputs were produced for
	InputWidth int
	// InputHeight is the model input tensor height
	InputHeight int
}

// Names returns the names of all output tensors in model order
func (o *Outputs) Names() []string {

	names := make([]string, len(o.Output))

	for i, out := range o.Output {
		names[i] = out.Name
	}

	return names
}
