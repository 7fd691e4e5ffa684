package visionedge

import (
	"fmt"
	"io"
)

// Query writes the loaded model's input and output tensor information and
// the enabled execution providers in text/human readable format
func (r *Runtime) Query(w io.Writer) error {

	if _, err := fmt.Fprintf(w, "Model: %s\nProviders: %v\n", r.modelFile, r.providers); err != nil {
		return fmt.Errorf("error writing query: %w", err)
	}

	inputs := r.InputAttrs()
	outputs := r.OutputAttrs()

	fmt.Fprintf(w, "Model Input Number: %d, Output Number: %d\n", len(inputs), len(outputs))

	fmt.Fprintf(w, "Input tensors:\n")

	for i, info := range inputs {
		fmt.Fprintf(w, "  %s\n", info.String(i))
	}

	fmt.Fprintf(w, "Output tensors:\n")

	for i, info := range outputs {
		fmt.Fprintf(w, "  %s\n", info.String(i))
	}

	return nil
}

// String returns a human readable description of the tensor at index
func (t TensorInfo) String(index int) string {
	return fmt.Sprintf("index=%d, name=%s, shape=%v", index, t.Name, t.Shape)
}
