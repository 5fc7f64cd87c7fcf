// Package net provides the trainable networks of the style transfer model.
package net

import (
	"fmt"
	"io"
	"strings"

	"github.com/FlavioCFOliveira/GoStyle/internal/layer"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// Sequential runs its layers one after another.
type Sequential struct {
	layers []layer.Layer
}

// NewSequential creates a new Sequential model.
func NewSequential(layers ...layer.Layer) *Sequential {
	return &Sequential{layers: layers}
}

// Forward performs a forward pass through all layers.
func (s *Sequential) Forward(x *tensor.Tensor) *tensor.Tensor {
	curr := x
	for _, l := range s.layers {
		curr = l.Forward(curr)
	}
	return curr
}

// Layers returns the model's layers slice.
func (s *Sequential) Layers() []layer.Layer {
	return s.layers
}

// Params returns every trainable tensor in layer order.
func (s *Sequential) Params() []*tensor.Tensor {
	return layer.Params(s.layers...)
}

// ZeroGrad clears the gradients of every parameter.
func (s *Sequential) ZeroGrad() {
	layer.ZeroGrad(s.layers...)
}

// NumParams returns the total number of scalar parameters.
func (s *Sequential) NumParams() int {
	total := 0
	for _, p := range s.Params() {
		total += p.Len()
	}
	return total
}

// Summary writes a table of the architecture to w.
func (s *Sequential) Summary(w io.Writer, name string) {
	rule := strings.Repeat("_", 65)
	fmt.Fprintf(w, "Model: %s\n", name)
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-25s %-20s %-10s\n", "Layer (type)", "Out channels", "Param #")
	fmt.Fprintln(w, strings.Repeat("=", 65))

	totalParams := 0
	for i, l := range s.layers {
		params := 0
		for _, p := range l.Params() {
			params += p.Len()
		}
		totalParams += params

		out := "-"
		if l.OutSize() > 0 {
			out = fmt.Sprintf("%d", l.OutSize())
		}
		fmt.Fprintf(w, "%-25s %-20s %-10d\n", fmt.Sprintf("%s_%d", l.Kind(), i), out, params)
	}
	fmt.Fprintln(w, strings.Repeat("=", 65))
	fmt.Fprintf(w, "Total params: %d\n", totalParams)
	fmt.Fprintln(w, rule)
}
