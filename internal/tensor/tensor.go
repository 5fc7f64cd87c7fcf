// Package tensor provides dense NCHW tensors with reverse-mode automatic differentiation.
//
// Every operation is out of place: it allocates a new result and never writes to
// its inputs. The only exception is ClampInPlace, which mirrors an explicit data
// clamp and leaves the gradient path untouched.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Tensor is a dense float64 array with an optional gradient and a link to the
// operation that produced it.
type Tensor struct {
	Shape []int
	Data  []float64
	Grad  []float64

	requiresGrad bool
	device       DeviceType

	parents  []*Tensor
	backward func()
}

// New creates a zero tensor of the given shape on the CPU.
func New(shape ...int) *Tensor {
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  make([]float64, numel(shape)),
	}
}

// FromData wraps data as a tensor of the given shape. The slice is not copied.
func FromData(data []float64, shape ...int) *Tensor {
	if len(data) != numel(shape) {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v", len(data), shape))
	}
	return &Tensor{
		Shape: append([]int(nil), shape...),
		Data:  data,
	}
}

// Full creates a tensor filled with v.
func Full(v float64, shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

// Param creates a trainable leaf tensor over data.
func Param(data []float64, shape ...int) *Tensor {
	t := FromData(data, shape...)
	t.requiresGrad = true
	return t
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.Data)
}

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int {
	return t.Shape[i]
}

// RequiresGrad reports whether gradients are tracked for t.
func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

// SetRequiresGrad marks a leaf tensor as trainable or frozen.
func (t *Tensor) SetRequiresGrad(v bool) {
	t.requiresGrad = v
}

// Device returns the device t resides on.
func (t *Tensor) Device() DeviceType {
	return t.device
}

// To returns t tagged for device d. Data is shared.
func (t *Tensor) To(d DeviceType) *Tensor {
	if t.device == d {
		return t
	}
	out := *t
	out.device = d
	return &out
}

// Item returns the single value of a one-element tensor.
func (t *Tensor) Item() float64 {
	if len(t.Data) != 1 {
		panic(fmt.Sprintf("tensor: Item on tensor of shape %v", t.Shape))
	}
	return t.Data[0]
}

// SameShape reports whether t and o have identical shapes.
func (t *Tensor) SameShape(o *Tensor) bool {
	if len(t.Shape) != len(o.Shape) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	return true
}

// ZeroGrad clears the accumulated gradient.
func (t *Tensor) ZeroGrad() {
	for i := range t.Grad {
		t.Grad[i] = 0
	}
}

// Detach returns a tensor sharing t's data with no gradient history.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{
		Shape:  t.Shape,
		Data:   t.Data,
		device: t.device,
	}
}

// Clone copies t's data into a new tensor whose gradient flows back to t.
func (t *Tensor) Clone() *Tensor {
	out := result(t.Shape, t)
	copy(out.Data, t.Data)
	out.backward = func() {
		if t.requiresGrad {
			floats.Add(t.ensureGrad(), out.Grad)
		}
	}
	return out
}

// ClampInPlace limits every element to [lo, hi]. The gradient path is left
// untouched, so upstream ops see the clamp as identity.
func (t *Tensor) ClampInPlace(lo, hi float64) *Tensor {
	for i, v := range t.Data {
		if v < lo {
			t.Data[i] = lo
		} else if v > hi {
			t.Data[i] = hi
		}
	}
	return t
}

func (t *Tensor) ensureGrad() []float64 {
	if t.Grad == nil {
		t.Grad = make([]float64, len(t.Data))
	}
	return t.Grad
}

// result allocates the output of an operation over inputs.
func result(shape []int, inputs ...*Tensor) *Tensor {
	out := New(shape...)
	out.device = inputs[0].device
	for _, in := range inputs {
		if in.device != out.device {
			panic(fmt.Sprintf("tensor: device mismatch: %s vs %s", in.device, out.device))
		}
		if in.requiresGrad {
			out.requiresGrad = true
		}
	}
	if out.requiresGrad {
		out.parents = inputs
	}
	return out
}

// Backward runs reverse-mode differentiation from the scalar t, accumulating
// into the Grad of every tensor that requires it.
func (t *Tensor) Backward() {
	if len(t.Data) != 1 {
		panic(fmt.Sprintf("tensor: Backward on non-scalar of shape %v", t.Shape))
	}
	if !t.requiresGrad {
		return
	}

	var order []*Tensor
	visited := make(map[*Tensor]bool)
	var visit func(n *Tensor)
	visit = func(n *Tensor) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, p := range n.parents {
			if p.requiresGrad {
				visit(p)
			}
		}
		order = append(order, n)
	}
	visit(t)

	// Intermediate gradients are rebuilt for every call; leaves accumulate.
	for _, n := range order {
		if n.backward != nil {
			n.Grad = nil
		}
	}
	t.ensureGrad()[0] = 1

	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		if n.backward != nil && n.Grad != nil {
			n.backward()
		}
	}
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v(%s)", t.Shape, t.device)
}
