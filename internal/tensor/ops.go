package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/FlavioCFOliveira/GoStyle/internal/activations"
)

// Add returns a + b for tensors of equal size.
func Add(a, b *Tensor) *Tensor {
	if a.Len() != b.Len() {
		panic(fmt.Sprintf("tensor: Add size mismatch %v vs %v", a.Shape, b.Shape))
	}
	out := result(a.Shape, a, b)
	floats.AddTo(out.Data, a.Data, b.Data)
	out.backward = func() {
		if a.requiresGrad {
			floats.Add(a.ensureGrad(), out.Grad)
		}
		if b.requiresGrad {
			floats.Add(b.ensureGrad(), out.Grad)
		}
	}
	return out
}

// Scale returns s * a.
func Scale(a *Tensor, s float64) *Tensor {
	out := result(a.Shape, a)
	floats.ScaleTo(out.Data, s, a.Data)
	out.backward = func() {
		if a.requiresGrad {
			floats.AddScaled(a.ensureGrad(), s, out.Grad)
		}
	}
	return out
}

// Activate applies act element-wise, out of place.
func Activate(a *Tensor, act activations.Activation) *Tensor {
	out := result(a.Shape, a)
	for i, v := range a.Data {
		out.Data[i] = act.Activate(v)
	}
	out.backward = func() {
		if !a.requiresGrad {
			return
		}
		g := a.ensureGrad()
		for i, v := range a.Data {
			g[i] += out.Grad[i] * act.Derivative(v)
		}
	}
	return out
}

// Reshape returns a copy of a with a new shape of the same size.
func Reshape(a *Tensor, shape ...int) *Tensor {
	if numel(shape) != a.Len() {
		panic(fmt.Sprintf("tensor: cannot reshape %v to %v", a.Shape, shape))
	}
	out := result(shape, a)
	copy(out.Data, a.Data)
	out.backward = func() {
		if a.requiresGrad {
			floats.Add(a.ensureGrad(), out.Grad)
		}
	}
	return out
}

// Flatten collapses every dimension after the first.
func Flatten(a *Tensor) *Tensor {
	return Reshape(a, a.Shape[0], a.Len()/a.Shape[0])
}

// SliceCols returns columns [start, end) of a rank-2 tensor.
func SliceCols(a *Tensor, start, end int) *Tensor {
	if len(a.Shape) != 2 || start < 0 || end > a.Shape[1] || start > end {
		panic(fmt.Sprintf("tensor: invalid column slice [%d:%d] of %v", start, end, a.Shape))
	}
	rows, cols, w := a.Shape[0], a.Shape[1], end-start
	out := result([]int{rows, w}, a)
	for r := 0; r < rows; r++ {
		copy(out.Data[r*w:(r+1)*w], a.Data[r*cols+start:r*cols+end])
	}
	out.backward = func() {
		if !a.requiresGrad {
			return
		}
		g := a.ensureGrad()
		for r := 0; r < rows; r++ {
			floats.Add(g[r*cols+start:r*cols+end], out.Grad[r*w:(r+1)*w])
		}
	}
	return out
}

// Expand repeats a tensor with leading dimension 1 to batch n.
func Expand(a *Tensor, n int) *Tensor {
	if a.Shape[0] == n {
		return a
	}
	if a.Shape[0] != 1 {
		panic(fmt.Sprintf("tensor: cannot expand %v to batch %d", a.Shape, n))
	}
	shape := append([]int{n}, a.Shape[1:]...)
	out := result(shape, a)
	per := a.Len()
	for b := 0; b < n; b++ {
		copy(out.Data[b*per:(b+1)*per], a.Data)
	}
	out.backward = func() {
		if !a.requiresGrad {
			return
		}
		g := a.ensureGrad()
		for b := 0; b < n; b++ {
			floats.Add(g, out.Grad[b*per:(b+1)*per])
		}
	}
	return out
}

// MSE returns the scalar mean of (pred - target)^2.
func MSE(pred, target *Tensor) *Tensor {
	if pred.Len() != target.Len() {
		panic(fmt.Sprintf("tensor: MSE size mismatch %v vs %v", pred.Shape, target.Shape))
	}
	out := result([]int{1}, pred, target)
	n := float64(pred.Len())
	var sum float64
	for i := range pred.Data {
		d := pred.Data[i] - target.Data[i]
		sum += d * d
	}
	out.Data[0] = sum / n
	out.backward = func() {
		factor := 2 * out.Grad[0] / n
		if pred.requiresGrad {
			g := pred.ensureGrad()
			for i := range g {
				g[i] += factor * (pred.Data[i] - target.Data[i])
			}
		}
		if target.requiresGrad {
			g := target.ensureGrad()
			for i := range g {
				g[i] -= factor * (pred.Data[i] - target.Data[i])
			}
		}
	}
	return out
}

// Sum reduces a to a one-element tensor.
func Sum(a *Tensor) *Tensor {
	out := result([]int{1}, a)
	out.Data[0] = floats.Sum(a.Data)
	out.backward = func() {
		if !a.requiresGrad {
			return
		}
		g := a.ensureGrad()
		for i := range g {
			g[i] += out.Grad[0]
		}
	}
	return out
}
