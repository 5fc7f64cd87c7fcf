// Package opt provides optimization algorithms.
package opt

import (
	"math"

	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// Optimizer updates parameters in place from their accumulated gradients.
type Optimizer interface {
	// Step applies one update to every parameter that has a gradient.
	Step(params []*tensor.Tensor)
	LearningRate() float64
	SetLearningRate(lr float64)
}

// SGD (Stochastic Gradient Descent) optimizer.
type SGD struct {
	LR float64
}

// Step updates params in-place: params = params - lr * gradients
func (s *SGD) Step(params []*tensor.Tensor) {
	for _, p := range params {
		for i, g := range p.Grad {
			p.Data[i] -= s.LR * g
		}
	}
}

func (s *SGD) LearningRate() float64      { return s.LR }
func (s *SGD) SetLearningRate(lr float64) { s.LR = lr }

// Adam optimizer with bias-corrected first and second moment estimates.
// Moment buffers are owned by the optimizer and keyed by parameter.
type Adam struct {
	LR      float64
	Beta1   float64 // Exponential decay rate for first moment
	Beta2   float64 // Exponential decay rate for second moment
	Epsilon float64 // Small constant for numerical stability

	step    int
	moments map[*tensor.Tensor]*moments
}

type moments struct {
	m []float64
	v []float64
}

// NewAdam creates a new Adam optimizer with default values.
func NewAdam(learningRate float64) *Adam {
	return &Adam{
		LR:      learningRate,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-8,
		moments: make(map[*tensor.Tensor]*moments),
	}
}

// Step applies one Adam update to every parameter with a gradient.
func (a *Adam) Step(params []*tensor.Tensor) {
	a.step++
	bc1 := 1 - math.Pow(a.Beta1, float64(a.step))
	bc2 := 1 - math.Pow(a.Beta2, float64(a.step))
	stepSize := a.LR / bc1

	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		st, ok := a.moments[p]
		if !ok {
			st = &moments{m: make([]float64, p.Len()), v: make([]float64, p.Len())}
			a.moments[p] = st
		}
		for i, g := range p.Grad {
			st.m[i] = a.Beta1*st.m[i] + (1-a.Beta1)*g
			st.v[i] = a.Beta2*st.v[i] + (1-a.Beta2)*g*g
			p.Data[i] -= stepSize * st.m[i] / (math.Sqrt(st.v[i]/bc2) + a.Epsilon)
		}
	}
}

func (a *Adam) LearningRate() float64      { return a.LR }
func (a *Adam) SetLearningRate(lr float64) { a.LR = lr }

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int {
	return a.step
}
