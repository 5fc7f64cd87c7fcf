// Package activations provides activation functions optimized for performance.
package activations

import (
	"fmt"
	"math"
)

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x)
	Derivative(x float64) float64
}

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (r ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (r ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

// Sigmoid activation function.
type Sigmoid struct{}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Activate computes sigmoid(x)
func (s Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (s Sigmoid) Derivative(x float64) float64 {
	sigma := sigmoid(x)
	return sigma * (1 - sigma)
}

// LeakyReLU activation function to prevent dying neurons.
type LeakyReLU struct {
	Alpha float64 // Slope for x <= 0
}

// NewLeakyReLU creates a LeakyReLU with the given alpha value.
func NewLeakyReLU(alpha float64) *LeakyReLU {
	return &LeakyReLU{Alpha: alpha}
}

// Activate computes x if x > 0, else alpha*x
func (l *LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.Alpha * x
}

// Derivative returns 1 if x > 0, else alpha
func (l *LeakyReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return l.Alpha
}

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (t Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (t Tanh) Derivative(x float64) float64 {
	tanhX := math.Tanh(x)
	return 1 - tanhX*tanhX
}

// ScaledTanh maps x to Scale*(tanh(x)+1)/2, squashing into [0, Scale].
type ScaledTanh struct {
	Scale float64
}

func (s ScaledTanh) Activate(x float64) float64 {
	return s.Scale * (math.Tanh(x) + 1) / 2
}

func (s ScaledTanh) Derivative(x float64) float64 {
	tanhX := math.Tanh(x)
	return s.Scale * (1 - tanhX*tanhX) / 2
}

// Linear is the identity activation.
type Linear struct{}

func (l Linear) Activate(x float64) float64   { return x }
func (l Linear) Derivative(x float64) float64 { return 1 }

// Name returns the registry name of act.
func Name(act Activation) string {
	switch a := act.(type) {
	case ReLU:
		return "relu"
	case *LeakyReLU:
		return fmt.Sprintf("leaky_relu:%g", a.Alpha)
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case ScaledTanh:
		return fmt.Sprintf("scaled_tanh:%g", a.Scale)
	default:
		return "linear"
	}
}

// ByName resolves a registry name produced by Name.
func ByName(name string) (Activation, error) {
	var p float64
	switch {
	case name == "relu":
		return ReLU{}, nil
	case name == "sigmoid":
		return Sigmoid{}, nil
	case name == "tanh":
		return Tanh{}, nil
	case name == "linear" || name == "":
		return Linear{}, nil
	case scan(name, "leaky_relu:%g", &p):
		return NewLeakyReLU(p), nil
	case scan(name, "scaled_tanh:%g", &p):
		return ScaledTanh{Scale: p}, nil
	}
	return nil, fmt.Errorf("unknown activation %q", name)
}

func scan(s, format string, p *float64) bool {
	n, err := fmt.Sscanf(s, format, p)
	return err == nil && n == 1
}
