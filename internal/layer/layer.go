// Package layer provides neural network layer implementations.
package layer

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// Kind tags a layer so containers can walk an architecture without type switches.
type Kind int

const (
	KindConv Kind = iota
	KindConvTranspose
	KindReflectionPad
	KindDense
	KindFlatten
	KindActivation
	KindMaxPool
)

func (k Kind) String() string {
	switch k {
	case KindConv:
		return "Conv2D"
	case KindConvTranspose:
		return "ConvTranspose2D"
	case KindReflectionPad:
		return "ReflectionPad2D"
	case KindDense:
		return "Dense"
	case KindFlatten:
		return "Flatten"
	case KindActivation:
		return "Activation"
	case KindMaxPool:
		return "MaxPool2D"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Layer is a neural network layer.
type Layer interface {
	Kind() Kind
	Forward(x *tensor.Tensor) *tensor.Tensor
	// Params returns the layer's trainable tensors, weights first.
	Params() []*tensor.Tensor
	// OutSize returns the number of output channels or features, or 0 when
	// the layer preserves its input's channel count.
	OutSize() int
}

// NewRNG returns a deterministic random source for weight initialization.
func NewRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// uniform fills a new slice with values drawn from U(-bound, bound).
func uniform(rng *rand.Rand, n int, bound float64) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = rng.Float64()*2*bound - bound
	}
	return data
}

// Dense is a fully connected layer: y = x·Wᵀ + b.
type Dense struct {
	// Weights stored row-major as [out, in].
	weights *tensor.Tensor
	biases  *tensor.Tensor
	inSize  int
	outSize int
}

// NewDense creates a dense layer with weights and biases drawn from
// U(-1/sqrt(in), 1/sqrt(in)).
func NewDense(in, out int, rng *rand.Rand) *Dense {
	bound := 1 / math.Sqrt(float64(in))
	return &Dense{
		weights: tensor.Param(uniform(rng, out*in, bound), out, in),
		biases:  tensor.Param(uniform(rng, out, bound), out),
		inSize:  in,
		outSize: out,
	}
}

func (d *Dense) Kind() Kind { return KindDense }

// Forward expects x of shape [B, in].
func (d *Dense) Forward(x *tensor.Tensor) *tensor.Tensor {
	return tensor.Linear(x, d.weights, d.biases)
}

func (d *Dense) Params() []*tensor.Tensor {
	return []*tensor.Tensor{d.weights, d.biases}
}

// Weights returns the weight tensor directly.
func (d *Dense) Weights() *tensor.Tensor {
	return d.weights
}

// Biases returns the bias tensor directly.
func (d *Dense) Biases() *tensor.Tensor {
	return d.biases
}

// InSize returns the input size of the layer.
func (d *Dense) InSize() int {
	return d.inSize
}

// OutSize returns the output size of the layer.
func (d *Dense) OutSize() int {
	return d.outSize
}

// Freeze marks every parameter of layers as not requiring gradients.
func Freeze(layers ...Layer) {
	for _, l := range layers {
		for _, p := range l.Params() {
			p.SetRequiresGrad(false)
		}
	}
}

// ZeroGrad clears the accumulated gradients of every parameter of layers.
func ZeroGrad(layers ...Layer) {
	for _, l := range layers {
		for _, p := range l.Params() {
			p.ZeroGrad()
		}
	}
}

// Params collects the parameters of layers in order.
func Params(layers ...Layer) []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, l := range layers {
		params = append(params, l.Params()...)
	}
	return params
}
