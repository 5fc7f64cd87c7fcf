package layer

import (
	"math"
	"math/rand"

	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// Conv2D implements a 2D convolutional layer with zero padding.
type Conv2D struct {
	inChannels  int
	outChannels int
	kernelSize  int
	stride      int
	padding     int

	// Weights: [outChannels, inChannels, kernelSize, kernelSize]
	weights *tensor.Tensor
	biases  *tensor.Tensor
}

// NewConv2D creates a new 2D convolutional layer.
// inChannels: number of input channels
// outChannels: number of output feature maps
// kernelSize: size of convolutional kernel (square)
// stride: stride for convolution
// padding: zero padding size
func NewConv2D(inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand) *Conv2D {
	fanIn := inChannels * kernelSize * kernelSize
	bound := 1 / math.Sqrt(float64(fanIn))
	return &Conv2D{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  kernelSize,
		stride:      stride,
		padding:     padding,
		weights:     tensor.Param(uniform(rng, outChannels*fanIn, bound), outChannels, inChannels, kernelSize, kernelSize),
		biases:      tensor.Param(uniform(rng, outChannels, bound), outChannels),
	}
}

func (c *Conv2D) Kind() Kind { return KindConv }

// Forward convolves x [B, inChannels, H, W].
func (c *Conv2D) Forward(x *tensor.Tensor) *tensor.Tensor {
	return tensor.Conv2D(x, c.weights, c.biases, c.stride, c.padding)
}

func (c *Conv2D) Params() []*tensor.Tensor {
	return []*tensor.Tensor{c.weights, c.biases}
}

// OutputSize returns the spatial output size for an input of size in.
func (c *Conv2D) OutputSize(in int) int {
	return tensor.ConvOutputSize(in, c.kernelSize, c.stride, c.padding)
}

// InSize returns the number of input channels.
func (c *Conv2D) InSize() int {
	return c.inChannels
}

// OutSize returns the number of output channels.
func (c *Conv2D) OutSize() int {
	return c.outChannels
}

// ConvTranspose2D implements a 2D transposed convolution used for upsampling.
type ConvTranspose2D struct {
	inChannels    int
	outChannels   int
	kernelSize    int
	stride        int
	padding       int
	outputPadding int

	// Weights: [inChannels, outChannels, kernelSize, kernelSize]
	weights *tensor.Tensor
	biases  *tensor.Tensor
}

// NewConvTranspose2D creates a transposed convolution. outputPadding adds rows
// and columns on one side so stride-2 layers exactly double their input.
func NewConvTranspose2D(inChannels, outChannels, kernelSize, stride, padding, outputPadding int, rng *rand.Rand) *ConvTranspose2D {
	bound := 1 / math.Sqrt(float64(outChannels*kernelSize*kernelSize))
	return &ConvTranspose2D{
		inChannels:    inChannels,
		outChannels:   outChannels,
		kernelSize:    kernelSize,
		stride:        stride,
		padding:       padding,
		outputPadding: outputPadding,
		weights: tensor.Param(uniform(rng, inChannels*outChannels*kernelSize*kernelSize, bound),
			inChannels, outChannels, kernelSize, kernelSize),
		biases: tensor.Param(uniform(rng, outChannels, bound), outChannels),
	}
}

func (c *ConvTranspose2D) Kind() Kind { return KindConvTranspose }

func (c *ConvTranspose2D) Forward(x *tensor.Tensor) *tensor.Tensor {
	return tensor.ConvTranspose2D(x, c.weights, c.biases, c.stride, c.padding, c.outputPadding)
}

func (c *ConvTranspose2D) Params() []*tensor.Tensor {
	return []*tensor.Tensor{c.weights, c.biases}
}

// OutputSize returns the spatial output size for an input of size in.
func (c *ConvTranspose2D) OutputSize(in int) int {
	return tensor.ConvTransposeOutputSize(in, c.kernelSize, c.stride, c.padding, c.outputPadding)
}

// InSize returns the number of input channels.
func (c *ConvTranspose2D) InSize() int {
	return c.inChannels
}

// OutSize returns the number of output channels.
func (c *ConvTranspose2D) OutSize() int {
	return c.outChannels
}
