package layer

import "github.com/FlavioCFOliveira/GoStyle/internal/tensor"

// MaxPool2D implements 2D max pooling.
// Downsamples by taking the maximum over sliding windows; gradients are routed
// to the argmax of each window.
type MaxPool2D struct {
	kernelSize int
	stride     int
}

// NewMaxPool2D creates a new 2D max pooling layer.
// stride defaults to kernelSize when zero.
func NewMaxPool2D(kernelSize, stride int) *MaxPool2D {
	if stride == 0 {
		stride = kernelSize
	}
	return &MaxPool2D{kernelSize: kernelSize, stride: stride}
}

func (m *MaxPool2D) Kind() Kind { return KindMaxPool }

func (m *MaxPool2D) Forward(x *tensor.Tensor) *tensor.Tensor {
	return tensor.MaxPool2D(x, m.kernelSize, m.stride)
}

func (m *MaxPool2D) Params() []*tensor.Tensor { return nil }
func (m *MaxPool2D) OutSize() int             { return 0 }

// OutputSize returns the spatial output size for an input of size in.
func (m *MaxPool2D) OutputSize(in int) int {
	return tensor.ConvOutputSize(in, m.kernelSize, m.stride, 0)
}
