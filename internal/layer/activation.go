package layer

import (
	"github.com/FlavioCFOliveira/GoStyle/internal/activations"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// Activation applies a pointwise nonlinearity. It always allocates its output,
// so tensors fed into it stay valid for later reuse.
type Activation struct {
	act activations.Activation
}

// NewActivation wraps act as a layer.
func NewActivation(act activations.Activation) *Activation {
	return &Activation{act: act}
}

// NewReLU returns a ReLU activation layer.
func NewReLU() *Activation {
	return NewActivation(activations.ReLU{})
}

func (a *Activation) Kind() Kind { return KindActivation }

func (a *Activation) Forward(x *tensor.Tensor) *tensor.Tensor {
	return tensor.Activate(x, a.act)
}

func (a *Activation) Params() []*tensor.Tensor { return nil }
func (a *Activation) OutSize() int             { return 0 }

// Func returns the wrapped activation function.
func (a *Activation) Func() activations.Activation {
	return a.act
}
