package net

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoStyle/internal/activations"
	"github.com/FlavioCFOliveira/GoStyle/internal/layer"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// LayerSpec declares one layer of a convolutional stack.
type LayerSpec struct {
	Kind          layer.Kind
	In            int
	Out           int
	Kernel        int
	Stride        int
	Padding       int
	OutputPadding int
}

// Conv declares a convolution.
func Conv(in, out, kernel, stride, padding int) LayerSpec {
	return LayerSpec{Kind: layer.KindConv, In: in, Out: out, Kernel: kernel, Stride: stride, Padding: padding}
}

// ConvTranspose declares a transposed convolution.
func ConvTranspose(in, out, kernel, stride, padding, outputPadding int) LayerSpec {
	return LayerSpec{Kind: layer.KindConvTranspose, In: in, Out: out, Kernel: kernel,
		Stride: stride, Padding: padding, OutputPadding: outputPadding}
}

// ReflectionPad declares a reflection padding layer.
func ReflectionPad(padding int) LayerSpec {
	return LayerSpec{Kind: layer.KindReflectionPad, Padding: padding}
}

// ReLU declares a rectified-linear activation.
func ReLU() LayerSpec {
	return LayerSpec{Kind: layer.KindActivation}
}

// MaxPool declares a max pooling layer.
func MaxPool(kernel, stride int) LayerSpec {
	return LayerSpec{Kind: layer.KindMaxPool, Kernel: kernel, Stride: stride}
}

// Build instantiates the declared layer.
func (s LayerSpec) Build(rng *rand.Rand) (layer.Layer, error) {
	switch s.Kind {
	case layer.KindConv:
		return layer.NewConv2D(s.In, s.Out, s.Kernel, s.Stride, s.Padding, rng), nil
	case layer.KindConvTranspose:
		return layer.NewConvTranspose2D(s.In, s.Out, s.Kernel, s.Stride, s.Padding, s.OutputPadding, rng), nil
	case layer.KindReflectionPad:
		return layer.NewReflectionPad2D(s.Padding), nil
	case layer.KindActivation:
		return layer.NewReLU(), nil
	case layer.KindMaxPool:
		return layer.NewMaxPool2D(s.Kernel, s.Stride), nil
	default:
		return nil, errors.Errorf("unsupported layer kind %s", s.Kind)
	}
}

// DefaultTransformSpec returns the encoder/decoder used for 256×256 training:
// reflection padding, three downsampling convolutions, ten 3×3 convolutions,
// two upsampling transposed convolutions and a 9×9 output convolution.
func DefaultTransformSpec() []LayerSpec {
	specs := []LayerSpec{
		ReflectionPad(40),
		Conv(3, 32, 9, 1, 4),
		Conv(32, 64, 3, 2, 1),
		Conv(64, 128, 3, 2, 1),
	}
	for i := 0; i < 10; i++ {
		specs = append(specs, Conv(128, 128, 3, 1, 0))
	}
	return append(specs,
		ConvTranspose(128, 64, 3, 2, 1, 1),
		ConvTranspose(64, 32, 3, 2, 1, 1),
		Conv(32, 3, 9, 1, 4),
	)
}

// TransformNetwork maps a content image to a pastiche. Every layer except the
// first and the last is followed by a LearnedInstanceNorm and a ReLU whose
// affine parameters are supplied per call.
type TransformNetwork struct {
	layers []layer.Layer
	norms  []*layer.LearnedInstanceNorm
	table  ChannelTable
	relu   activations.Activation
	output activations.Activation
}

// NewTransformNetwork builds the network from its declaration. The channel
// table is derived from the declared layers, so it cannot drift from them.
func NewTransformNetwork(specs []LayerSpec, rng *rand.Rand) (*TransformNetwork, error) {
	if len(specs) < 3 {
		return nil, errors.Errorf("transform network needs at least 3 layers, got %d", len(specs))
	}

	t := &TransformNetwork{relu: activations.ReLU{}}
	channels := 3
	for i, s := range specs {
		l, err := s.Build(rng)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i)
		}
		if l.OutSize() > 0 {
			if s.In != channels {
				return nil, errors.Errorf("layer %d (%s) expects %d input channels, previous layer produces %d",
					i, s.Kind, s.In, channels)
			}
			channels = s.Out
		}
		conditioned := i > 0 && i < len(specs)-1
		if conditioned {
			if l.OutSize() == 0 {
				return nil, errors.Errorf("layer %d (%s) cannot be conditionally normalized", i, s.Kind)
			}
			t.norms = append(t.norms, layer.NewLearnedInstanceNorm(l.OutSize()))
			t.table = append(t.table, l.OutSize())
		}
		t.layers = append(t.layers, l)
	}
	if channels != 3 {
		return nil, errors.Errorf("transform network must end with 3 channels, got %d", channels)
	}
	return t, nil
}

// SetOutputActivation applies act to the final layer's output. The default is none.
func (t *TransformNetwork) SetOutputActivation(act activations.Activation) {
	t.output = act
}

// OutputActivation returns the activation applied to the final layer, or nil.
func (t *TransformNetwork) OutputActivation() activations.Activation {
	return t.output
}

// Table returns the channel table of the conditioned layers.
func (t *TransformNetwork) Table() ChannelTable {
	return t.table
}

// Layers returns the network's layers.
func (t *TransformNetwork) Layers() []layer.Layer {
	return t.layers
}

// Params returns every trainable tensor in layer order.
func (t *TransformNetwork) Params() []*tensor.Tensor {
	return layer.Params(t.layers...)
}

// ZeroGrad clears the gradients of every parameter.
func (t *TransformNetwork) ZeroGrad() {
	layer.ZeroGrad(t.layers...)
}

// OutputSize returns the spatial size the network produces for an input of
// the given height or width, or 0 when the input is too small.
func (t *TransformNetwork) OutputSize(size int) int {
	for _, l := range t.layers {
		switch l := l.(type) {
		case *layer.ReflectionPad2D:
			if l.Padding() >= size {
				return 0
			}
			size += 2 * l.Padding()
		case *layer.Conv2D:
			size = l.OutputSize(size)
		case *layer.ConvTranspose2D:
			size = l.OutputSize(size)
		case *layer.MaxPool2D:
			size = l.OutputSize(size)
		}
		if size <= 0 {
			return 0
		}
	}
	return size
}

// Forward stylizes x [B,3,H,W] using one AffineParams per conditioned layer and
// clamps the result in place to [0, 255].
func (t *TransformNetwork) Forward(x *tensor.Tensor, affine []AffineParams) *tensor.Tensor {
	if len(affine) != len(t.table) {
		panic(fmt.Sprintf("TransformNetwork: got %d affine parameter sets, want %d", len(affine), len(t.table)))
	}
	curr := t.layers[0].Forward(x)
	last := len(t.layers) - 1
	for i := 1; i < last; i++ {
		p := affine[i-1]
		curr = t.layers[i].Forward(curr)
		curr = t.norms[i-1].Forward(curr, p.Scale, p.Shift)
		curr = tensor.Activate(curr, t.relu)
	}
	curr = t.layers[last].Forward(curr)
	if t.output != nil {
		curr = tensor.Activate(curr, t.output)
	}
	return curr.ClampInPlace(0, 255)
}
