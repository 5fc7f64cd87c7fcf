package net

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoStyle/internal/layer"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// NormalizationConfig declares the style encoder.
type NormalizationConfig struct {
	// ImageSize is the height and width of style images.
	ImageSize int
	// Channels are the output channels of the three stride-2 convolutions.
	Channels [3]int
	Kernel   int
	Hidden   int
	// InitScale scales the final layer's initial weights and biases so the
	// network starts close to scale=1, shift=0.
	InitScale float64
}

// DefaultNormalizationConfig returns the encoder used for 256×256 style images.
func DefaultNormalizationConfig() NormalizationConfig {
	return NormalizationConfig{
		ImageSize: 256,
		Channels:  [3]int{32, 64, 128},
		Kernel:    9,
		Hidden:    256,
		InitScale: 0.01,
	}
}

// NormalizationNetwork maps a style image [B,3,S,S] to a parameter vector
// [B, F]: F/2 scales followed by F/2 shifts.
type NormalizationNetwork struct {
	*Sequential
	cfg   NormalizationConfig
	width int
}

// NewNormalizationNetwork builds the encoder for a transform network whose
// conditioned layers are described by table.
func NewNormalizationNetwork(cfg NormalizationConfig, table ChannelTable, rng *rand.Rand) (*NormalizationNetwork, error) {
	width := table.Width()
	if width == 0 {
		return nil, errors.New("channel table is empty")
	}
	if cfg.Kernel <= 0 || cfg.Hidden <= 0 {
		return nil, errors.Errorf("invalid normalization config: kernel %d, hidden %d", cfg.Kernel, cfg.Hidden)
	}

	var layers []layer.Layer
	in, size := 3, cfg.ImageSize
	for _, out := range cfg.Channels {
		conv := layer.NewConv2D(in, out, cfg.Kernel, 2, 0, rng)
		size = conv.OutputSize(size)
		if size <= 0 {
			return nil, errors.Errorf("style image size %d too small for the normalization network", cfg.ImageSize)
		}
		layers = append(layers, conv)
		in = out
	}

	final := layer.NewDense(cfg.Hidden, width, rng)
	nearIdentity(final, cfg.InitScale, rng)

	layers = append(layers,
		layer.NewFlatten(),
		layer.NewDense(in*size*size, cfg.Hidden, rng),
		final,
	)

	n := &NormalizationNetwork{
		Sequential: NewSequential(layers...),
		cfg:        cfg,
		width:      width,
	}
	if n.OutputWidth() != width {
		return nil, errors.Wrapf(ErrParamWidth, "normalization network emits %d, table needs %d", n.OutputWidth(), width)
	}
	return n, nil
}

// nearIdentity initializes d so its outputs start near 1 for the first half
// and near 0 for the second half.
func nearIdentity(d *layer.Dense, scale float64, rng *rand.Rand) {
	w := d.Weights().Data
	for i := range w {
		w[i] = rng.NormFloat64() * scale
	}
	b := d.Biases().Data
	half := len(b) / 2
	for i := range b {
		b[i] *= scale
		if i < half {
			b[i]++
		}
	}
}

// OutputWidth returns F, the width of the emitted parameter vector.
func (n *NormalizationNetwork) OutputWidth() int {
	return n.layers[len(n.layers)-1].OutSize()
}

// ImageSize returns the style image height and width the network accepts.
func (n *NormalizationNetwork) ImageSize() int {
	return n.cfg.ImageSize
}

// Forward returns the parameter vector for style [B,3,S,S].
func (n *NormalizationNetwork) Forward(style *tensor.Tensor) *tensor.Tensor {
	return n.Sequential.Forward(style)
}
