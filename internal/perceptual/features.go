// Package perceptual computes content and style losses with a frozen,
// pretrained feature extractor.
package perceptual

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoStyle/internal/layer"
	"github.com/FlavioCFOliveira/GoStyle/internal/net"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// checkpointName tags feature extractor weight files.
const checkpointName = "feature_extractor"

// VGG19Features declares the convolutional trunk of VGG-19: sixteen 3×3
// convolutions, each followed by a ReLU, with 2×2 max pooling between blocks.
func VGG19Features() []net.LayerSpec {
	blocks := [][]int{
		{64, 64},
		{128, 128},
		{256, 256, 256, 256},
		{512, 512, 512, 512},
		{512, 512, 512, 512},
	}
	var specs []net.LayerSpec
	in := 3
	for _, block := range blocks {
		for _, out := range block {
			specs = append(specs, net.Conv(in, out, 3, 1, 1), net.ReLU())
			in = out
		}
		specs = append(specs, net.MaxPool(2, 2))
	}
	return specs
}

// FeatureExtractor is a frozen, ordered stack of convolution, activation and
// pooling layers. Its weights never receive gradients.
type FeatureExtractor struct {
	specs  []net.LayerSpec
	layers []layer.Layer
}

// NewFeatureExtractor instantiates specs with weights drawn from rng and
// freezes them. Pretrained weights are installed with Load.
func NewFeatureExtractor(specs []net.LayerSpec, rng *rand.Rand) (*FeatureExtractor, error) {
	f := &FeatureExtractor{specs: specs}
	for i, s := range specs {
		switch s.Kind {
		case layer.KindConv, layer.KindActivation, layer.KindMaxPool:
		default:
			return nil, errors.Errorf("feature layer %d: unsupported kind %s", i, s.Kind)
		}
		l, err := s.Build(rng)
		if err != nil {
			return nil, errors.Wrapf(err, "feature layer %d", i)
		}
		f.layers = append(f.layers, l)
	}
	layer.Freeze(f.layers...)
	return f, nil
}

// Load replaces the extractor weights with those stored at path.
func (f *FeatureExtractor) Load(path string) error {
	return net.LoadFile(path, checkpointName, f.Params())
}

// Save writes the extractor weights to path.
func (f *FeatureExtractor) Save(path string) error {
	return net.SaveFile(path, checkpointName, f.Params())
}

// Specs returns the declared architecture.
func (f *FeatureExtractor) Specs() []net.LayerSpec {
	return f.specs
}

// Len returns the number of layers.
func (f *FeatureExtractor) Len() int {
	return len(f.layers)
}

// Params returns the frozen weight tensors.
func (f *FeatureExtractor) Params() []*tensor.Tensor {
	return layer.Params(f.layers...)
}

// Run applies layers [from, to] inclusive to x. Every layer allocates its
// output, so x and intermediate tensors remain valid after the call.
func (f *FeatureExtractor) Run(x *tensor.Tensor, from, to int) *tensor.Tensor {
	if from < 0 || to >= len(f.layers) || from > to+1 {
		panic(fmt.Sprintf("FeatureExtractor: invalid layer range [%d, %d] of %d", from, to, len(f.layers)))
	}
	for _, l := range f.layers[from : to+1] {
		x = l.Forward(x)
	}
	return x
}
