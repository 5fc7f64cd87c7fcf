package layer

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// LearnedInstanceNorm normalizes each (sample, channel) plane and applies a
// scale and shift supplied by the caller on every call. It registers no
// parameters: gradients flow back to whatever produced scale and shift.
type LearnedInstanceNorm struct {
	channels int
	eps      float64
}

// NewLearnedInstanceNorm creates a conditional instance norm over channels.
func NewLearnedInstanceNorm(channels int) *LearnedInstanceNorm {
	return &LearnedInstanceNorm{channels: channels, eps: tensor.InstanceNormEps}
}

// Forward normalizes x [B,C,H,W] with scale and shift of shape [B,C] or [1,C].
func (n *LearnedInstanceNorm) Forward(x, scale, shift *tensor.Tensor) *tensor.Tensor {
	if x.Dim(1) != n.channels {
		panic(fmt.Sprintf("LearnedInstanceNorm: input has %d channels, want %d", x.Dim(1), n.channels))
	}
	return tensor.InstanceNorm(x, scale, shift, n.eps)
}

// Channels returns the number of normalized channels.
func (n *LearnedInstanceNorm) Channels() int {
	return n.channels
}
