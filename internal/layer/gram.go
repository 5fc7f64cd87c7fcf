package layer

import "github.com/FlavioCFOliveira/GoStyle/internal/tensor"

// GramMatrix computes the normalized channel correlation of a feature map,
// [B,C,H,W] -> [B,C,C]. It has no learnable state.
type GramMatrix struct{}

func (GramMatrix) Forward(x *tensor.Tensor) *tensor.Tensor {
	return tensor.Gram(x)
}
