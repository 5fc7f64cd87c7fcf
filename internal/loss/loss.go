// Package loss provides the perceptual loss terms used for style transfer.
package loss

import (
	"fmt"

	"github.com/FlavioCFOliveira/GoStyle/internal/layer"
	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// MSE computes mean squared error between weighted prediction and target:
// mean((w·pred - w·target)^2).
type MSE struct {
	Weight float64
}

// Forward returns the scalar loss. The target is treated as a constant.
func (m MSE) Forward(pred, target *tensor.Tensor) *tensor.Tensor {
	if !pred.SameShape(target) {
		panic(fmt.Sprintf("MSE: prediction %v and target %v must have same shape", pred.Shape, target.Shape))
	}
	return tensor.MSE(tensor.Scale(pred, m.Weight), tensor.Scale(target.Detach(), m.Weight))
}

// Content is the feature reconstruction loss between pastiche and content
// features at one depth of the loss network.
type Content struct {
	MSE
}

// NewContent creates a content loss with the given weight.
func NewContent(weight float64) Content {
	return Content{MSE{Weight: weight}}
}

// Style compares Gram matrices of pastiche and style features.
type Style struct {
	MSE
	gram layer.GramMatrix
}

// NewStyle creates a style loss with the given weight.
func NewStyle(weight float64) Style {
	return Style{MSE: MSE{Weight: weight}}
}

// Forward returns the weighted Gram distance. The style Gram is a constant target.
func (s Style) Forward(pastiche, style *tensor.Tensor) *tensor.Tensor {
	return s.MSE.Forward(s.gram.Forward(pastiche), s.gram.Forward(style.Detach()))
}
