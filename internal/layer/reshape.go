package layer

import "github.com/FlavioCFOliveira/GoStyle/internal/tensor"

// Flatten reshapes [B, ...] input to [B, features].
// This is useful for connecting convolutional layers to dense layers.
type Flatten struct{}

// NewFlatten creates a new flatten layer.
func NewFlatten() *Flatten {
	return &Flatten{}
}

func (f *Flatten) Kind() Kind                              { return KindFlatten }
func (f *Flatten) Forward(x *tensor.Tensor) *tensor.Tensor { return tensor.Flatten(x) }
func (f *Flatten) Params() []*tensor.Tensor                { return nil }
func (f *Flatten) OutSize() int                            { return 0 }

// ReflectionPad2D mirrors the border of the spatial dimensions.
type ReflectionPad2D struct {
	padding int
}

// NewReflectionPad2D creates a padding layer adding padding on every side.
func NewReflectionPad2D(padding int) *ReflectionPad2D {
	return &ReflectionPad2D{padding: padding}
}

func (r *ReflectionPad2D) Kind() Kind { return KindReflectionPad }

func (r *ReflectionPad2D) Forward(x *tensor.Tensor) *tensor.Tensor {
	return tensor.ReflectionPad2D(x, r.padding)
}

func (r *ReflectionPad2D) Params() []*tensor.Tensor { return nil }
func (r *ReflectionPad2D) OutSize() int             { return 0 }

// Padding returns the padding added on each side.
func (r *ReflectionPad2D) Padding() int {
	return r.padding
}
