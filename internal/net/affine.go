package net

import (
	"github.com/pkg/errors"

	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

// ErrParamWidth is returned when a parameter vector does not match the
// channel table it is sliced with.
var ErrParamWidth = errors.New("parameter vector width does not match channel table")

// ChannelTable lists the output channel count of every conditionally
// normalized transform layer, in layer order.
type ChannelTable []int

// Sum returns the total number of conditioned channels.
func (t ChannelTable) Sum() int {
	total := 0
	for _, c := range t {
		total += c
	}
	return total
}

// Width returns the parameter vector width the table consumes: one scale and
// one shift per channel.
func (t ChannelTable) Width() int {
	return 2 * t.Sum()
}

// Offsets returns the starting column of each layer within a half of the vector.
func (t ChannelTable) Offsets() []int {
	offsets := make([]int, len(t))
	off := 0
	for i, c := range t {
		offsets[i] = off
		off += c
	}
	return offsets
}

// AffineParams holds the scale and shift of one conditioned layer, each [B, C].
type AffineParams struct {
	Scale *tensor.Tensor
	Shift *tensor.Tensor
}

// DeriveAffineParams slices a [B, F] parameter vector into per-layer scale and
// shift tensors. The first half of the columns holds scales, the second half
// shifts. With trackGrad the slices stay connected to vec so gradients reach
// the network that produced it; otherwise they are detached.
func DeriveAffineParams(vec *tensor.Tensor, table ChannelTable, trackGrad bool) ([]AffineParams, error) {
	if len(vec.Shape) != 2 {
		return nil, errors.Errorf("parameter vector must be rank 2, got shape %v", vec.Shape)
	}
	if vec.Dim(1) != table.Width() {
		return nil, errors.Wrapf(ErrParamWidth, "vector has %d columns, table needs %d", vec.Dim(1), table.Width())
	}
	if !trackGrad {
		vec = vec.Detach()
	}

	half := table.Sum()
	params := make([]AffineParams, len(table))
	for i, off := range table.Offsets() {
		c := table[i]
		params[i] = AffineParams{
			Scale: tensor.SliceCols(vec, off, off+c),
			Shift: tensor.SliceCols(vec, half+off, half+off+c),
		}
	}
	return params, nil
}
