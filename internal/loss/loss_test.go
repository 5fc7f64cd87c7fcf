package loss

import (
	"math"
	"testing"

	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

func TestMSEWeighted(t *testing.T) {
	pred := tensor.FromData([]float64{1, 2, 3}, 3)
	target := tensor.FromData([]float64{1, 0, 0}, 3)

	got := MSE{Weight: 2}.Forward(pred, target).Item()
	// ((0)^2 + (4)^2 + (6)^2) / 3
	want := 52.0 / 3
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("MSE = %v, want %v", got, want)
	}

	if got := (MSE{Weight: 1}).Forward(pred, target).Item(); math.Abs(got-13.0/3) > 1e-12 {
		t.Errorf("unweighted MSE = %v, want %v", got, 13.0/3)
	}
}

func TestZeroWeightDisablesTerm(t *testing.T) {
	pred := tensor.Param([]float64{1, 2, 3}, 3)
	target := tensor.FromData([]float64{1, 0, 0}, 3)

	l := MSE{Weight: 0}.Forward(pred, target)
	if l.Item() != 0 {
		t.Errorf("MSE with weight 0 = %v, want 0", l.Item())
	}
	l.Backward()
	for i, g := range pred.Grad {
		if g != 0 {
			t.Errorf("grad[%d] = %v, want 0", i, g)
		}
	}
}

func TestMSEShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on shape mismatch")
		}
	}()
	MSE{}.Forward(tensor.New(2, 2), tensor.New(4))
}

func TestContentTargetIsDetached(t *testing.T) {
	pred := tensor.Param([]float64{1, 2}, 1, 2)
	target := tensor.Param([]float64{0, 0}, 1, 2)

	NewContent(5).Forward(pred, target).Backward()
	if target.Grad != nil {
		t.Errorf("content target received gradient %v", target.Grad)
	}
	// d/dp mean((5p)^2) = 2·25·p / 2
	want := []float64{25, 50}
	for i, g := range pred.Grad {
		if math.Abs(g-want[i]) > 1e-9 {
			t.Errorf("grad[%d] = %v, want %v", i, g, want[i])
		}
	}
}

func TestStyleLossZeroForIdenticalFeatures(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	p := tensor.Param(append([]float64(nil), data...), 1, 2, 2, 2)
	s := tensor.Param(append([]float64(nil), data...), 1, 2, 2, 2)

	l := NewStyle(1000).Forward(p, s)
	if l.Item() != 0 {
		t.Errorf("style loss = %v, want 0", l.Item())
	}
	l.Backward()
	if s.Grad != nil {
		t.Error("style target received gradient")
	}
	if p.Grad == nil {
		t.Error("pastiche features received no gradient")
	}
}

func TestStyleLossIgnoresSpatialArrangement(t *testing.T) {
	// Permuting pixel positions consistently across channels leaves the Gram unchanged.
	a := tensor.FromData([]float64{1, 2, 3, 4, 5, 6, 7, 8}, 1, 2, 2, 2)
	b := tensor.FromData([]float64{4, 3, 2, 1, 8, 7, 6, 5}, 1, 2, 2, 2)
	if got := NewStyle(1).Forward(a, b).Item(); math.Abs(got) > 1e-12 {
		t.Errorf("style loss = %v, want 0", got)
	}
}
