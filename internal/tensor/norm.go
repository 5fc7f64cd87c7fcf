package tensor

import (
	"fmt"
	"math"
)

// InstanceNormEps is added to the variance before taking the square root.
const InstanceNormEps = 1e-5

// InstanceNorm normalizes every (batch, channel) plane of x [B,C,H,W] to zero
// mean and unit variance, then applies y = x̂·scale + shift. scale and shift are
// [B,C] or [1,C] (broadcast over the batch) and receive gradients; nothing here
// owns parameters.
func InstanceNorm(x, scale, shift *Tensor, eps float64) *Tensor {
	if len(x.Shape) != 4 {
		panic(fmt.Sprintf("tensor: InstanceNorm expects rank-4 input, got %v", x.Shape))
	}
	batch, c, hw := x.Shape[0], x.Shape[1], x.Shape[2]*x.Shape[3]
	checkAffine := func(name string, p *Tensor) {
		if len(p.Shape) != 2 || p.Shape[1] != c || (p.Shape[0] != batch && p.Shape[0] != 1) {
			panic(fmt.Sprintf("tensor: InstanceNorm %s shape %v incompatible with input %v", name, p.Shape, x.Shape))
		}
	}
	checkAffine("scale", scale)
	checkAffine("shift", shift)
	affineIdx := func(p *Tensor, n, ch int) int {
		if p.Shape[0] == 1 {
			return ch
		}
		return n*c + ch
	}

	out := result(x.Shape, x, scale, shift)
	xhat := make([]float64, x.Len())
	invStd := make([]float64, batch*c)
	count := float64(hw)

	for n := 0; n < batch; n++ {
		for ch := 0; ch < c; ch++ {
			off := (n*c + ch) * hw
			plane := x.Data[off : off+hw]
			var mean float64
			for _, v := range plane {
				mean += v
			}
			mean /= count
			var variance float64
			for _, v := range plane {
				d := v - mean
				variance += d * d
			}
			variance /= count
			inv := 1 / math.Sqrt(variance+eps)
			invStd[n*c+ch] = inv

			g := scale.Data[affineIdx(scale, n, ch)]
			bt := shift.Data[affineIdx(shift, n, ch)]
			for i, v := range plane {
				h := (v - mean) * inv
				xhat[off+i] = h
				out.Data[off+i] = h*g + bt
			}
		}
	}

	out.backward = func() {
		var gx, gScale, gShift []float64
		if x.requiresGrad {
			gx = x.ensureGrad()
		}
		if scale.requiresGrad {
			gScale = scale.ensureGrad()
		}
		if shift.requiresGrad {
			gShift = shift.ensureGrad()
		}
		for n := 0; n < batch; n++ {
			for ch := 0; ch < c; ch++ {
				off := (n*c + ch) * hw
				gy := out.Grad[off : off+hw]
				h := xhat[off : off+hw]
				var sumGy, sumGyH float64
				for i, v := range gy {
					sumGy += v
					sumGyH += v * h[i]
				}
				if gShift != nil {
					gShift[affineIdx(shift, n, ch)] += sumGy
				}
				if gScale != nil {
					gScale[affineIdx(scale, n, ch)] += sumGyH
				}
				if gx == nil {
					continue
				}
				// dx = g·inv/N · (N·dy - Σdy - x̂·Σ(dy·x̂))
				g := scale.Data[affineIdx(scale, n, ch)]
				k := g * invStd[n*c+ch] / count
				for i, v := range gy {
					gx[off+i] += k * (count*v - sumGy - h[i]*sumGyH)
				}
			}
		}
	}
	return out
}
