package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

func general(rows, cols int, data []float64) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// Linear computes x·wᵀ + b for x [B,in], w [out,in] and b [out].
func Linear(x, w, b *Tensor) *Tensor {
	if len(x.Shape) != 2 || len(w.Shape) != 2 || x.Shape[1] != w.Shape[1] {
		panic(fmt.Sprintf("tensor: Linear shape mismatch: input %v, weight %v", x.Shape, w.Shape))
	}
	batch, in, outF := x.Shape[0], x.Shape[1], w.Shape[0]
	out := result([]int{batch, outF}, x, w, b)
	for r := 0; r < batch; r++ {
		copy(out.Data[r*outF:(r+1)*outF], b.Data)
	}
	blas64.Gemm(blas.NoTrans, blas.Trans, 1,
		general(batch, in, x.Data), general(outF, in, w.Data),
		1, general(batch, outF, out.Data))

	out.backward = func() {
		gy := general(batch, outF, out.Grad)
		if x.requiresGrad {
			blas64.Gemm(blas.NoTrans, blas.NoTrans, 1, gy, general(outF, in, w.Data),
				1, general(batch, in, x.ensureGrad()))
		}
		if w.requiresGrad {
			blas64.Gemm(blas.Trans, blas.NoTrans, 1, gy, general(batch, in, x.Data),
				1, general(outF, in, w.ensureGrad()))
		}
		if b.requiresGrad {
			gb := b.ensureGrad()
			for r := 0; r < batch; r++ {
				for j := 0; j < outF; j++ {
					gb[j] += out.Grad[r*outF+j]
				}
			}
		}
	}
	return out
}

// Gram computes the channel correlation matrix of x [B,C,H,W]:
// G[b,i,j] = Σ_hw x[b,i,h,w]·x[b,j,h,w] / (C·H·W).
func Gram(x *Tensor) *Tensor {
	if len(x.Shape) != 4 {
		panic(fmt.Sprintf("tensor: Gram expects rank-4 input, got %v", x.Shape))
	}
	batch, c, hw := x.Shape[0], x.Shape[1], x.Shape[2]*x.Shape[3]
	norm := 1 / float64(c*hw)
	out := result([]int{batch, c, c}, x)
	for n := 0; n < batch; n++ {
		f := general(c, hw, x.Data[n*c*hw:(n+1)*c*hw])
		blas64.Gemm(blas.NoTrans, blas.Trans, norm, f, f, 0, general(c, c, out.Data[n*c*c:(n+1)*c*c]))
	}

	out.backward = func() {
		if !x.requiresGrad {
			return
		}
		g := x.ensureGrad()
		sym := make([]float64, c*c)
		for n := 0; n < batch; n++ {
			gg := out.Grad[n*c*c : (n+1)*c*c]
			for i := 0; i < c; i++ {
				for j := 0; j < c; j++ {
					sym[i*c+j] = gg[i*c+j] + gg[j*c+i]
				}
			}
			// dF = (dG + dGᵀ)·F / N
			blas64.Gemm(blas.NoTrans, blas.NoTrans, norm, general(c, c, sym),
				general(c, hw, x.Data[n*c*hw:(n+1)*c*hw]),
				1, general(c, hw, g[n*c*hw:(n+1)*c*hw]))
		}
	}
	return out
}
