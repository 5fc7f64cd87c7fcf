package tensor

import "fmt"

// ConvOutputSize returns the spatial output size of a convolution.
func ConvOutputSize(in, kernel, stride, padding int) int {
	return (in+2*padding-kernel)/stride + 1
}

// ConvTransposeOutputSize returns the spatial output size of a transposed convolution.
func ConvTransposeOutputSize(in, kernel, stride, padding, outputPadding int) int {
	return (in-1)*stride - 2*padding + kernel + outputPadding
}

// Conv2D convolves x [B,Ci,H,W] with w [Co,Ci,K,K] plus bias b [Co] using zero padding.
func Conv2D(x, w, b *Tensor, stride, padding int) *Tensor {
	if len(x.Shape) != 4 || len(w.Shape) != 4 {
		panic(fmt.Sprintf("tensor: Conv2D expects rank-4 input and weight, got %v and %v", x.Shape, w.Shape))
	}
	batch, inC, inH, inW := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	outC, k := w.Shape[0], w.Shape[2]
	if w.Shape[1] != inC {
		panic(fmt.Sprintf("tensor: Conv2D input has %d channels, weight expects %d", inC, w.Shape[1]))
	}
	outH := ConvOutputSize(inH, k, stride, padding)
	outW := ConvOutputSize(inW, k, stride, padding)
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("tensor: Conv2D input %v too small for kernel %d", x.Shape, k))
	}

	out := result([]int{batch, outC, outH, outW}, x, w, b)

	inPlane := inH * inW
	outPlane := outH * outW
	kk := k * k
	ocStride := inC * kk

	for n := 0; n < batch; n++ {
		xBase := n * inC * inPlane
		yBase := n * outC * outPlane
		for oc := 0; oc < outC; oc++ {
			yc := out.Data[yBase+oc*outPlane : yBase+(oc+1)*outPlane]
			bias := b.Data[oc]
			for i := range yc {
				yc[i] = bias
			}
			for ic := 0; ic < inC; ic++ {
				xc := x.Data[xBase+ic*inPlane : xBase+(ic+1)*inPlane]
				wBase := oc*ocStride + ic*kk
				for kh := 0; kh < k; kh++ {
					for kw := 0; kw < k; kw++ {
						wVal := w.Data[wBase+kh*k+kw]
						for oh := 0; oh < outH; oh++ {
							ih := oh*stride + kh - padding
							if ih < 0 || ih >= inH {
								continue
							}
							row := xc[ih*inW : (ih+1)*inW]
							yrow := yc[oh*outW : (oh+1)*outW]
							for ow := 0; ow < outW; ow++ {
								iw := ow*stride + kw - padding
								if iw >= 0 && iw < inW {
									yrow[ow] += wVal * row[iw]
								}
							}
						}
					}
				}
			}
		}
	}

	out.backward = func() {
		var gx, gw, gb []float64
		if x.requiresGrad {
			gx = x.ensureGrad()
		}
		if w.requiresGrad {
			gw = w.ensureGrad()
		}
		if b.requiresGrad {
			gb = b.ensureGrad()
		}
		for n := 0; n < batch; n++ {
			xBase := n * inC * inPlane
			yBase := n * outC * outPlane
			for oc := 0; oc < outC; oc++ {
				gy := out.Grad[yBase+oc*outPlane : yBase+(oc+1)*outPlane]
				if gb != nil {
					for _, v := range gy {
						gb[oc] += v
					}
				}
				for ic := 0; ic < inC; ic++ {
					xOff := xBase + ic*inPlane
					wBase := oc*ocStride + ic*kk
					for kh := 0; kh < k; kh++ {
						for kw := 0; kw < k; kw++ {
							wIdx := wBase + kh*k + kw
							wVal := w.Data[wIdx]
							var dw float64
							for oh := 0; oh < outH; oh++ {
								ih := oh*stride + kh - padding
								if ih < 0 || ih >= inH {
									continue
								}
								for ow := 0; ow < outW; ow++ {
									iw := ow*stride + kw - padding
									if iw < 0 || iw >= inW {
										continue
									}
									g := gy[oh*outW+ow]
									xi := xOff + ih*inW + iw
									dw += g * x.Data[xi]
									if gx != nil {
										gx[xi] += g * wVal
									}
								}
							}
							if gw != nil {
								gw[wIdx] += dw
							}
						}
					}
				}
			}
		}
	}
	return out
}

// ConvTranspose2D applies a transposed convolution to x [B,Ci,H,W] with
// w [Ci,Co,K,K] plus bias b [Co].
func ConvTranspose2D(x, w, b *Tensor, stride, padding, outputPadding int) *Tensor {
	if len(x.Shape) != 4 || len(w.Shape) != 4 {
		panic(fmt.Sprintf("tensor: ConvTranspose2D expects rank-4 input and weight, got %v and %v", x.Shape, w.Shape))
	}
	batch, inC, inH, inW := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	outC, k := w.Shape[1], w.Shape[2]
	if w.Shape[0] != inC {
		panic(fmt.Sprintf("tensor: ConvTranspose2D input has %d channels, weight expects %d", inC, w.Shape[0]))
	}
	outH := ConvTransposeOutputSize(inH, k, stride, padding, outputPadding)
	outW := ConvTransposeOutputSize(inW, k, stride, padding, outputPadding)

	out := result([]int{batch, outC, outH, outW}, x, w, b)

	inPlane := inH * inW
	outPlane := outH * outW
	kk := k * k

	for n := 0; n < batch; n++ {
		xBase := n * inC * inPlane
		yBase := n * outC * outPlane
		for oc := 0; oc < outC; oc++ {
			yc := out.Data[yBase+oc*outPlane : yBase+(oc+1)*outPlane]
			for i := range yc {
				yc[i] = b.Data[oc]
			}
		}
		for ic := 0; ic < inC; ic++ {
			xc := x.Data[xBase+ic*inPlane : xBase+(ic+1)*inPlane]
			for oc := 0; oc < outC; oc++ {
				yc := out.Data[yBase+oc*outPlane : yBase+(oc+1)*outPlane]
				wBase := (ic*outC + oc) * kk
				for kh := 0; kh < k; kh++ {
					for kw := 0; kw < k; kw++ {
						wVal := w.Data[wBase+kh*k+kw]
						for ih := 0; ih < inH; ih++ {
							oh := ih*stride - padding + kh
							if oh < 0 || oh >= outH {
								continue
							}
							for iw := 0; iw < inW; iw++ {
								ow := iw*stride - padding + kw
								if ow >= 0 && ow < outW {
									yc[oh*outW+ow] += wVal * xc[ih*inW+iw]
								}
							}
						}
					}
				}
			}
		}
	}

	out.backward = func() {
		var gx, gw, gb []float64
		if x.requiresGrad {
			gx = x.ensureGrad()
		}
		if w.requiresGrad {
			gw = w.ensureGrad()
		}
		if b.requiresGrad {
			gb = b.ensureGrad()
		}
		for n := 0; n < batch; n++ {
			xBase := n * inC * inPlane
			yBase := n * outC * outPlane
			if gb != nil {
				for oc := 0; oc < outC; oc++ {
					for _, v := range out.Grad[yBase+oc*outPlane : yBase+(oc+1)*outPlane] {
						gb[oc] += v
					}
				}
			}
			for ic := 0; ic < inC; ic++ {
				xOff := xBase + ic*inPlane
				for oc := 0; oc < outC; oc++ {
					gy := out.Grad[yBase+oc*outPlane : yBase+(oc+1)*outPlane]
					wBase := (ic*outC + oc) * kk
					for kh := 0; kh < k; kh++ {
						for kw := 0; kw < k; kw++ {
							wIdx := wBase + kh*k + kw
							wVal := w.Data[wIdx]
							var dw float64
							for ih := 0; ih < inH; ih++ {
								oh := ih*stride - padding + kh
								if oh < 0 || oh >= outH {
									continue
								}
								for iw := 0; iw < inW; iw++ {
									ow := iw*stride - padding + kw
									if ow < 0 || ow >= outW {
										continue
									}
									g := gy[oh*outW+ow]
									xi := xOff + ih*inW + iw
									dw += g * x.Data[xi]
									if gx != nil {
										gx[xi] += g * wVal
									}
								}
							}
							if gw != nil {
								gw[wIdx] += dw
							}
						}
					}
				}
			}
		}
	}
	return out
}

func reflect(i, n int) int {
	if i < 0 {
		return -i
	}
	if i >= n {
		return 2*(n-1) - i
	}
	return i
}

// ReflectionPad2D pads the spatial dimensions of x by mirroring the border.
// The padding must be smaller than both spatial dimensions.
func ReflectionPad2D(x *Tensor, pad int) *Tensor {
	batch, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	if pad >= h || pad >= w {
		panic(fmt.Sprintf("tensor: reflection padding %d too large for input %v", pad, x.Shape))
	}
	outH, outW := h+2*pad, w+2*pad
	out := result([]int{batch, c, outH, outW}, x)

	// index[o] is the input offset each output element reads from.
	index := make([]int, outH*outW)
	for oh := 0; oh < outH; oh++ {
		ih := reflect(oh-pad, h)
		for ow := 0; ow < outW; ow++ {
			index[oh*outW+ow] = ih*w + reflect(ow-pad, w)
		}
	}

	planes := batch * c
	for p := 0; p < planes; p++ {
		src := x.Data[p*h*w : (p+1)*h*w]
		dst := out.Data[p*outH*outW : (p+1)*outH*outW]
		for o, i := range index {
			dst[o] = src[i]
		}
	}

	out.backward = func() {
		if !x.requiresGrad {
			return
		}
		g := x.ensureGrad()
		for p := 0; p < planes; p++ {
			gs := g[p*h*w : (p+1)*h*w]
			gd := out.Grad[p*outH*outW : (p+1)*outH*outW]
			for o, i := range index {
				gs[i] += gd[o]
			}
		}
	}
	return out
}

// MaxPool2D takes the maximum over k×k windows moved by stride.
func MaxPool2D(x *Tensor, k, stride int) *Tensor {
	batch, c, h, w := x.Shape[0], x.Shape[1], x.Shape[2], x.Shape[3]
	outH := ConvOutputSize(h, k, stride, 0)
	outW := ConvOutputSize(w, k, stride, 0)
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("tensor: MaxPool2D input %v too small for kernel %d", x.Shape, k))
	}
	out := result([]int{batch, c, outH, outW}, x)

	// argmax stores the input index of the max value for each output position.
	argmax := make([]int, out.Len())
	for p := 0; p < batch*c; p++ {
		inBase := p * h * w
		outBase := p * outH * outW
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				bestIdx := inBase + oh*stride*w + ow*stride
				best := x.Data[bestIdx]
				for kh := 0; kh < k; kh++ {
					for kw := 0; kw < k; kw++ {
						idx := inBase + (oh*stride+kh)*w + ow*stride + kw
						if v := x.Data[idx]; v > best {
							best = v
							bestIdx = idx
						}
					}
				}
				o := outBase + oh*outW + ow
				out.Data[o] = best
				argmax[o] = bestIdx
			}
		}
	}

	out.backward = func() {
		if !x.requiresGrad {
			return
		}
		g := x.ensureGrad()
		for o, idx := range argmax {
			g[idx] += out.Grad[o]
		}
	}
	return out
}
