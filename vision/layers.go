package vision

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"octvision/util/common"
)

// tensor is a dense HWC feature map.
type tensor struct {
	h, w, c int
	data    []float32
}

func newTensor(h, w, c int) *tensor {
	return &tensor{h: h, w: w, c: c, data: make([]float32, h*w*c)}
}

func (t *tensor) at(y, x, ch int) float32 {
	return t.data[(y*t.w+x)*t.c+ch]
}

func (t *tensor) set(y, x, ch int, v float32) {
	t.data[(y*t.w+x)*t.c+ch] = v
}

type layer interface {
	forward(*tensor) *tensor
	weightCount() int
	setWeights([]float32)
	weights() []float32
}

func buildLayer(spec LayerSpec) (layer, error) {
	switch spec.Type {
	case "conv":
		if spec.In <= 0 || spec.Out <= 0 || spec.Kernel <= 0 {
			return nil, common.NewErrorf("conv layer needs in/out/kernel, got %+v", spec)
		}
		stride := spec.Stride
		if stride == 0 {
			stride = 1
		}
		return &convLayer{in: spec.In, out: spec.Out, kernel: spec.Kernel, stride: stride, pad: spec.Pad}, nil
	case "relu":
		return &reluLayer{}, nil
	case "maxpool":
		if spec.Size <= 1 {
			return nil, common.NewErrorf("maxpool layer needs size > 1, got %+v", spec)
		}
		return &maxPoolLayer{size: spec.Size}, nil
	case "gap":
		return &gapLayer{}, nil
	case "dense":
		if spec.In <= 0 || spec.Out <= 0 {
			return nil, common.NewErrorf("dense layer needs in/out, got %+v", spec)
		}
		return &denseLayer{in: spec.In, out: spec.Out}, nil
	default:
		return nil, common.NewErrorf("unknown layer type %q", spec.Type)
	}
}

// convLayer is a 2D convolution. Weights are laid out output-major:
// w[((o*in+i)*k+ky)*k+kx], followed by one bias per output channel.
type convLayer struct {
	in, out, kernel, stride, pad int
	w                            []float32
	b                            []float32
}

func (l *convLayer) weightCount() int {
	return l.out*l.in*l.kernel*l.kernel + l.out
}

func (l *convLayer) setWeights(w []float32) {
	n := l.out * l.in * l.kernel * l.kernel
	l.w = w[:n]
	l.b = w[n:]
}

func (l *convLayer) weights() []float32 {
	return append(append([]float32{}, l.w...), l.b...)
}

// forward runs the convolution as an im2col unfold followed by one matrix
// multiply, which keeps the hot loop inside gonum.
func (l *convLayer) forward(t *tensor) *tensor {
	k := l.kernel
	outH := (t.h+2*l.pad-k)/l.stride + 1
	outW := (t.w+2*l.pad-k)/l.stride + 1
	rows := l.in * k * k

	cols := mat.NewDense(rows, outH*outW, nil)
	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			col := oy*outW + ox
			r := 0
			for ci := 0; ci < l.in; ci++ {
				for ky := 0; ky < k; ky++ {
					for kx := 0; kx < k; kx++ {
						y := oy*l.stride + ky - l.pad
						x := ox*l.stride + kx - l.pad
						if y >= 0 && y < t.h && x >= 0 && x < t.w {
							cols.Set(r, col, float64(t.at(y, x, ci)))
						}
						r++
					}
				}
			}
		}
	}

	wm := mat.NewDense(l.out, rows, nil)
	for o := 0; o < l.out; o++ {
		for r := 0; r < rows; r++ {
			wm.Set(o, r, float64(l.w[o*rows+r]))
		}
	}

	var prod mat.Dense
	prod.Mul(wm, cols)

	res := newTensor(outH, outW, l.out)
	for o := 0; o < l.out; o++ {
		bias := float64(l.b[o])
		for oy := 0; oy < outH; oy++ {
			for ox := 0; ox < outW; ox++ {
				res.set(oy, ox, o, float32(prod.At(o, oy*outW+ox)+bias))
			}
		}
	}
	return res
}

type reluLayer struct{}

func (l *reluLayer) weightCount() int { return 0 }
func (l *reluLayer) setWeights(w []float32) {}
func (l *reluLayer) weights() []float32 { return nil }

func (l *reluLayer) forward(t *tensor) *tensor {
	res := newTensor(t.h, t.w, t.c)
	for i, v := range t.data {
		if v > 0 {
			res.data[i] = v
		}
	}
	return res
}

type maxPoolLayer struct {
	size int
}

func (l *maxPoolLayer) weightCount() int { return 0 }
func (l *maxPoolLayer) setWeights(w []float32) {}
func (l *maxPoolLayer) weights() []float32 { return nil }

func (l *maxPoolLayer) forward(t *tensor) *tensor {
	outH := t.h / l.size
	outW := t.w / l.size
	res := newTensor(outH, outW, t.c)
	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			for c := 0; c < t.c; c++ {
				best := float32(math.Inf(-1))
				for ky := 0; ky < l.size; ky++ {
					for kx := 0; kx < l.size; kx++ {
						if v := t.at(oy*l.size+ky, ox*l.size+kx, c); v > best {
							best = v
						}
					}
				}
				res.set(oy, ox, c, best)
			}
		}
	}
	return res
}

// gapLayer reduces each channel to its spatial mean.
type gapLayer struct{}

func (l *gapLayer) weightCount() int { return 0 }
func (l *gapLayer) setWeights(w []float32) {}
func (l *gapLayer) weights() []float32 { return nil }

func (l *gapLayer) forward(t *tensor) *tensor {
	res := newTensor(1, 1, t.c)
	area := float32(t.h * t.w)
	for c := 0; c < t.c; c++ {
		var sum float32
		for y := 0; y < t.h; y++ {
			for x := 0; x < t.w; x++ {
				sum += t.at(y, x, c)
			}
		}
		res.set(0, 0, c, sum/area)
	}
	return res
}

// denseLayer is a fully connected head over a flattened input. Weights are
// output-major: w[o*in+i], followed by one bias per output.
type denseLayer struct {
	in, out int
	w       []float32
	b       []float32
}

func (l *denseLayer) weightCount() int {
	return l.out*l.in + l.out
}

func (l *denseLayer) setWeights(w []float32) {
	l.w = w[:l.out*l.in]
	l.b = w[l.out*l.in:]
}

func (l *denseLayer) weights() []float32 {
	return append(append([]float32{}, l.w...), l.b...)
}

func (l *denseLayer) forward(t *tensor) *tensor {
	wm := mat.NewDense(l.out, l.in, nil)
	for o := 0; o < l.out; o++ {
		for i := 0; i < l.in; i++ {
			wm.Set(o, i, float64(l.w[o*l.in+i]))
		}
	}
	in := mat.NewVecDense(l.in, nil)
	for i := 0; i < l.in && i < len(t.data); i++ {
		in.SetVec(i, float64(t.data[i]))
	}

	var outVec mat.VecDense
	outVec.MulVec(wm, in)

	res := newTensor(1, 1, l.out)
	for o := 0; o < l.out; o++ {
		res.set(0, 0, o, float32(outVec.AtVec(o))+l.b[o])
	}
	return res
}
