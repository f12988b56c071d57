package layer

import (
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/nnkit/layerkit/internal/nnerr"
	"github.com/nnkit/layerkit/internal/parallel"
	"github.com/nnkit/layerkit/internal/tensor"
)

// PoolMode selects the reduction applied over each window.
type PoolMode int

const (
	MaxPool PoolMode = iota
	AvgPool
)

// ParsePoolMode parses "max" or "average" ("avg" and "mean" are accepted
// too). The empty string selects MaxPool.
func ParsePoolMode(s string) (PoolMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "max":
		return MaxPool, nil
	case "average", "avg", "mean":
		return AvgPool, nil
	}
	return 0, nnerr.Configf("unknown pooling mode %q", s)
}

func (m PoolMode) String() string {
	switch m {
	case MaxPool:
		return "max"
	case AvgPool:
		return "average"
	}
	return "unknown"
}

// Pool2D downsamples each channel of a (batch, height, width, channels)
// input independently, taking the maximum or the mean over sliding windows.
//
// Padded positions hold zeros and take part in the reduction: a window that
// overlaps the border can select a padded zero as its maximum, and the mean
// always divides by kernel_h*kernel_w.
//
// Max pooling routes the gradient to the first maximal element of each
// window in row-major scan order; overlapping windows accumulate.
type Pool2D struct {
	kernel Kernel
	stride int
	pad    Padding
	geom   window
	mode   PoolMode
	par    parallel.Config

	cache poolCache
}

type poolCache struct {
	x     *tensor.Tensor
	valid bool
}

// NewPool2D creates a pooling layer. The zero Padding selects Valid.
func NewPool2D(kernel Kernel, stride int, pad Padding, mode PoolMode) (*Pool2D, error) {
	if mode != MaxPool && mode != AvgPool {
		return nil, nnerr.Configf("pool2d: unknown mode %d", int(mode))
	}
	if pad.IsDefault() {
		pad = Valid()
	}
	geom, err := newWindow(kernel, stride, pad)
	if err != nil {
		return nil, err
	}
	return &Pool2D{
		kernel: kernel,
		stride: stride,
		pad:    pad,
		geom:   geom,
		mode:   mode,
		par:    parallel.DefaultConfig(),
	}, nil
}

// SetParallel sets how examples of a batch are spread over goroutines.
func (p *Pool2D) SetParallel(cfg parallel.Config) {
	p.par = cfg
}

// OutputShape returns the output shape for an input shape.
func (p *Pool2D) OutputShape(in []int) (tensor.Shape, error) {
	if len(in) != 4 {
		return nil, nnerr.Shapef("pool2d: expected (batch, height, width, channels) input, got %v", tensor.Shape(in))
	}
	outH, outW, err := p.geom.outputSize(in[1], in[2])
	if err != nil {
		return nil, err
	}
	return tensor.Shape{in[0], outH, outW, in[3]}, nil
}

// gather copies the (kh, kw) window of channel ch at output (i, j) of
// example ex into buf, row-major.
func (p *Pool2D) gather(buf, xd []float64, ex, i, j, ch, hp, wp, nc int) {
	g := p.geom
	k := 0
	for ki := 0; ki < g.kh; ki++ {
		row := ((ex*hp+g.stride*i+ki)*wp + g.stride*j) * nc
		for kj := 0; kj < g.kw; kj++ {
			buf[k] = xd[row+kj*nc+ch]
			k++
		}
	}
}

// offset returns the flat index in the padded input of window element k.
func (p *Pool2D) offset(k, ex, i, j, ch, hp, wp, nc int) int {
	g := p.geom
	ki, kj := k/g.kw, k%g.kw
	return ((ex*hp+g.stride*i+ki)*wp+g.stride*j+kj)*nc + ch
}

func (p *Pool2D) compute(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x == nil {
		return nil, nnerr.Shapef("pool2d: nil input")
	}
	outShape, err := p.OutputShape(x.Shape())
	if err != nil {
		return nil, err
	}
	xp, err := tensor.Pad2D(x, p.geom.ph, p.geom.pw)
	if err != nil {
		return nil, err
	}

	n, outH, outW, nc := outShape[0], outShape[1], outShape[2], outShape[3]
	hp, wp := xp.Dim(1), xp.Dim(2)
	area := float64(p.geom.kh * p.geom.kw)

	out := tensor.Zeros(outShape...)
	xd, od := xp.Data(), out.Data()
	err = parallel.For(n, p.par, func(_, lo, hi int) error {
		buf := make([]float64, p.geom.kh*p.geom.kw)
		for ex := lo; ex < hi; ex++ {
			for i := 0; i < outH; i++ {
				for j := 0; j < outW; j++ {
					orow := od[((ex*outH+i)*outW+j)*nc:][:nc]
					for ch := 0; ch < nc; ch++ {
						p.gather(buf, xd, ex, i, j, ch, hp, wp, nc)
						if p.mode == MaxPool {
							orow[ch] = buf[floats.MaxIdx(buf)]
						} else {
							orow[ch] = floats.Sum(buf) / area
						}
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Forward pools the zero-padded input and caches the unpadded input.
func (p *Pool2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := p.compute(x)
	if err != nil {
		return nil, err
	}
	p.cache = poolCache{x: x.Clone(), valid: true}
	return out, nil
}

// ForwardWith computes the output without caching. Pool2D has no
// parameters, so any override name is rejected.
func (p *Pool2D) ForwardWith(overrides map[string]*tensor.Tensor, x *tensor.Tensor) (*tensor.Tensor, error) {
	if _, err := selectParams(overrides); err != nil {
		return nil, err
	}
	return p.compute(x)
}

// Backward returns dX. Max pooling recomputes each window's argmax from the
// cached input, average pooling spreads dY/(kh*kw) over the window.
func (p *Pool2D) Backward(dLdY *tensor.Tensor) (*tensor.Tensor, error) {
	if !p.cache.valid {
		return nil, nnerr.Statef("pool2d: backward called before forward")
	}
	x := p.cache.x
	outShape, err := p.OutputShape(x.Shape())
	if err != nil {
		return nil, err
	}
	if err := checkGrad(dLdY, outShape); err != nil {
		return nil, err
	}
	xp, err := tensor.Pad2D(x, p.geom.ph, p.geom.pw)
	if err != nil {
		return nil, err
	}

	n, outH, outW, nc := outShape[0], outShape[1], outShape[2], outShape[3]
	hp, wp := xp.Dim(1), xp.Dim(2)
	ksize := p.geom.kh * p.geom.kw
	area := float64(ksize)

	dxp := tensor.ZerosLike(xp)
	xd, dyd, dxd := xp.Data(), dLdY.Data(), dxp.Data()

	// Windows never cross examples, so per-chunk writes do not race.
	err = parallel.For(n, p.par, func(_, lo, hi int) error {
		buf := make([]float64, ksize)
		for ex := lo; ex < hi; ex++ {
			for i := 0; i < outH; i++ {
				for j := 0; j < outW; j++ {
					dyrow := dyd[((ex*outH+i)*outW+j)*nc:][:nc]
					for ch := 0; ch < nc; ch++ {
						g := dyrow[ch]
						if p.mode == MaxPool {
							p.gather(buf, xd, ex, i, j, ch, hp, wp, nc)
							k := floats.MaxIdx(buf)
							dxd[p.offset(k, ex, i, j, ch, hp, wp, nc)] += g
							continue
						}
						share := g / area
						for k := 0; k < ksize; k++ {
							dxd[p.offset(k, ex, i, j, ch, hp, wp, nc)] += share
						}
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return tensor.Crop2D(dxp, p.geom.ph, p.geom.pw, x.Dim(1), x.Dim(2))
}

// Params returns nil; pooling has no parameters.
func (p *Pool2D) Params() []*Param {
	return nil
}

// ClearGradients drops the cache.
func (p *Pool2D) ClearGradients() {
	p.cache = poolCache{}
}

// Clone creates a copy with the same configuration and an empty cache.
func (p *Pool2D) Clone() Layer {
	return &Pool2D{
		kernel: p.kernel,
		stride: p.stride,
		pad:    p.pad,
		geom:   p.geom,
		mode:   p.mode,
		par:    p.par,
	}
}

// KernelShape returns the window size.
func (p *Pool2D) KernelShape() Kernel {
	return p.kernel
}

// Stride returns the stride.
func (p *Pool2D) Stride() int {
	return p.stride
}

// Pad returns the resolved per-side padding (rows, columns).
func (p *Pool2D) Pad() (int, int) {
	return p.geom.ph, p.geom.pw
}

// Mode returns the pooling mode.
func (p *Pool2D) Mode() PoolMode {
	return p.mode
}
