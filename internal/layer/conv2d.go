package layer

import (
	"gonum.org/v1/gonum/floats"

	"github.com/nnkit/layerkit/internal/activations"
	"github.com/nnkit/layerkit/internal/nnerr"
	"github.com/nnkit/layerkit/internal/parallel"
	"github.com/nnkit/layerkit/internal/tensor"
	"github.com/nnkit/layerkit/internal/weights"
)

// Conv2D implements a 2D convolutional layer over channels-last inputs.
//
// Input shape:  (batch, height, width, in_channels)
// Weight shape: (kernel_h, kernel_w, in_channels, out_channels)
// Bias shape:   (1, out_channels)
// Output shape: (batch, out_h, out_w, out_channels)
//
// Where:
//
//	out_h = (height + 2*pad_h - kernel_h) / stride + 1
//	out_w = (width + 2*pad_w - kernel_w) / stride + 1
//
// Uses direct convolution. Examples of a batch are split into contiguous
// chunks that are processed in parallel.
type Conv2D struct {
	nOut   int
	kernel Kernel
	stride int
	pad    Padding
	geom   window

	act  activations.Activation
	init weights.Initializer
	par  parallel.Config

	initialized bool
	nIn         int
	w, b        *Param

	cache convCache
}

type convCache struct {
	x, z  *tensor.Tensor
	valid bool
}

// NewConv2D creates a convolutional layer with nOut filters.
// The zero Padding selects Same. A nil activation means linear; a nil
// initializer means Xavier uniform.
func NewConv2D(nOut int, kernel Kernel, stride int, pad Padding,
	act activations.Activation, wi weights.Initializer) (*Conv2D, error) {

	if nOut <= 0 {
		return nil, nnerr.Configf("conv2d: invalid n_out %d", nOut)
	}
	if pad.IsDefault() {
		pad = Same()
	}
	geom, err := newWindow(kernel, stride, pad)
	if err != nil {
		return nil, err
	}
	if act == nil {
		act = activations.Linear{}
	}
	if wi == nil {
		wi = weights.XavierUniform(nil)
	}
	return &Conv2D{
		nOut:   nOut,
		kernel: kernel,
		stride: stride,
		pad:    pad,
		geom:   geom,
		act:    act,
		init:   wi,
		par:    parallel.DefaultConfig(),
	}, nil
}

// SetParallel sets how examples of a batch are spread over goroutines.
func (c *Conv2D) SetParallel(cfg parallel.Config) {
	c.par = cfg
}

// OutputShape returns the output shape for an input shape, validating the
// window geometry.
func (c *Conv2D) OutputShape(in []int) (tensor.Shape, error) {
	if len(in) != 4 {
		return nil, nnerr.Shapef("conv2d: expected (batch, height, width, channels) input, got %v", tensor.Shape(in))
	}
	outH, outW, err := c.geom.outputSize(in[1], in[2])
	if err != nil {
		return nil, err
	}
	return tensor.Shape{in[0], outH, outW, c.nOut}, nil
}

func (c *Conv2D) ensureInit(x *tensor.Tensor) error {
	if x == nil || x.Dims() != 4 {
		var shape tensor.Shape
		if x != nil {
			shape = x.Shape()
		}
		return nnerr.Shapef("conv2d: expected (batch, height, width, channels) input, got %v", shape)
	}
	// A rejected geometry must leave an uninitialized layer untouched.
	if _, err := c.OutputShape(x.Shape()); err != nil {
		return err
	}
	if c.initialized {
		if x.Dim(3) != c.nIn {
			return nnerr.Shapef("conv2d: input has %d channels, layer was built for %d", x.Dim(3), c.nIn)
		}
		return nil
	}

	nIn := x.Dim(3)
	wShape := []int{c.kernel[0], c.kernel[1], nIn, c.nOut}
	w := c.init(wShape)
	if !w.HasShape(wShape...) {
		return nnerr.Shapef("conv2d: initializer returned %v, want %v", w.Shape(), tensor.Shape(wShape))
	}
	c.nIn = nIn
	c.w = newParam("W", w)
	c.b = newParam("b", tensor.Zeros(1, c.nOut))
	c.initialized = true
	return nil
}

// compute returns the pre-activation Z and the output f(Z).
func (c *Conv2D) compute(x, w, b *tensor.Tensor) (z, out *tensor.Tensor, err error) {
	outShape, err := c.OutputShape(x.Shape())
	if err != nil {
		return nil, nil, err
	}
	xp, err := tensor.Pad2D(x, c.geom.ph, c.geom.pw)
	if err != nil {
		return nil, nil, err
	}

	n, outH, outW := outShape[0], outShape[1], outShape[2]
	hp, wp, cin := xp.Dim(1), xp.Dim(2), xp.Dim(3)
	kh, kw, s, cout := c.geom.kh, c.geom.kw, c.geom.stride, c.nOut

	z = tensor.Zeros(outShape...)
	xd, wd, bd, zd := xp.Data(), w.Data(), b.Data(), z.Data()

	// Within one kernel row the window is contiguous in the padded input:
	// (kj, ci) maps to offset kj*cin+ci from the row start, and to weight
	// row (ki*kw*cin + kj*cin + ci).
	span := kw * cin
	err = parallel.For(n, c.par, func(_, lo, hi int) error {
		for ex := lo; ex < hi; ex++ {
			for i := 0; i < outH; i++ {
				for j := 0; j < outW; j++ {
					zrow := zd[((ex*outH+i)*outW+j)*cout:][:cout]
					copy(zrow, bd)
					for ki := 0; ki < kh; ki++ {
						xbase := ((ex*hp+s*i+ki)*wp + s*j) * cin
						wbase := ki * span * cout
						for q := 0; q < span; q++ {
							floats.AddScaled(zrow, xd[xbase+q], wd[wbase+q*cout:][:cout])
						}
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return z, c.act.Forward(z), nil
}

// Forward convolves the zero-padded input with W, adds b and applies the
// activation. Caches the unpadded input and Z.
func (c *Conv2D) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := c.ensureInit(x); err != nil {
		return nil, err
	}
	z, out, err := c.compute(x, c.w.Value, c.b.Value)
	if err != nil {
		return nil, err
	}
	c.cache = convCache{x: x.Clone(), z: z, valid: true}
	return out, nil
}

// ForwardWith computes the output with overridden W and/or b.
func (c *Conv2D) ForwardWith(overrides map[string]*tensor.Tensor, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := c.ensureInit(x); err != nil {
		return nil, err
	}
	vals, err := selectParams(overrides, c.w, c.b)
	if err != nil {
		return nil, err
	}
	_, out, err := c.compute(x, vals[0], vals[1])
	return out, err
}

// Backward stores dW and db and returns dX. The padded input is rebuilt from
// the cached input; nothing padded survives between calls.
func (c *Conv2D) Backward(dLdY *tensor.Tensor) (*tensor.Tensor, error) {
	if !c.cache.valid {
		return nil, nnerr.Statef("conv2d: backward called before forward")
	}
	if err := checkGrad(dLdY, c.cache.z.Shape()); err != nil {
		return nil, err
	}

	dZ, err := c.act.Backward(c.cache.z, dLdY)
	if err != nil {
		return nil, err
	}
	x := c.cache.x
	xp, err := tensor.Pad2D(x, c.geom.ph, c.geom.pw)
	if err != nil {
		return nil, err
	}

	n, outH, outW := dZ.Dim(0), dZ.Dim(1), dZ.Dim(2)
	hp, wp, cin := xp.Dim(1), xp.Dim(2), xp.Dim(3)
	kh, kw, s, cout := c.geom.kh, c.geom.kw, c.geom.stride, c.nOut
	span := kw * cin

	dxp := tensor.ZerosLike(xp)
	xd, wd, dzd, dxd := xp.Data(), c.w.Value.Data(), dZ.Data(), dxp.Data()

	// One dW/db accumulator per chunk of examples, so the extra memory is
	// bounded by the worker count rather than the batch size. Chunks cover
	// increasing example ranges and are summed in chunk order.
	chunks := parallel.Chunks(n, c.par)
	dWParts := make([][]float64, chunks)
	dbParts := make([][]float64, chunks)
	err = parallel.For(n, c.par, func(chunk, lo, hi int) error {
		dw := make([]float64, len(wd))
		db := make([]float64, cout)
		for ex := lo; ex < hi; ex++ {
			for i := 0; i < outH; i++ {
				for j := 0; j < outW; j++ {
					dzrow := dzd[((ex*outH+i)*outW+j)*cout:][:cout]
					floats.Add(db, dzrow)
					for ki := 0; ki < kh; ki++ {
						xbase := ((ex*hp+s*i+ki)*wp + s*j) * cin
						wbase := ki * span * cout
						for q := 0; q < span; q++ {
							wrow := wbase + q*cout
							floats.AddScaled(dw[wrow:wrow+cout], xd[xbase+q], dzrow)
							dxd[xbase+q] += floats.Dot(dzrow, wd[wrow:wrow+cout])
						}
					}
				}
			}
		}
		dWParts[chunk] = dw
		dbParts[chunk] = db
		return nil
	})
	if err != nil {
		return nil, err
	}

	dW := tensor.ZerosLike(c.w.Value)
	db := tensor.Zeros(1, cout)
	for k := range dWParts {
		floats.Add(dW.Data(), dWParts[k])
		floats.Add(db.Data(), dbParts[k])
	}

	dX, err := tensor.Crop2D(dxp, c.geom.ph, c.geom.pw, x.Dim(1), x.Dim(2))
	if err != nil {
		return nil, err
	}
	c.w.Grad = dW
	c.b.Grad = db
	return dX, nil
}

// Params returns W and b once initialized.
func (c *Conv2D) Params() []*Param {
	if !c.initialized {
		return nil
	}
	return []*Param{c.w, c.b}
}

// ClearGradients zeroes out the gradients and drops the cache.
func (c *Conv2D) ClearGradients() {
	c.cache = convCache{}
	if c.initialized {
		c.w.zeroGrad()
		c.b.zeroGrad()
	}
}

// Clone creates a deep copy of the convolutional layer.
func (c *Conv2D) Clone() Layer {
	newC := &Conv2D{
		nOut:   c.nOut,
		kernel: c.kernel,
		stride: c.stride,
		pad:    c.pad,
		geom:   c.geom,
		act:    c.act,
		init:   c.init,
		par:    c.par,
	}
	if c.initialized {
		newC.initialized = true
		newC.nIn = c.nIn
		newC.w = c.w.clone()
		newC.b = c.b.clone()
	}
	return newC
}

// InSize returns the number of input channels, 0 before the first Forward.
func (c *Conv2D) InSize() int {
	return c.nIn
}

// OutSize returns the number of output channels.
func (c *Conv2D) OutSize() int {
	return c.nOut
}

// KernelShape returns the kernel size.
func (c *Conv2D) KernelShape() Kernel {
	return c.kernel
}

// Stride returns the stride.
func (c *Conv2D) Stride() int {
	return c.stride
}

// Pad returns the resolved per-side padding (rows, columns).
func (c *Conv2D) Pad() (int, int) {
	return c.geom.ph, c.geom.pw
}

// Activation returns the activation function.
func (c *Conv2D) Activation() activations.Activation {
	return c.act
}

// Initialized reports whether the parameters have been created.
func (c *Conv2D) Initialized() bool {
	return c.initialized
}
