package layer

import (
	"github.com/nnkit/layerkit/internal/activations"
	"github.com/nnkit/layerkit/internal/nnerr"
	"github.com/nnkit/layerkit/internal/tensor"
	"github.com/nnkit/layerkit/internal/weights"
)

// FullyConnected multiplies its input by a weight matrix, adds a bias and
// applies an activation: Y = f(X·W + b).
//
// X is (batch, n_in), W is (n_in, n_out), b is (1, n_out).
type FullyConnected struct {
	nOut int
	act  activations.Activation
	init weights.Initializer

	initialized bool
	nIn         int
	w, b        *Param

	cache fcCache
}

type fcCache struct {
	x, z  *tensor.Tensor
	valid bool
}

// NewFullyConnected creates a fully-connected layer with nOut outputs.
// A nil activation means linear; a nil initializer means Xavier uniform.
func NewFullyConnected(nOut int, act activations.Activation, wi weights.Initializer) (*FullyConnected, error) {
	if nOut <= 0 {
		return nil, nnerr.Configf("fully_connected: invalid n_out %d", nOut)
	}
	if act == nil {
		act = activations.Linear{}
	}
	if wi == nil {
		wi = weights.XavierUniform(nil)
	}
	return &FullyConnected{nOut: nOut, act: act, init: wi}, nil
}

func (f *FullyConnected) ensureInit(x *tensor.Tensor) error {
	if x == nil || x.Dims() != 2 {
		var shape tensor.Shape
		if x != nil {
			shape = x.Shape()
		}
		return nnerr.Shapef("fully_connected: expected (batch, n_in) input, got %v", shape)
	}
	if f.initialized {
		if x.Dim(1) != f.nIn {
			return nnerr.Shapef("fully_connected: input has %d features, layer was built for %d", x.Dim(1), f.nIn)
		}
		return nil
	}

	nIn := x.Dim(1)
	w := f.init([]int{nIn, f.nOut})
	if !w.HasShape(nIn, f.nOut) {
		return nnerr.Shapef("fully_connected: initializer returned %v, want (%d, %d)", w.Shape(), nIn, f.nOut)
	}
	f.nIn = nIn
	f.w = newParam("W", w)
	f.b = newParam("b", tensor.Zeros(1, f.nOut))
	f.initialized = true
	return nil
}

func (f *FullyConnected) compute(x, w, b *tensor.Tensor) (z, out *tensor.Tensor, err error) {
	xw, err := tensor.MatMul(x, w)
	if err != nil {
		return nil, nil, err
	}
	z, err = tensor.AddRow(xw, b)
	if err != nil {
		return nil, nil, err
	}
	return z, f.act.Forward(z), nil
}

// Forward computes f(X·W + b) and caches X and Z.
func (f *FullyConnected) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := f.ensureInit(x); err != nil {
		return nil, err
	}
	z, out, err := f.compute(x, f.w.Value, f.b.Value)
	if err != nil {
		return nil, err
	}
	f.cache = fcCache{x: x.Clone(), z: z, valid: true}
	return out, nil
}

// ForwardWith computes the output with overridden W and/or b.
func (f *FullyConnected) ForwardWith(overrides map[string]*tensor.Tensor, x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := f.ensureInit(x); err != nil {
		return nil, err
	}
	vals, err := selectParams(overrides, f.w, f.b)
	if err != nil {
		return nil, err
	}
	_, out, err := f.compute(x, vals[0], vals[1])
	return out, err
}

// Backward computes dW = Xᵀ·dZ, db = Σ_batch dZ and returns dX = dZ·Wᵀ,
// where dZ is dL/dY pulled back through the activation.
func (f *FullyConnected) Backward(dLdY *tensor.Tensor) (*tensor.Tensor, error) {
	if !f.cache.valid {
		return nil, nnerr.Statef("fully_connected: backward called before forward")
	}
	if err := checkGrad(dLdY, f.cache.z.Shape()); err != nil {
		return nil, err
	}

	dZ, err := f.act.Backward(f.cache.z, dLdY)
	if err != nil {
		return nil, err
	}
	dW, err := tensor.MatMulTransA(f.cache.x, dZ)
	if err != nil {
		return nil, err
	}
	db, err := tensor.SumRows(dZ)
	if err != nil {
		return nil, err
	}
	dX, err := tensor.MatMulTransB(dZ, f.w.Value)
	if err != nil {
		return nil, err
	}

	f.w.Grad = dW
	f.b.Grad = db
	return dX, nil
}

// Params returns W and b once initialized.
func (f *FullyConnected) Params() []*Param {
	if !f.initialized {
		return nil
	}
	return []*Param{f.w, f.b}
}

// ClearGradients zeroes out the gradients and drops the cache.
func (f *FullyConnected) ClearGradients() {
	f.cache = fcCache{}
	if f.initialized {
		f.w.zeroGrad()
		f.b.zeroGrad()
	}
}

// Clone creates a deep copy of the layer.
func (f *FullyConnected) Clone() Layer {
	c := &FullyConnected{nOut: f.nOut, act: f.act, init: f.init}
	if f.initialized {
		c.initialized = true
		c.nIn = f.nIn
		c.w = f.w.clone()
		c.b = f.b.clone()
	}
	return c
}

// InSize returns the input feature count, 0 before the first Forward.
func (f *FullyConnected) InSize() int {
	return f.nIn
}

// OutSize returns the output feature count.
func (f *FullyConnected) OutSize() int {
	return f.nOut
}

// Activation returns the activation function used by this layer.
func (f *FullyConnected) Activation() activations.Activation {
	return f.act
}

// Initialized reports whether the parameters have been created.
func (f *FullyConnected) Initialized() bool {
	return f.initialized
}
