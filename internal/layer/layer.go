// Package layer provides neural network layer implementations.
//
// Every layer owns its parameters, the values its forward pass records for
// the backward pass, and the parameter gradients the backward pass writes
// for an external optimizer. Parameters are created lazily on the first
// Forward call, once the input feature count is known.
//
// A layer instance is not safe for concurrent use: each Forward overwrites
// the cached values read by the next Backward. Use Clone to build
// independent replicas.
package layer

import (
	"github.com/nnkit/layerkit/internal/nnerr"
	"github.com/nnkit/layerkit/internal/tensor"
)

// Layer is a neural network layer.
type Layer interface {
	// Forward computes the layer output and caches what Backward needs.
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)

	// Backward takes dL/dY for the last Forward output, stores the parameter
	// gradients and returns dL/dX.
	Backward(dLdY *tensor.Tensor) (*tensor.Tensor, error)

	// ForwardWith computes the output using overrides in place of the named
	// parameters. It neither caches nor modifies the layer's parameters.
	ForwardWith(overrides map[string]*tensor.Tensor, x *tensor.Tensor) (*tensor.Tensor, error)

	// Params returns the parameters in a stable order; nil before the first
	// Forward and for layers without parameters.
	Params() []*Param

	// ClearGradients empties the cache and zeroes every gradient.
	ClearGradients()

	// Clone returns an independent copy with the same parameter values,
	// an empty cache and zero gradients.
	Clone() Layer
}

// Param is a named learned tensor together with its gradient.
// Grad always has the shape of Value.
type Param struct {
	Name  string
	Value *tensor.Tensor
	Grad  *tensor.Tensor
}

func newParam(name string, value *tensor.Tensor) *Param {
	return &Param{Name: name, Value: value, Grad: tensor.ZerosLike(value)}
}

func (p *Param) zeroGrad() {
	p.Grad = tensor.ZerosLike(p.Value)
}

func (p *Param) clone() *Param {
	return newParam(p.Name, p.Value.Clone())
}

// FindParam returns the parameter of l with the given name.
func FindParam(l Layer, name string) (*Param, bool) {
	for _, p := range l.Params() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// ForwardWithFixedInput returns a function mapping a candidate value of the
// named parameter to the layer output for the fixed input x. The layer's own
// parameters are left untouched, so calls can be made in any order.
func ForwardWithFixedInput(l Layer, name string, x *tensor.Tensor) func(*tensor.Tensor) (*tensor.Tensor, error) {
	return func(value *tensor.Tensor) (*tensor.Tensor, error) {
		return l.ForwardWith(map[string]*tensor.Tensor{name: value}, x)
	}
}

// selectParams returns the values to use for params, substituting overrides.
// Unknown override names and override shapes that differ from the parameter
// are rejected.
func selectParams(overrides map[string]*tensor.Tensor, params ...*Param) ([]*tensor.Tensor, error) {
	values := make([]*tensor.Tensor, len(params))
	known := make(map[string]bool, len(params))
	for i, p := range params {
		known[p.Name] = true
		values[i] = p.Value
		v, ok := overrides[p.Name]
		if !ok {
			continue
		}
		if v == nil || !tensor.SameShape(v, p.Value) {
			return nil, nnerr.Shapef("override for %s must have shape %v", p.Name, p.Value.Shape())
		}
		values[i] = v
	}
	for name := range overrides {
		if !known[name] {
			return nil, nnerr.Configf("unknown parameter %q", name)
		}
	}
	return values, nil
}

// checkGrad validates an incoming gradient against the cached output shape.
func checkGrad(dLdY *tensor.Tensor, want tensor.Shape) error {
	if dLdY == nil || !dLdY.Shape().Equal(want) {
		got := tensor.Shape(nil)
		if dLdY != nil {
			got = dLdY.Shape()
		}
		return nnerr.Shapef("gradient shape %v does not match output shape %v", got, want)
	}
	return nil
}
