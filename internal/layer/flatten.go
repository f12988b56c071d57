package layer

import (
	"strings"

	"github.com/nnkit/layerkit/internal/nnerr"
	"github.com/nnkit/layerkit/internal/tensor"
)

// KeepDim selects which axis Flatten preserves.
type KeepDim int

const (
	// KeepFirst maps (d0, d1, ..., dk) to (d0, d1*...*dk).
	KeepFirst KeepDim = iota
	// KeepLast maps (d0, ..., dk-1, dk) to (d0*...*dk-1, dk).
	KeepLast
	// KeepAll maps any shape to (1, d0*...*dk).
	KeepAll
)

// ParseKeepDim parses "first", "last" or "all" ("-1" is an alias of "all").
// The empty string selects KeepFirst.
func ParseKeepDim(s string) (KeepDim, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return KeepFirst, nil
	case "last":
		return KeepLast, nil
	case "all", "-1":
		return KeepAll, nil
	}
	return 0, nnerr.Configf("unknown flatten keep_dim %q", s)
}

func (k KeepDim) String() string {
	switch k {
	case KeepFirst:
		return "first"
	case KeepLast:
		return "last"
	case KeepAll:
		return "all"
	}
	return "unknown"
}

// Flatten reshapes its input to 2D. Values keep their row-major order, so
// Backward is the exact inverse of Forward.
type Flatten struct {
	keep KeepDim

	cache flattenCache
}

type flattenCache struct {
	in    tensor.Shape
	valid bool
}

// NewFlatten creates a flatten layer.
func NewFlatten(keep KeepDim) (*Flatten, error) {
	if keep != KeepFirst && keep != KeepLast && keep != KeepAll {
		return nil, nnerr.Configf("flatten: unknown keep_dim %d", int(keep))
	}
	return &Flatten{keep: keep}, nil
}

// OutputShape returns the 2D shape an input of the given shape flattens to.
func (f *Flatten) OutputShape(in []int) (tensor.Shape, error) {
	if len(in) == 0 {
		return nil, nnerr.Shapef("flatten: scalar input")
	}
	shape := tensor.Shape(in)
	switch f.keep {
	case KeepFirst:
		return tensor.Shape{in[0], shape[1:].NumElements()}, nil
	case KeepLast:
		last := len(in) - 1
		return tensor.Shape{shape[:last].NumElements(), in[last]}, nil
	default:
		return tensor.Shape{1, shape.NumElements()}, nil
	}
}

func (f *Flatten) compute(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x == nil {
		return nil, nnerr.Shapef("flatten: nil input")
	}
	out, err := f.OutputShape(x.Shape())
	if err != nil {
		return nil, err
	}
	return x.Reshape(out...)
}

// Forward flattens x and caches its shape.
func (f *Flatten) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := f.compute(x)
	if err != nil {
		return nil, err
	}
	f.cache = flattenCache{in: x.Shape(), valid: true}
	return out, nil
}

// ForwardWith flattens x without caching. Any override name is rejected.
func (f *Flatten) ForwardWith(overrides map[string]*tensor.Tensor, x *tensor.Tensor) (*tensor.Tensor, error) {
	if _, err := selectParams(overrides); err != nil {
		return nil, err
	}
	return f.compute(x)
}

// Backward reshapes dL/dY back to the cached input shape.
func (f *Flatten) Backward(dLdY *tensor.Tensor) (*tensor.Tensor, error) {
	if !f.cache.valid {
		return nil, nnerr.Statef("flatten: backward called before forward")
	}
	out, err := f.OutputShape(f.cache.in)
	if err != nil {
		return nil, err
	}
	if err := checkGrad(dLdY, out); err != nil {
		return nil, err
	}
	return dLdY.Reshape(f.cache.in...)
}

// Params returns nil; Flatten has no parameters.
func (f *Flatten) Params() []*Param {
	return nil
}

// ClearGradients drops the cached shape.
func (f *Flatten) ClearGradients() {
	f.cache = flattenCache{}
}

// Clone returns a flatten layer with the same keep_dim.
func (f *Flatten) Clone() Layer {
	return &Flatten{keep: f.keep}
}

// Keep returns the preserved axis.
func (f *Flatten) Keep() KeepDim {
	return f.keep
}
