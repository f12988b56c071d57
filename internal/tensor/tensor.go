// Package tensor provides the dense N-dimensional float64 arrays consumed by
// the layer kernels.
//
// Tensors are stored row-major in a single contiguous slice. The shape of a
// tensor never changes after creation; operations return new tensors.
// Matrix products and slice reductions are delegated to gonum.
package tensor

import (
	"fmt"
	"strings"

	"github.com/nnkit/layerkit/internal/nnerr"
)

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements described by the shape.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Equal reports whether two shapes are identical.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Strides returns the row-major strides of the shape.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	stride := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= s[i]
	}
	return strides
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Tensor is a dense row-major array of float64 values.
type Tensor struct {
	shape Shape
	data  []float64
}

// New wraps data in a tensor of the given shape. The slice is not copied.
func New(shape []int, data []float64) (*Tensor, error) {
	s := Shape(shape).Clone()
	for i, d := range s {
		if d < 0 {
			return nil, nnerr.Shapef("negative dimension %d at axis %d", d, i)
		}
	}
	if s.NumElements() != len(data) {
		return nil, nnerr.Shapef("shape %v needs %d values, got %d", s, s.NumElements(), len(data))
	}
	return &Tensor{shape: s, data: data}, nil
}

// Must panics if err is non-nil and returns t otherwise.
func Must(t *Tensor, err error) *Tensor {
	if err != nil {
		panic(err)
	}
	return t
}

// Zeros returns a zero-filled tensor.
func Zeros(shape ...int) *Tensor {
	s := Shape(shape).Clone()
	return &Tensor{shape: s, data: make([]float64, s.NumElements())}
}

// Full returns a tensor with every element set to v.
func Full(v float64, shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// ZerosLike returns a zero-filled tensor with the shape of t.
func ZerosLike(t *Tensor) *Tensor {
	return Zeros(t.shape...)
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape.Clone()
}

// Dims returns the number of axes.
func (t *Tensor) Dims() int {
	return len(t.shape)
}

// Dim returns the length of axis i. Negative axes count from the end.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	return t.shape[i]
}

// Size returns the number of elements.
func (t *Tensor) Size() int {
	return len(t.data)
}

// Data returns the backing slice. Writes through it are visible in t.
func (t *Tensor) Data() []float64 {
	return t.data
}

// Clone returns a deep copy of t.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: t.shape.Clone(), data: data}
}

// HasShape reports whether t has exactly the given shape.
func (t *Tensor) HasShape(shape ...int) bool {
	return t.shape.Equal(shape)
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b *Tensor) bool {
	return a.shape.Equal(b.shape)
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: %d indices for %d axes", len(idx), len(t.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d of %v", v, i, t.shape))
		}
		off = off*t.shape[i] + v
	}
	return off
}

// At returns the element at the given indices.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set stores v at the given indices.
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

// Reshape returns a copy of t with a new shape. One axis may be -1, in which
// case its length is inferred from the element count.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	s := Shape(shape).Clone()
	infer := -1
	known := 1
	for i, d := range s {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, nnerr.Shapef("reshape %v: more than one inferred axis", s)
			}
			infer = i
		case d < 0:
			return nil, nnerr.Shapef("reshape %v: negative dimension", s)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || len(t.data)%known != 0 {
			return nil, nnerr.Shapef("cannot reshape %v into %v", t.shape, s)
		}
		s[infer] = len(t.data) / known
	}
	if s.NumElements() != len(t.data) {
		return nil, nnerr.Shapef("cannot reshape %v into %v", t.shape, s)
	}
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return &Tensor{shape: s, data: data}, nil
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
