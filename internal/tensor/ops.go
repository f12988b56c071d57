package tensor

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/nnkit/layerkit/internal/nnerr"
)

// MatMul returns a·b for 2-D tensors.
func MatMul(a, b *Tensor) (*Tensor, error) {
	return matMul(a, b, false, false)
}

// MatMulTransA returns aᵀ·b for 2-D tensors.
func MatMulTransA(a, b *Tensor) (*Tensor, error) {
	return matMul(a, b, true, false)
}

// MatMulTransB returns a·bᵀ for 2-D tensors.
func MatMulTransB(a, b *Tensor) (*Tensor, error) {
	return matMul(a, b, false, true)
}

func matMul(a, b *Tensor, transA, transB bool) (*Tensor, error) {
	if a.Dims() != 2 || b.Dims() != 2 {
		return nil, nnerr.Shapef("matmul needs 2-D operands, got %v and %v", a.shape, b.shape)
	}
	m, k := a.shape[0], a.shape[1]
	if transA {
		m, k = k, m
	}
	k2, n := b.shape[0], b.shape[1]
	if transB {
		k2, n = n, k2
	}
	if k != k2 {
		return nil, nnerr.Shapef("matmul inner dimensions differ: %v and %v", a.shape, b.shape)
	}

	out := Zeros(m, n)
	// gonum rejects zero-length dimensions; the product is all zeros anyway.
	if m == 0 || n == 0 || k == 0 {
		return out, nil
	}

	var am, bm mat.Matrix = asDense(a), asDense(b)
	if transA {
		am = am.T()
	}
	if transB {
		bm = bm.T()
	}
	mat.NewDense(m, n, out.data).Mul(am, bm)
	return out, nil
}

func asDense(t *Tensor) *mat.Dense {
	return mat.NewDense(t.shape[0], t.shape[1], t.data)
}

// Transpose returns the transpose of a 2-D tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if t.Dims() != 2 {
		return nil, nnerr.Shapef("transpose needs a 2-D tensor, got %v", t.shape)
	}
	out := Zeros(t.shape[1], t.shape[0])
	if out.Size() == 0 {
		return out, nil
	}
	mat.NewDense(t.shape[1], t.shape[0], out.data).Copy(asDense(t).T())
	return out, nil
}

// AddRow adds a (1, n) row to every row of a (m, n) tensor.
func AddRow(t, row *Tensor) (*Tensor, error) {
	if t.Dims() != 2 || !row.HasShape(1, t.Dim(1)) {
		return nil, nnerr.Shapef("cannot broadcast %v over %v", row.shape, t.shape)
	}
	out := t.Clone()
	n := t.shape[1]
	for r := 0; r < t.shape[0]; r++ {
		floats.Add(out.data[r*n:(r+1)*n], row.data)
	}
	return out, nil
}

// SumRows returns the (1, n) column sums of a (m, n) tensor.
func SumRows(t *Tensor) (*Tensor, error) {
	if t.Dims() != 2 {
		return nil, nnerr.Shapef("sum over rows needs a 2-D tensor, got %v", t.shape)
	}
	n := t.shape[1]
	out := Zeros(1, n)
	for r := 0; r < t.shape[0]; r++ {
		floats.Add(out.data, t.data[r*n:(r+1)*n])
	}
	return out, nil
}

// Map returns a new tensor with fn applied to every element.
func Map(t *Tensor, fn func(float64) float64) *Tensor {
	out := ZerosLike(t)
	for i, v := range t.data {
		out.data[i] = fn(v)
	}
	return out
}

// MulElem returns the elementwise product of a and b.
func MulElem(a, b *Tensor) (*Tensor, error) {
	if !SameShape(a, b) {
		return nil, nnerr.Shapef("elementwise product of %v and %v", a.shape, b.shape)
	}
	out := ZerosLike(a)
	floats.MulTo(out.data, a.data, b.data)
	return out, nil
}

// Sub returns a - b.
func Sub(a, b *Tensor) (*Tensor, error) {
	if !SameShape(a, b) {
		return nil, nnerr.Shapef("difference of %v and %v", a.shape, b.shape)
	}
	out := ZerosLike(a)
	floats.SubTo(out.data, a.data, b.data)
	return out, nil
}

// Scale returns c·t.
func Scale(c float64, t *Tensor) *Tensor {
	out := ZerosLike(t)
	floats.ScaleTo(out.data, c, t.data)
	return out
}

// Sum returns the sum of all elements.
func Sum(t *Tensor) float64 {
	return floats.Sum(t.data)
}

// Dot returns the sum of the elementwise product of a and b.
func Dot(a, b *Tensor) (float64, error) {
	if !SameShape(a, b) {
		return 0, nnerr.Shapef("dot product of %v and %v", a.shape, b.shape)
	}
	return floats.Dot(a.data, b.data), nil
}

// Norm returns the L2 norm of all elements.
func Norm(t *Tensor) float64 {
	return floats.Norm(t.data, 2)
}

// Equal reports whether a and b have the same shape and identical elements.
func Equal(a, b *Tensor) bool {
	return SameShape(a, b) && floats.Equal(a.data, b.data)
}

// EqualApprox reports whether a and b have the same shape and every pair of
// elements is within tol (absolute or relative).
func EqualApprox(a, b *Tensor, tol float64) bool {
	return SameShape(a, b) && floats.EqualApprox(a.data, b.data, tol)
}
