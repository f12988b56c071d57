package tensor

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnkit/layerkit/internal/nnerr"
)

func TestNewRejectsWrongLength(t *testing.T) {
	_, err := New([]int{2, 3}, make([]float64, 5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, nnerr.ErrShapeMismatch))

	_, err = New([]int{-1, 3}, nil)
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)
}

func TestShapeIsCopied(t *testing.T) {
	shape := []int{2, 3}
	x := Zeros(shape...)
	shape[0] = 7
	assert.Equal(t, Shape{2, 3}, x.Shape())

	s := x.Shape()
	s[1] = 9
	assert.True(t, x.HasShape(2, 3))
}

func TestAtSetRowMajor(t *testing.T) {
	x := Must(New([]int{2, 2, 3}, []float64{
		0, 1, 2, 3, 4, 5,
		6, 7, 8, 9, 10, 11,
	}))
	assert.Equal(t, 5.0, x.At(0, 1, 2))
	assert.Equal(t, 9.0, x.At(1, 1, 0))

	x.Set(-1, 1, 0, 2)
	assert.Equal(t, -1.0, x.Data()[8])
	assert.Equal(t, []int{6, 3, 1}, x.shape.Strides())
}

func TestReshape(t *testing.T) {
	x := Must(New([]int{2, 3, 4}, make([]float64, 24)))

	tests := []struct {
		name  string
		shape []int
		want  Shape
	}{
		{"explicit", []int{6, 4}, Shape{6, 4}},
		{"infer first", []int{-1, 4}, Shape{6, 4}},
		{"infer last", []int{2, -1}, Shape{2, 12}},
		{"flat", []int{1, -1}, Shape{1, 24}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			y, err := x.Reshape(tt.shape...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, y.Shape())
		})
	}

	_, err := x.Reshape(5, -1)
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)
	_, err = x.Reshape(-1, -1)
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)
	_, err = x.Reshape(4, 4)
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)
}

func TestReshapeDoesNotAlias(t *testing.T) {
	x := Must(New([]int{2, 2}, []float64{1, 2, 3, 4}))
	y, err := x.Reshape(4)
	require.NoError(t, err)
	y.Data()[0] = 42
	assert.Equal(t, 1.0, x.At(0, 0))
}

func TestMatMul(t *testing.T) {
	a := Must(New([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6}))
	b := Must(New([]int{3, 2}, []float64{7, 8, 9, 10, 11, 12}))

	c, err := MatMul(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{58, 64, 139, 154}, c.Data())

	// aᵀ·a is (3, 3)
	ata, err := MatMulTransA(a, a)
	require.NoError(t, err)
	assert.True(t, ata.HasShape(3, 3))
	assert.Equal(t, []float64{17, 22, 27, 22, 29, 36, 27, 36, 45}, ata.Data())

	// a·aᵀ is (2, 2)
	aat, err := MatMulTransB(a, a)
	require.NoError(t, err)
	assert.Equal(t, []float64{14, 32, 32, 77}, aat.Data())

	_, err = MatMul(a, a)
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)
}

func TestMatMulEmptyBatch(t *testing.T) {
	c, err := MatMul(Zeros(0, 3), Zeros(3, 2))
	require.NoError(t, err)
	assert.True(t, c.HasShape(0, 2))
}

func TestTranspose(t *testing.T) {
	a := Must(New([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6}))
	at, err := Transpose(a)
	require.NoError(t, err)
	assert.True(t, at.HasShape(3, 2))
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, at.Data())
}

func TestAddRowAndSumRows(t *testing.T) {
	a := Must(New([]int{2, 3}, []float64{1, 2, 3, 4, 5, 6}))
	row := Must(New([]int{1, 3}, []float64{10, 20, 30}))

	sum, err := AddRow(a, row)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33, 14, 25, 36}, sum.Data())
	assert.Equal(t, 1.0, a.At(0, 0), "input must not change")

	cols, err := SumRows(a)
	require.NoError(t, err)
	assert.True(t, cols.HasShape(1, 3))
	assert.Equal(t, []float64{5, 7, 9}, cols.Data())

	_, err = AddRow(a, Zeros(1, 2))
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)
}

func TestElementwise(t *testing.T) {
	a := Must(New([]int{3}, []float64{1, 2, 3}))
	b := Must(New([]int{3}, []float64{4, 5, 6}))

	p, err := MulElem(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 10, 18}, p.Data())

	d, err := Sub(b, a)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 3, 3}, d.Data())

	dot, err := Dot(a, b)
	require.NoError(t, err)
	assert.Equal(t, 32.0, dot)

	assert.Equal(t, 6.0, Sum(a))
	assert.Equal(t, []float64{2, 4, 6}, Scale(2, a).Data())
	assert.Equal(t, []float64{1, 4, 9}, Map(a, func(v float64) float64 { return v * v }).Data())

	_, err = MulElem(a, Zeros(2))
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)
}

func TestPadCropRoundTrip(t *testing.T) {
	x := RandUniform(rand.NewPCG(1, 2), -1, 1, 2, 3, 4, 2)

	p, err := Pad2D(x, 1, 2)
	require.NoError(t, err)
	assert.True(t, p.HasShape(2, 5, 8, 2))
	assert.Equal(t, 0.0, p.At(0, 0, 0, 0))
	assert.Equal(t, x.At(1, 0, 0, 1), p.At(1, 1, 2, 1))
	assert.Equal(t, x.At(1, 2, 3, 0), p.At(1, 3, 5, 0))
	assert.InDelta(t, Sum(x), Sum(p), 1e-12)

	c, err := Crop2D(p, 1, 2, 3, 4)
	require.NoError(t, err)
	assert.True(t, Equal(x, c))
}

func TestPadErrors(t *testing.T) {
	_, err := Pad2D(Zeros(2, 3), 1, 1)
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)

	_, err = Pad2D(Zeros(1, 2, 2, 1), -1, 0)
	assert.ErrorIs(t, err, nnerr.ErrConfiguration)

	_, err = Crop2D(Zeros(1, 2, 2, 1), 1, 1, 2, 2)
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)
}

func TestRandomIsSeeded(t *testing.T) {
	a := RandNormal(rand.NewPCG(7, 7), 0, 1, 4, 4)
	b := RandNormal(rand.NewPCG(7, 7), 0, 1, 4, 4)
	assert.True(t, Equal(a, b))

	u := RandUniform(rand.NewPCG(3, 4), -0.5, 0.5, 100)
	for _, v := range u.Data() {
		assert.GreaterOrEqual(t, v, -0.5)
		assert.Less(t, v, 0.5)
	}
}
