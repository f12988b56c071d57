package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nnkit/layerkit/internal/activations"
	"github.com/nnkit/layerkit/internal/nnerr"
	"github.com/nnkit/layerkit/internal/tensor"
)

func TestFullyConnectedForward(t *testing.T) {
	w := tensor.Must(tensor.New([]int{2, 3}, []float64{
		1, 2, 3,
		4, 5, 6,
	}))
	fc, err := NewFullyConnected(3, nil, fixedInit(w))
	require.NoError(t, err)

	x := tensor.Must(tensor.New([]int{2, 2}, []float64{
		1, 2,
		-1, 0,
	}))
	out, err := fc.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float64{9, 12, 15, -1, -2, -3}, out.Data())

	b, _ := FindParam(fc, "b")
	b.Value.Data()[2] = 1
	out, err = fc.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 12, 16, -1, -2, -2}, out.Data())
}

func TestFullyConnectedForwardActivation(t *testing.T) {
	w := tensor.Must(tensor.New([]int{2, 2}, []float64{1, -1, 1, -1}))
	fc, err := NewFullyConnected(2, activations.ReLU{}, fixedInit(w))
	require.NoError(t, err)

	out, err := fc.Forward(tensor.Must(tensor.New([]int{1, 2}, []float64{1, 2})))
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0}, out.Data())
}

func TestFullyConnectedBackward(t *testing.T) {
	w := tensor.Must(tensor.New([]int{2, 3}, []float64{
		1, 2, 3,
		4, 5, 6,
	}))
	fc, err := NewFullyConnected(3, nil, fixedInit(w))
	require.NoError(t, err)

	x := tensor.Must(tensor.New([]int{2, 2}, []float64{
		1, 2,
		3, 4,
	}))
	_, err = fc.Forward(x)
	require.NoError(t, err)

	g := tensor.Must(tensor.New([]int{2, 3}, []float64{
		1, 0, 0,
		0, 1, 1,
	}))
	dX, err := fc.Backward(g)
	require.NoError(t, err)

	// dX = dY·Wᵀ
	assert.Equal(t, []float64{1, 4, 5, 11}, dX.Data())

	wp, _ := FindParam(fc, "W")
	bp, _ := FindParam(fc, "b")
	// dW = Xᵀ·dY
	assert.Equal(t, []float64{1, 3, 3, 2, 4, 4}, wp.Grad.Data())
	// db = Σ_batch dY
	assert.Equal(t, tensor.Shape{1, 3}, bp.Grad.Shape())
	assert.Equal(t, []float64{1, 1, 1}, bp.Grad.Data())
}

func TestFullyConnectedEmptyBatch(t *testing.T) {
	fc, err := NewFullyConnected(3, activations.Tanh{}, seeded(1))
	require.NoError(t, err)

	out, err := fc.Forward(tensor.Zeros(0, 4))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{0, 3}, out.Shape())

	dX, err := fc.Backward(tensor.Zeros(0, 3))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{0, 4}, dX.Shape())
	wp, _ := FindParam(fc, "W")
	assert.Zero(t, tensor.Norm(wp.Grad))
}

func TestFullyConnectedShapeErrors(t *testing.T) {
	_, err := NewFullyConnected(0, nil, nil)
	assert.ErrorIs(t, err, nnerr.ErrConfiguration)

	fc, err := NewFullyConnected(3, nil, seeded(1))
	require.NoError(t, err)

	_, err = fc.Forward(tensor.Zeros(2, 3, 4))
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)
	assert.False(t, fc.Initialized())

	_, err = fc.Forward(tensor.Zeros(2, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, fc.InSize())
	assert.Equal(t, 3, fc.OutSize())

	_, err = fc.Forward(tensor.Zeros(2, 5))
	assert.ErrorIs(t, err, nnerr.ErrShapeMismatch)
}

func TestFullyConnectedLazyInitHappensOnce(t *testing.T) {
	calls := 0
	w := tensor.Full(0.5, 4, 2)
	counting := func(shape []int) *tensor.Tensor {
		calls++
		return w.Clone()
	}
	fc, err := NewFullyConnected(2, nil, counting)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = fc.Forward(randTensor(uint64(i), i+1, 4))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}
