package layerkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmallCNN(t *testing.T) {
	conv, err := Conv2D(4, Kernel{3, 3}, 1, Same(), Tanh, XavierUniform(1))
	require.NoError(t, err)
	pool, err := Pool2D(Kernel{2, 2}, 2, Valid(), MaxPool)
	require.NoError(t, err)
	flat, err := Flatten(KeepFirst)
	require.NoError(t, err)
	fc, err := FullyConnected(2, Sigmoid, HeNormal(2))
	require.NoError(t, err)

	x := RandUniform(3, -1, 1, 2, 6, 6, 1)
	out := x
	for _, l := range []Layer{conv, pool, flat, fc} {
		out, err = l.Forward(out)
		require.NoError(t, err)
	}
	assert.Equal(t, Shape{2, 2}, out.Shape())

	report, err := GradCheck(conv, x, GradCheckOptions{Seed: 1})
	require.NoError(t, err)
	assert.True(t, report.OK(), "max relative error %g", report.MaxRelError())
}

func TestNewUnsupported(t *testing.T) {
	_, err := New(Config{Name: "rnn"})
	assert.ErrorIs(t, err, ErrUnsupportedLayerType)
	assert.ErrorIs(t, err, ErrConfiguration)
}
