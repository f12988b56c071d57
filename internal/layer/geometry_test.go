package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nnkit/layerkit/internal/nnerr"
)

func TestParsePadding(t *testing.T) {
	tests := []struct {
		in      string
		want    Padding
		wantErr bool
	}{
		{"", Padding{}, false},
		{"same", Same(), false},
		{" Valid ", Valid(), false},
		{"2", Explicit(2, 2), false},
		{"1,2", Explicit(1, 2), false},
		{"(1, 2)", Explicit(1, 2), false},
		{"[0,3]", Explicit(0, 3), false},
		{"-1", Padding{}, true},
		{"1,2,3", Padding{}, true},
		{"full", Padding{}, true},
	}
	for _, tt := range tests {
		got, err := ParsePadding(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, nnerr.ErrConfiguration, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestPaddingResolve(t *testing.T) {
	tests := []struct {
		pad    Padding
		kernel Kernel
		ph, pw int
	}{
		{Same(), Kernel{3, 3}, 1, 1},
		{Same(), Kernel{5, 2}, 2, 0},
		{Same(), Kernel{4, 4}, 1, 1},
		{Valid(), Kernel{3, 3}, 0, 0},
		{Explicit(2, 1), Kernel{3, 3}, 2, 1},
	}
	for _, tt := range tests {
		ph, pw, err := tt.pad.Resolve(tt.kernel)
		require.NoError(t, err)
		assert.Equal(t, tt.ph, ph, "%s %v", tt.pad, tt.kernel)
		assert.Equal(t, tt.pw, pw, "%s %v", tt.pad, tt.kernel)
	}

	_, _, err := Padding{}.Resolve(Kernel{3, 3})
	assert.ErrorIs(t, err, nnerr.ErrConfiguration)
	_, _, err = Explicit(-1, 0).Resolve(Kernel{3, 3})
	assert.ErrorIs(t, err, nnerr.ErrConfiguration)
}

func TestPaddingString(t *testing.T) {
	for _, p := range []Padding{Same(), Valid(), Explicit(1, 2)} {
		parsed, err := ParsePadding(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
}

func TestWindowOutputSize(t *testing.T) {
	g, err := newWindow(Kernel{3, 3}, 2, Explicit(1, 1))
	require.NoError(t, err)

	h, w, err := g.outputSize(5, 7)
	require.NoError(t, err)
	assert.Equal(t, 3, h)
	assert.Equal(t, 4, w)

	_, _, err = g.outputSize(6, 7)
	assert.ErrorIs(t, err, nnerr.ErrConfiguration)
	_, _, err = g.outputSize(0, 7)
	assert.ErrorIs(t, err, nnerr.ErrConfiguration)
}

func TestYAMLGeometry(t *testing.T) {
	var v struct {
		Kernel Kernel  `yaml:"kernel_shape"`
		Pad    Padding `yaml:"pad"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("kernel_shape: 3\npad: same\n"), &v))
	assert.Equal(t, Kernel{3, 3}, v.Kernel)
	assert.Equal(t, Same(), v.Pad)

	require.NoError(t, yaml.Unmarshal([]byte("kernel_shape: [2, 4]\npad: [1, 0]\n"), &v))
	assert.Equal(t, Kernel{2, 4}, v.Kernel)
	assert.Equal(t, Explicit(1, 0), v.Pad)

	require.NoError(t, yaml.Unmarshal([]byte("pad: 2\n"), &v))
	assert.Equal(t, Explicit(2, 2), v.Pad)

	err := yaml.Unmarshal([]byte("kernel_shape: [1, 2, 3]\n"), &v)
	assert.ErrorIs(t, err, nnerr.ErrConfiguration)
	err = yaml.Unmarshal([]byte("pad: wide\n"), &v)
	assert.ErrorIs(t, err, nnerr.ErrConfiguration)

	out, err := yaml.Marshal(struct {
		Pad Padding `yaml:"pad"`
	}{Explicit(1, 2)})
	require.NoError(t, err)
	assert.Equal(t, "pad: 1,2\n", string(out))
}
