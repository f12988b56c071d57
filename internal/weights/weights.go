// Package weights provides weight initialization schemes.
//
// An Initializer maps a parameter shape to a freshly sampled tensor of that
// exact shape. Layers call their initializer once, on the first forward
// pass, when the input feature count becomes known.
package weights

import (
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nnkit/layerkit/internal/nnerr"
	"github.com/nnkit/layerkit/internal/tensor"
)

// Initializer returns an initial tensor for the given shape.
type Initializer func(shape []int) *tensor.Tensor

// Fans returns the fan-in and fan-out of a weight shape.
//
// 2-D shapes are (in, out). 4-D convolution kernels are
// (kernel_h, kernel_w, in_channels, out_channels), whose fans are scaled by
// the receptive field kernel_h·kernel_w. A shape with an empty dimension can
// have a zero fan.
func Fans(shape []int) (fanIn, fanOut int) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return shape[0], shape[0]
	case 2:
		return shape[0], shape[1]
	case 4:
		rf := shape[0] * shape[1]
		return shape[2] * rf, shape[3] * rf
	default:
		rf := 1
		for _, d := range shape[:len(shape)-2] {
			rf *= d
		}
		return shape[len(shape)-2] * rf, shape[len(shape)-1] * rf
	}
}

// Zeros initializes every weight to zero.
func Zeros(shape []int) *tensor.Tensor {
	return tensor.Zeros(shape...)
}

// Ones initializes every weight to one.
func Ones(shape []int) *tensor.Tensor {
	return tensor.Full(1, shape...)
}

// Uniform samples U(lo, hi).
func Uniform(lo, hi float64, src rand.Source) Initializer {
	return func(shape []int) *tensor.Tensor {
		return tensor.Sample(distuv.Uniform{Min: lo, Max: hi, Src: src}, shape...)
	}
}

// Normal samples N(0, std²).
func Normal(std float64, src rand.Source) Initializer {
	return func(shape []int) *tensor.Tensor {
		return tensor.Sample(distuv.Normal{Mu: 0, Sigma: std, Src: src}, shape...)
	}
}

// scale returns sqrt(num / fan), with a zero fan counted as one.
func scale(num float64, fan int) float64 {
	return math.Sqrt(num / float64(max(fan, 1)))
}

// XavierUniform samples U(-a, a) with a = sqrt(6 / (fan_in + fan_out)).
func XavierUniform(src rand.Source) Initializer {
	return func(shape []int) *tensor.Tensor {
		fanIn, fanOut := Fans(shape)
		bound := scale(6, fanIn+fanOut)
		return Uniform(-bound, bound, src)(shape)
	}
}

// XavierNormal samples N(0, 2 / (fan_in + fan_out)).
func XavierNormal(src rand.Source) Initializer {
	return func(shape []int) *tensor.Tensor {
		fanIn, fanOut := Fans(shape)
		return Normal(scale(2, fanIn+fanOut), src)(shape)
	}
}

// HeUniform samples U(-a, a) with a = sqrt(6 / fan_in).
func HeUniform(src rand.Source) Initializer {
	return func(shape []int) *tensor.Tensor {
		fanIn, _ := Fans(shape)
		bound := scale(6, fanIn)
		return Uniform(-bound, bound, src)(shape)
	}
}

// HeNormal samples N(0, 2 / fan_in).
func HeNormal(src rand.Source) Initializer {
	return func(shape []int) *tensor.Tensor {
		fanIn, _ := Fans(shape)
		return Normal(scale(2, fanIn), src)(shape)
	}
}

// New resolves an initializer by name. The empty name selects xavier_uniform.
// A nil src draws from the global generator.
func New(name string, src rand.Source) (Initializer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "xavier_uniform", "glorot_uniform":
		return XavierUniform(src), nil
	case "xavier_normal", "glorot_normal":
		return XavierNormal(src), nil
	case "he_uniform", "kaiming_uniform":
		return HeUniform(src), nil
	case "he_normal", "kaiming_normal":
		return HeNormal(src), nil
	case "uniform":
		return Uniform(-0.05, 0.05, src), nil
	case "normal":
		return Normal(0.01, src), nil
	case "zeros":
		return Zeros, nil
	case "ones":
		return Ones, nil
	default:
		return nil, nnerr.Configf("unknown weight initializer %q", name)
	}
}
