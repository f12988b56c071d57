// Package layerkit is the public entry point to the layer toolkit: tensors,
// the four layer kinds, activations, initializers and the gradient checker.
package layerkit

import (
	"io"
	"math/rand/v2"

	"github.com/nnkit/layerkit/internal/activations"
	"github.com/nnkit/layerkit/internal/gradcheck"
	"github.com/nnkit/layerkit/internal/layer"
	"github.com/nnkit/layerkit/internal/nnerr"
	"github.com/nnkit/layerkit/internal/parallel"
	"github.com/nnkit/layerkit/internal/tensor"
	"github.com/nnkit/layerkit/internal/weights"
)

// Re-export common types for easier access
type (
	Tensor      = tensor.Tensor
	Shape       = tensor.Shape
	Layer       = layer.Layer
	Param       = layer.Param
	Config      = layer.Config
	Kernel      = layer.Kernel
	Padding     = layer.Padding
	PoolMode    = layer.PoolMode
	KeepDim     = layer.KeepDim
	Activation  = activations.Activation
	Initializer = weights.Initializer
	Parallelism = parallel.Config

	FullyConnectedLayer = layer.FullyConnected
	Conv2DLayer         = layer.Conv2D
	Pool2DLayer         = layer.Pool2D
	FlattenLayer        = layer.Flatten

	GradCheckOptions = gradcheck.Options
	GradCheckReport  = gradcheck.Report
)

// Errors
var (
	ErrConfiguration        = nnerr.ErrConfiguration
	ErrUnsupportedLayerType = nnerr.ErrUnsupportedLayerType
	ErrShapeMismatch        = nnerr.ErrShapeMismatch
	ErrState                = nnerr.ErrState
)

// Tensors
func NewTensor(shape []int, data []float64) (*Tensor, error) {
	return tensor.New(shape, data)
}

func Zeros(shape ...int) *Tensor {
	return tensor.Zeros(shape...)
}

func RandUniform(seed uint64, lo, hi float64, shape ...int) *Tensor {
	return tensor.RandUniform(rand.NewPCG(seed, seed), lo, hi, shape...)
}

// Activations
var (
	Linear  = activations.Linear{}
	ReLU    = activations.ReLU{}
	Sigmoid = activations.Sigmoid{}
	Tanh    = activations.Tanh{}
	Softmax = activations.Softmax{}
)

func LeakyReLU(alpha float64) Activation {
	return activations.NewLeakyReLU(alpha)
}

func ELU(alpha float64) Activation {
	return activations.NewELU(alpha)
}

// Initializers
func XavierUniform(seed uint64) Initializer {
	return weights.XavierUniform(rand.NewPCG(seed, seed))
}

func HeNormal(seed uint64) Initializer {
	return weights.HeNormal(rand.NewPCG(seed, seed))
}

// Geometry
const (
	MaxPool = layer.MaxPool
	AvgPool = layer.AvgPool

	KeepFirst = layer.KeepFirst
	KeepLast  = layer.KeepLast
	KeepAll   = layer.KeepAll
)

func Same() Padding { return layer.Same() }
func Valid() Padding { return layer.Valid() }
func Explicit(h, w int) Padding { return layer.Explicit(h, w) }

// Layers
func FullyConnected(nOut int, act Activation, wi Initializer) (*FullyConnectedLayer, error) {
	return layer.NewFullyConnected(nOut, act, wi)
}

func Conv2D(nOut int, kernel Kernel, stride int, pad Padding, act Activation, wi Initializer) (*Conv2DLayer, error) {
	return layer.NewConv2D(nOut, kernel, stride, pad, act, wi)
}

func Pool2D(kernel Kernel, stride int, pad Padding, mode PoolMode) (*Pool2DLayer, error) {
	return layer.NewPool2D(kernel, stride, pad, mode)
}

func Flatten(keep KeepDim) (*FlattenLayer, error) {
	return layer.NewFlatten(keep)
}

// Factory
func New(cfg Config) (Layer, error) {
	return layer.New(cfg)
}

func LoadConfigs(r io.Reader) ([]Config, error) {
	return layer.LoadConfigs(r)
}

func Build(cfgs []Config) ([]Layer, error) {
	return layer.Build(cfgs)
}

func ForwardWithFixedInput(l Layer, name string, x *Tensor) func(*Tensor) (*Tensor, error) {
	return layer.ForwardWithFixedInput(l, name, x)
}

// Gradient checking
func GradCheck(l Layer, x *Tensor, opts GradCheckOptions) (*GradCheckReport, error) {
	return gradcheck.Check(l, x, opts)
}
