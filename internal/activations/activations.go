// Package activations provides the activation functions applied by layers
// after their affine or convolutional step.
package activations

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/nnkit/layerkit/internal/nnerr"
	"github.com/nnkit/layerkit/internal/tensor"
)

// Activation is a shape-preserving nonlinearity.
type Activation interface {
	// Forward computes A = f(Z).
	Forward(z *tensor.Tensor) *tensor.Tensor

	// Backward computes dL/dZ from Z and dL/dA (chain rule through f).
	Backward(z, dA *tensor.Tensor) (*tensor.Tensor, error)
}

// Elementwise is a scalar function with its derivative.
type Elementwise interface {
	Activate(x float64) float64
	Derivative(x float64) float64
}

func forward(f Elementwise, z *tensor.Tensor) *tensor.Tensor {
	return tensor.Map(z, f.Activate)
}

func backward(f Elementwise, z, dA *tensor.Tensor) (*tensor.Tensor, error) {
	if !tensor.SameShape(z, dA) {
		return nil, nnerr.Shapef("activation gradient %v for input %v", dA.Shape(), z.Shape())
	}
	return tensor.MulElem(tensor.Map(z, f.Derivative), dA)
}

// Linear is the identity activation.
type Linear struct{}

func (Linear) Activate(x float64) float64   { return x }
func (Linear) Derivative(x float64) float64 { return 1 }

func (l Linear) Forward(z *tensor.Tensor) *tensor.Tensor { return z.Clone() }

func (l Linear) Backward(z, dA *tensor.Tensor) (*tensor.Tensor, error) {
	if !tensor.SameShape(z, dA) {
		return nil, nnerr.Shapef("activation gradient %v for input %v", dA.Shape(), z.Shape())
	}
	return dA.Clone(), nil
}

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if x > 0, else 0
func (ReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func (r ReLU) Forward(z *tensor.Tensor) *tensor.Tensor { return forward(r, z) }

func (r ReLU) Backward(z, dA *tensor.Tensor) (*tensor.Tensor, error) { return backward(r, z, dA) }

// LeakyReLU activation function to prevent dying neurons.
type LeakyReLU struct {
	Alpha float64 // Slope for x <= 0
}

// NewLeakyReLU creates a LeakyReLU with the given alpha value.
func NewLeakyReLU(alpha float64) *LeakyReLU {
	return &LeakyReLU{Alpha: alpha}
}

// Activate computes x if x > 0, else alpha*x
func (l *LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.Alpha * x
}

// Derivative returns 1 if x > 0, else alpha
func (l *LeakyReLU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return l.Alpha
}

func (l *LeakyReLU) Forward(z *tensor.Tensor) *tensor.Tensor { return forward(l, z) }

func (l *LeakyReLU) Backward(z, dA *tensor.Tensor) (*tensor.Tensor, error) {
	return backward(l, z, dA)
}

// ELU activation function.
type ELU struct {
	Alpha float64
}

// NewELU creates an ELU with the given alpha value.
func NewELU(alpha float64) *ELU {
	return &ELU{Alpha: alpha}
}

// Activate computes x if x > 0, else alpha*(exp(x)-1)
func (e *ELU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return e.Alpha * (math.Exp(x) - 1)
}

// Derivative returns 1 if x > 0, else alpha*exp(x)
func (e *ELU) Derivative(x float64) float64 {
	if x > 0 {
		return 1
	}
	return e.Alpha * math.Exp(x)
}

func (e *ELU) Forward(z *tensor.Tensor) *tensor.Tensor { return forward(e, z) }

func (e *ELU) Backward(z, dA *tensor.Tensor) (*tensor.Tensor, error) { return backward(e, z, dA) }

// Sigmoid activation function.
type Sigmoid struct{}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Activate computes sigmoid(x)
func (Sigmoid) Activate(x float64) float64 {
	return sigmoid(x)
}

// Derivative computes sigmoid(x) * (1 - sigmoid(x))
func (Sigmoid) Derivative(x float64) float64 {
	sigma := sigmoid(x)
	return sigma * (1 - sigma)
}

func (s Sigmoid) Forward(z *tensor.Tensor) *tensor.Tensor { return forward(s, z) }

func (s Sigmoid) Backward(z, dA *tensor.Tensor) (*tensor.Tensor, error) { return backward(s, z, dA) }

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - tanh(x)^2
func (Tanh) Derivative(x float64) float64 {
	tanhX := math.Tanh(x)
	return 1 - tanhX*tanhX
}

func (t Tanh) Forward(z *tensor.Tensor) *tensor.Tensor { return forward(t, z) }

func (t Tanh) Backward(z, dA *tensor.Tensor) (*tensor.Tensor, error) { return backward(t, z, dA) }

// Softmax normalizes over the last axis. It is not elementwise, so Backward
// applies the full Jacobian of each row: dZ = s ⊙ (dA − ⟨dA, s⟩).
type Softmax struct{}

func (Softmax) Forward(z *tensor.Tensor) *tensor.Tensor {
	out := z.Clone()
	if z.Dims() == 0 || z.Size() == 0 {
		return out
	}
	n := z.Dim(-1)
	data := out.Data()
	for start := 0; start < len(data); start += n {
		row := data[start : start+n]
		// Subtract the max for numerical stability.
		maxVal := floats.Max(row)
		for i := range row {
			row[i] = math.Exp(row[i] - maxVal)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return out
}

func (s Softmax) Backward(z, dA *tensor.Tensor) (*tensor.Tensor, error) {
	if !tensor.SameShape(z, dA) {
		return nil, nnerr.Shapef("activation gradient %v for input %v", dA.Shape(), z.Shape())
	}
	sm := s.Forward(z)
	dZ := tensor.ZerosLike(z)
	if z.Dims() == 0 || z.Size() == 0 {
		return dZ, nil
	}
	n := z.Dim(-1)
	sd, gd, out := sm.Data(), dA.Data(), dZ.Data()
	for start := 0; start < len(sd); start += n {
		srow, grow, orow := sd[start:start+n], gd[start:start+n], out[start:start+n]
		inner := floats.Dot(srow, grow)
		for i := range orow {
			orow[i] = srow[i] * (grow[i] - inner)
		}
	}
	return dZ, nil
}

// New resolves an activation by name. The empty name selects Linear.
func New(name string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear", "identity":
		return Linear{}, nil
	case "relu":
		return ReLU{}, nil
	case "leaky_relu", "leakyrelu":
		return NewLeakyReLU(0.01), nil
	case "elu":
		return NewELU(1), nil
	case "sigmoid":
		return Sigmoid{}, nil
	case "tanh":
		return Tanh{}, nil
	case "softmax":
		return Softmax{}, nil
	default:
		return nil, nnerr.Configf("unknown activation %q", name)
	}
}

// Name returns the registry name of a built-in activation, or "" for
// activations defined elsewhere.
func Name(a Activation) string {
	switch a.(type) {
	case Linear:
		return "linear"
	case ReLU:
		return "relu"
	case *LeakyReLU:
		return "leaky_relu"
	case *ELU:
		return "elu"
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case Softmax:
		return "softmax"
	default:
		return ""
	}
}
