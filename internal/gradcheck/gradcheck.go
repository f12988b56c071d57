// Package gradcheck compares the gradients a layer computes in Backward
// against centered finite differences of its forward pass.
package gradcheck

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"

	"github.com/nnkit/layerkit/internal/layer"
	"github.com/nnkit/layerkit/internal/tensor"
)

// InputTarget names the input in a Report.
const InputTarget = "X"

// DefaultTolerance is the relative error below which a check passes.
const DefaultTolerance = 1e-5

const tiny = 1e-12

// Options configures Check.
type Options struct {
	// Step is the finite-difference step. Zero uses the default step of
	// the central formula.
	Step float64
	// Tolerance is the maximal accepted relative error. Zero means
	// DefaultTolerance.
	Tolerance float64
	// Seed drives the upstream gradient. The same seed gives the same check.
	Seed uint64
}

// Result is the comparison for one target (the input or a parameter).
type Result struct {
	Target   string
	Analytic []float64
	Numeric  []float64
	RelError float64
}

// Report collects the results of a check in target order: the input first,
// then the parameters as returned by Params.
type Report struct {
	Results   []Result
	Tolerance float64
}

// MaxRelError returns the largest relative error of the report.
func (r *Report) MaxRelError() float64 {
	m := 0.0
	for _, res := range r.Results {
		m = math.Max(m, res.RelError)
	}
	return m
}

// OK reports whether every target is within tolerance.
func (r *Report) OK() bool {
	return r.MaxRelError() <= r.Tolerance
}

// Failures returns the targets whose relative error exceeds the tolerance.
func (r *Report) Failures() []string {
	var names []string
	for _, res := range r.Results {
		if res.RelError > r.Tolerance {
			names = append(names, res.Target)
		}
	}
	return names
}

// RelError returns ‖a − n‖ / max(‖a‖ + ‖n‖, tiny).
func RelError(a, n []float64) float64 {
	denom := math.Max(floats.Norm(a, 2)+floats.Norm(n, 2), tiny)
	return floats.Distance(a, n, 2) / denom
}

// Check runs Forward on x, feeds a random upstream gradient G into Backward
// and compares the resulting dX and parameter gradients against numerical
// derivatives of Σ(ForwardWith(·) ⊙ G).
//
// Check leaves the parameter gradients of l set by its Backward call.
func Check(l layer.Layer, x *tensor.Tensor, opts Options) (*Report, error) {
	tol := opts.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	settings := &fd.Settings{Formula: fd.Central, Step: opts.Step}

	out, err := l.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("gradcheck: forward: %w", err)
	}
	src := rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)
	g := tensor.RandUniform(src, -1, 1, out.Shape()...)

	dX, err := l.Backward(g)
	if err != nil {
		return nil, fmt.Errorf("gradcheck: backward: %w", err)
	}

	report := &Report{Tolerance: tol}

	objective := func(overrides map[string]*tensor.Tensor, in *tensor.Tensor) (float64, error) {
		y, err := l.ForwardWith(overrides, in)
		if err != nil {
			return 0, err
		}
		return floats.Dot(y.Data(), g.Data()), nil
	}

	// fd.Gradient takes a plain func; the first error is kept and reported
	// after the estimate.
	estimate := func(at *tensor.Tensor, eval func(*tensor.Tensor) (float64, error)) ([]float64, error) {
		var firstErr error
		f := func(v []float64) float64 {
			t, err := tensor.New(at.Shape(), v)
			if err == nil {
				var val float64
				if val, err = eval(t); err == nil {
					return val
				}
			}
			if firstErr == nil {
				firstErr = err
			}
			return math.NaN()
		}
		grad := fd.Gradient(nil, f, at.Clone().Data(), settings)
		return grad, firstErr
	}

	numX, err := estimate(x, func(t *tensor.Tensor) (float64, error) {
		return objective(nil, t)
	})
	if err != nil {
		return nil, fmt.Errorf("gradcheck: %s: %w", InputTarget, err)
	}
	report.Results = append(report.Results, newResult(InputTarget, dX.Data(), numX))

	for _, p := range l.Params() {
		name := p.Name
		analytic := p.Grad.Clone().Data()
		num, err := estimate(p.Value, func(t *tensor.Tensor) (float64, error) {
			return objective(map[string]*tensor.Tensor{name: t}, x)
		})
		if err != nil {
			return nil, fmt.Errorf("gradcheck: %s: %w", name, err)
		}
		report.Results = append(report.Results, newResult(name, analytic, num))
	}
	return report, nil
}

func newResult(target string, analytic, numeric []float64) Result {
	a := make([]float64, len(analytic))
	copy(a, analytic)
	return Result{
		Target:   target,
		Analytic: a,
		Numeric:  numeric,
		RelError: RelError(a, numeric),
	}
}
