package tensor

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sample returns a tensor whose elements are drawn from r.
func Sample(r distuv.Rander, shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = r.Rand()
	}
	return t
}

// RandUniform returns a tensor with elements drawn from U(lo, hi).
// A nil src uses the global generator.
func RandUniform(src rand.Source, lo, hi float64, shape ...int) *Tensor {
	return Sample(distuv.Uniform{Min: lo, Max: hi, Src: src}, shape...)
}

// RandNormal returns a tensor with elements drawn from N(mean, std²).
// A nil src uses the global generator.
func RandNormal(src rand.Source, mean, std float64, shape ...int) *Tensor {
	return Sample(distuv.Normal{Mu: mean, Sigma: std, Src: src}, shape...)
}
