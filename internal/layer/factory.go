package layer

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nnkit/layerkit/internal/activations"
	"github.com/nnkit/layerkit/internal/nnerr"
	"github.com/nnkit/layerkit/internal/weights"
)

// Layer type names understood by New.
const (
	TypeFullyConnected = "fully_connected"
	TypeConv2D         = "conv2d"
	TypePool2D         = "pool2d"
	TypeFlatten        = "flatten"
)

// Config describes a layer to construct. Fields that do not apply to the
// named layer type are ignored.
type Config struct {
	Name       string  `yaml:"name"`
	Activation string  `yaml:"activation,omitempty"`
	WeightInit string  `yaml:"weight_init,omitempty"`
	NOut       int     `yaml:"n_out,omitempty"`
	Kernel     Kernel  `yaml:"kernel_shape,omitempty"`
	Stride     int     `yaml:"stride,omitempty"`
	Pad        Padding `yaml:"pad,omitempty"`
	Mode       string  `yaml:"mode,omitempty"`
	KeepDim    string  `yaml:"keep_dim,omitempty"`

	// Seed makes weight initialization reproducible. Zero draws from the
	// global generator.
	Seed uint64 `yaml:"seed,omitempty"`
}

// New creates a layer from its configuration. A zero Stride means 1.
func New(cfg Config) (Layer, error) {
	stride := cfg.Stride
	if stride == 0 {
		stride = 1
	}

	var (
		l   Layer
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Name)) {
	case TypeFullyConnected:
		act, wi, rerr := cfg.resolve()
		if rerr != nil {
			return nil, rerr
		}
		l, err = NewFullyConnected(cfg.NOut, act, wi)

	case TypeConv2D:
		act, wi, rerr := cfg.resolve()
		if rerr != nil {
			return nil, rerr
		}
		l, err = NewConv2D(cfg.NOut, cfg.Kernel, stride, cfg.Pad, act, wi)

	case TypePool2D:
		mode, perr := ParsePoolMode(cfg.Mode)
		if perr != nil {
			return nil, perr
		}
		l, err = NewPool2D(cfg.Kernel, stride, cfg.Pad, mode)

	case TypeFlatten:
		keep, perr := ParseKeepDim(cfg.KeepDim)
		if perr != nil {
			return nil, perr
		}
		l, err = NewFlatten(keep)

	default:
		return nil, fmt.Errorf("%w: %q", nnerr.ErrUnsupportedLayerType, cfg.Name)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (cfg Config) resolve() (activations.Activation, weights.Initializer, error) {
	act, err := activations.New(cfg.Activation)
	if err != nil {
		return nil, nil, err
	}
	var src rand.Source
	if cfg.Seed != 0 {
		src = rand.NewPCG(cfg.Seed, cfg.Seed)
	}
	wi, err := weights.New(cfg.WeightInit, src)
	if err != nil {
		return nil, nil, err
	}
	return act, wi, nil
}

type configFile struct {
	Layers []Config `yaml:"layers"`
}

// LoadConfigs decodes a YAML document of the form
//
//	layers:
//	  - name: conv2d
//	    n_out: 8
//	    kernel_shape: [3, 3]
//
// Unknown keys are rejected.
func LoadConfigs(r io.Reader) ([]Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f configFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nnerr.Configf("empty layer configuration")
		}
		if errors.Is(err, nnerr.ErrConfiguration) {
			return nil, err
		}
		return nil, nnerr.Configf("decode layer configuration: %v", err)
	}
	if len(f.Layers) == 0 {
		return nil, nnerr.Configf("layer configuration has no layers")
	}
	return f.Layers, nil
}

// Build creates one layer per configuration, in order.
func Build(cfgs []Config) ([]Layer, error) {
	layers := make([]Layer, 0, len(cfgs))
	for i, cfg := range cfgs {
		l, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, cfg.Name, err)
		}
		layers = append(layers, l)
	}
	return layers, nil
}
