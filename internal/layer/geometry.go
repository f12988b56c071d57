package layer

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nnkit/layerkit/internal/nnerr"
)

type padMode int

const (
	padDefault padMode = iota
	padSame
	padValid
	padExplicit
)

// Padding selects how the spatial axes of a 4-D input are zero-padded.
// The zero value means "the layer's default" (same for Conv2D, valid for
// Pool2D).
type Padding struct {
	mode padMode
	h, w int
}

// Same pads by ((kh-1)/2, (kw-1)/2), keeping the spatial size for odd
// kernels at stride 1.
func Same() Padding { return Padding{mode: padSame} }

// Valid applies no padding.
func Valid() Padding { return Padding{mode: padValid} }

// Explicit pads h rows and w columns on each side.
func Explicit(h, w int) Padding { return Padding{mode: padExplicit, h: h, w: w} }

// ParsePadding parses "same", "valid", "2" or "1,2" (also "(1, 2)").
// The empty string yields the zero Padding.
func ParsePadding(s string) (Padding, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "":
		return Padding{}, nil
	case "same":
		return Same(), nil
	case "valid":
		return Valid(), nil
	}

	parts := strings.Split(strings.Trim(v, "()[] "), ",")
	if len(parts) > 2 {
		return Padding{}, nnerr.Configf("invalid pad %q", s)
	}
	vals := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return Padding{}, nnerr.Configf("invalid pad %q: want same, valid or non-negative integers", s)
		}
		vals[i] = n
	}
	if len(vals) == 1 {
		return Explicit(vals[0], vals[0]), nil
	}
	return Explicit(vals[0], vals[1]), nil
}

// IsDefault reports whether p is the zero Padding.
func (p Padding) IsDefault() bool {
	return p.mode == padDefault
}

// IsZero lets yaml omitempty drop an unset Padding.
func (p Padding) IsZero() bool {
	return p.IsDefault()
}

// Resolve returns the per-side padding for a kernel of the given size.
func (p Padding) Resolve(kernel Kernel) (ph, pw int, err error) {
	switch p.mode {
	case padSame:
		return (kernel[0] - 1) / 2, (kernel[1] - 1) / 2, nil
	case padValid:
		return 0, 0, nil
	case padExplicit:
		if p.h < 0 || p.w < 0 {
			return 0, 0, nnerr.Configf("negative pad (%d, %d)", p.h, p.w)
		}
		return p.h, p.w, nil
	default:
		return 0, 0, nnerr.Configf("padding mode not set")
	}
}

func (p Padding) String() string {
	switch p.mode {
	case padSame:
		return "same"
	case padValid:
		return "valid"
	case padExplicit:
		return fmt.Sprintf("%d,%d", p.h, p.w)
	default:
		return ""
	}
}

// UnmarshalYAML accepts a scalar ("same", "valid", 1, "1,2") or a
// two-element sequence.
func (p *Padding) UnmarshalYAML(node *yaml.Node) error {
	var s string
	switch node.Kind {
	case yaml.ScalarNode:
		s = node.Value
	case yaml.SequenceNode:
		vals := make([]string, len(node.Content))
		for i, c := range node.Content {
			vals[i] = c.Value
		}
		s = strings.Join(vals, ",")
	default:
		return nnerr.Configf("line %d: pad must be a scalar or a sequence", node.Line)
	}
	parsed, err := ParsePadding(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*p = parsed
	return nil
}

// MarshalYAML encodes the padding in the form ParsePadding accepts.
func (p Padding) MarshalYAML() (any, error) {
	return p.String(), nil
}

// Kernel is a (height, width) window size.
type Kernel [2]int

// UnmarshalYAML accepts a single integer (square kernel) or a two-element
// sequence.
func (k *Kernel) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var n int
		if err := node.Decode(&n); err != nil {
			return nnerr.Configf("line %d: kernel_shape: %v", node.Line, err)
		}
		*k = Kernel{n, n}
	case yaml.SequenceNode:
		var vals []int
		if err := node.Decode(&vals); err != nil || len(vals) != 2 {
			return nnerr.Configf("line %d: kernel_shape must have two integers", node.Line)
		}
		*k = Kernel{vals[0], vals[1]}
	default:
		return nnerr.Configf("line %d: kernel_shape must be an integer or a pair", node.Line)
	}
	return nil
}

// window is the resolved sliding-window geometry shared by Conv2D and Pool2D.
type window struct {
	kh, kw int
	stride int
	ph, pw int
}

func newWindow(kernel Kernel, stride int, pad Padding) (window, error) {
	if kernel[0] <= 0 || kernel[1] <= 0 {
		return window{}, nnerr.Configf("invalid kernel shape %v", kernel)
	}
	if stride <= 0 {
		return window{}, nnerr.Configf("invalid stride %d", stride)
	}
	ph, pw, err := pad.Resolve(kernel)
	if err != nil {
		return window{}, err
	}
	return window{kh: kernel[0], kw: kernel[1], stride: stride, ph: ph, pw: pw}, nil
}

// outputSize returns (out_h, out_w) = ((H + 2·ph − kh)/stride + 1, ...).
// A window that does not fit or a stride that does not evenly divide the
// padded extent is a configuration error.
func (g window) outputSize(h, w int) (int, int, error) {
	hp, wp := h+2*g.ph, w+2*g.pw
	if hp < g.kh || wp < g.kw {
		return 0, 0, nnerr.Configf("kernel %dx%d larger than padded input %dx%d", g.kh, g.kw, hp, wp)
	}
	if (hp-g.kh)%g.stride != 0 || (wp-g.kw)%g.stride != 0 {
		return 0, 0, nnerr.Configf("stride %d does not evenly divide padded input %dx%d for kernel %dx%d",
			g.stride, hp, wp, g.kh, g.kw)
	}
	return (hp-g.kh)/g.stride + 1, (wp-g.kw)/g.stride + 1, nil
}
