package tensor

import "github.com/nnkit/layerkit/internal/nnerr"

// Pad2D zero-pads the two spatial axes of a (batch, height, width, channels)
// tensor by ph rows and pw columns on each side.
func Pad2D(t *Tensor, ph, pw int) (*Tensor, error) {
	if t.Dims() != 4 {
		return nil, nnerr.Shapef("pad2d needs a 4-D tensor, got %v", t.shape)
	}
	if ph < 0 || pw < 0 {
		return nil, nnerr.Configf("negative padding (%d, %d)", ph, pw)
	}
	n, h, w, c := t.shape[0], t.shape[1], t.shape[2], t.shape[3]
	if ph == 0 && pw == 0 {
		return t.Clone(), nil
	}

	hp, wp := h+2*ph, w+2*pw
	out := Zeros(n, hp, wp, c)
	rowLen := w * c
	for b := 0; b < n; b++ {
		for y := 0; y < h; y++ {
			src := (b*h + y) * rowLen
			dst := ((b*hp+y+ph)*wp + pw) * c
			copy(out.data[dst:dst+rowLen], t.data[src:src+rowLen])
		}
	}
	return out, nil
}

// Crop2D is the inverse of Pad2D: it extracts the h×w spatial window starting
// at (ph, pw) from a (batch, height, width, channels) tensor.
func Crop2D(t *Tensor, ph, pw, h, w int) (*Tensor, error) {
	if t.Dims() != 4 {
		return nil, nnerr.Shapef("crop2d needs a 4-D tensor, got %v", t.shape)
	}
	n, hp, wp, c := t.shape[0], t.shape[1], t.shape[2], t.shape[3]
	if ph < 0 || pw < 0 || h < 0 || w < 0 || ph+h > hp || pw+w > wp {
		return nil, nnerr.Shapef("crop (%d, %d, %d, %d) outside %v", ph, pw, h, w, t.shape)
	}

	out := Zeros(n, h, w, c)
	rowLen := w * c
	for b := 0; b < n; b++ {
		for y := 0; y < h; y++ {
			src := ((b*hp+y+ph)*wp + pw) * c
			dst := (b*h + y) * rowLen
			copy(out.data[dst:dst+rowLen], t.data[src:src+rowLen])
		}
	}
	return out, nil
}
