// Package nnerr defines the error taxonomy shared by the layer toolkit.
//
// Every error returned by the toolkit wraps exactly one of these sentinels,
// so callers can branch with errors.Is:
//
//	if errors.Is(err, nnerr.ErrShapeMismatch) {
//	    // skip the batch
//	}
package nnerr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports an invalid layer, activation or initializer setting.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnsupportedLayerType reports an unknown layer name tag.
	// It matches ErrConfiguration as well.
	ErrUnsupportedLayerType = fmt.Errorf("%w: unsupported layer type", ErrConfiguration)

	// ErrShapeMismatch reports tensors whose shapes are incompatible with the operation.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrState reports an operation invoked in the wrong lifecycle state,
	// such as Backward before any Forward.
	ErrState = errors.New("state error")
)

// Configf returns an ErrConfiguration wrapping the formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Shapef returns an ErrShapeMismatch wrapping the formatted message.
func Shapef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShapeMismatch, fmt.Sprintf(format, args...))
}

// Statef returns an ErrState wrapping the formatted message.
func Statef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}
