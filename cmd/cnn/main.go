// Command cnn builds a small convolutional stack from a YAML layer list,
// runs a forward and backward pass through it and checks every layer's
// gradients against finite differences.
//
// Usage:
//
//	cnn [layers.yaml]
//
// Without an argument the built-in configuration is used.
package main

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nnkit/layerkit/layerkit"
)

//go:embed cnn.yaml
var defaultConfig []byte

// Input batch: 2 examples of 8x8 images with 3 channels.
var inputShape = []int{2, 8, 8, 3}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(logger, os.Args[1:]); err != nil {
		logger.Error("cnn failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, args []string) error {
	var src io.Reader = bytes.NewReader(defaultConfig)
	if len(args) > 0 {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	cfgs, err := layerkit.LoadConfigs(src)
	if err != nil {
		return err
	}
	layers, err := layerkit.Build(cfgs)
	if err != nil {
		return err
	}

	x := layerkit.RandUniform(42, -1, 1, inputShape...)
	inputs := make([]*layerkit.Tensor, len(layers))
	out := x
	for i, l := range layers {
		inputs[i] = out
		out, err = l.Forward(out)
		if err != nil {
			return fmt.Errorf("forward through layer %d (%s): %w", i, cfgs[i].Name, err)
		}
		logger.Info("forward", "layer", i, "name", cfgs[i].Name, "in", inputs[i].Shape(), "out", out.Shape())
	}

	grad := layerkit.RandUniform(7, -1, 1, out.Shape()...)
	for i := len(layers) - 1; i >= 0; i-- {
		grad, err = layers[i].Backward(grad)
		if err != nil {
			return fmt.Errorf("backward through layer %d (%s): %w", i, cfgs[i].Name, err)
		}
		for _, p := range layers[i].Params() {
			logger.Info("gradient", "layer", i, "param", p.Name, "shape", p.Grad.Shape())
		}
	}
	logger.Info("input gradient", "shape", grad.Shape())

	failed := 0
	for i, l := range layers {
		// Check a clone so the stack's own caches and gradients stay intact.
		report, err := layerkit.GradCheck(l.Clone(), inputs[i], layerkit.GradCheckOptions{Seed: uint64(i + 1)})
		if err != nil {
			return fmt.Errorf("gradient check of layer %d (%s): %w", i, cfgs[i].Name, err)
		}
		if !report.OK() {
			failed++
			logger.Warn("gradient check failed", "layer", i, "name", cfgs[i].Name,
				"targets", report.Failures(), "max_rel_error", report.MaxRelError())
			continue
		}
		logger.Info("gradient check", "layer", i, "name", cfgs[i].Name, "max_rel_error", report.MaxRelError())
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d layers failed the gradient check", failed, len(layers))
	}
	return nil
}
