// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package inference is the public entry point for classifying images with
// a two-layer fully-connected network whose layers run as tiled
// weight-stationary matrix-vector products.
//
// Example:
//
//	c, err := inference.Load("./params", "host", inference.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	res, err := c.Classify(pixels) // 28x28 gray bytes
//	fmt.Println(res.Class)
package inference

import (
	"fmt"
	"strings"

	"github.com/born-ml/tilenet/backend/cpu"
	"github.com/born-ml/tilenet/backend/webgpu"
	"github.com/born-ml/tilenet/internal/classifier"
	"github.com/born-ml/tilenet/internal/device"
	"github.com/born-ml/tilenet/internal/device/cuda"
	"github.com/born-ml/tilenet/internal/errs"
	"github.com/born-ml/tilenet/internal/params"
)

// Classifier runs inferences; see classifier.Classifier.
type Classifier = classifier.Classifier

// Result is the prediction with its intermediate vectors.
type Result = classifier.Result

// Config is the network shape and tile widths.
type Config = classifier.Config

// Option configures a Classifier.
type Option = classifier.Option

// StageError reports the inference step that failed.
type StageError = classifier.StageError

// Model is a loaded parameter set.
type Model = params.Model

// Re-exported options.
var (
	WithLogger   = classifier.WithLogger
	WithExecutor = classifier.WithExecutor
	WithSession  = classifier.WithSession
	WithCloser   = classifier.WithCloser
)

// Backend names accepted by Open and Load.
const (
	CPU    = "cpu"
	Host   = "host"
	WebGPU = "webgpu"
	CUDA   = "cuda"
)

// Backends lists every backend name.
func Backends() []string {
	return []string{CPU, Host, WebGPU, CUDA}
}

// DefaultConfig returns the 784-10-10 MNIST network with tiles of 28 and 10.
func DefaultConfig() Config {
	return classifier.DefaultConfig()
}

// New creates a classifier for an already loaded model.
func New(model *Model, cfg Config, opts ...Option) (*Classifier, error) {
	return classifier.New(model, cfg, opts...)
}

// Open returns the option that runs layers on the named backend. For
// offload backends the returned option hands the opened session to the
// classifier, which closes it.
func Open(backend string) (Option, error) {
	var (
		s   *device.Session
		err error
	)
	switch strings.ToLower(backend) {
	case CPU:
		return WithExecutor(cpu.New()), nil
	case Host:
		s, err = cpu.NewHostSession()
	case WebGPU:
		s, err = webgpu.NewSession()
	case CUDA:
		var dev *cuda.Device
		if dev, err = cuda.New(0); err == nil {
			s, err = device.NewSession(dev)
		}
	default:
		return nil, fmt.Errorf("inference: unknown backend %q (want one of %s): %w",
			backend, strings.Join(Backends(), ", "), errs.ErrInvalidArgument)
	}
	if err != nil {
		return nil, fmt.Errorf("inference: open %s: %w", backend, err)
	}
	return WithSession(s), nil
}

// Load reads the four parameter files from dir and creates a classifier on
// the named backend.
func Load(dir, backend string, cfg Config, opts ...Option) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := params.LoadModel(dir, cfg.Topology)
	if err != nil {
		return nil, err
	}
	open, err := Open(backend)
	if err != nil {
		return nil, err
	}
	return classifier.New(model, cfg, append([]Option{open}, opts...)...)
}
