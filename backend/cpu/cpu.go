// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"github.com/born-ml/tilenet/internal/device"
	"github.com/born-ml/tilenet/internal/device/host"
	"github.com/born-ml/tilenet/internal/engine"
)

// Executor accumulates tiles directly in host memory.
type Executor = engine.DirectExecutor

// Compile-time check that Executor implements engine.TileExecutor.
var _ engine.TileExecutor = (*Executor)(nil)

// New creates a direct CPU executor.
//
// Example:
//
//	eng := engine.New(cpu.New())
//	out, err := eng.Forward(shape, weights, biases, input)
func New() *Executor {
	return engine.NewDirectExecutor()
}

// NewHostSession opens a compute session on the in-process accelerator.
// Close the session when done.
func NewHostSession() (*device.Session, error) {
	return device.NewSession(host.New())
}
