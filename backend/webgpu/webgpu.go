// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu opens compute sessions on a WebGPU adapter.
//
// The device is compiled in on windows only; elsewhere NewSession fails
// with an error matching errs.ErrUnavailable.
//
// Example:
//
//	if webgpu.IsAvailable() {
//	    s, err := webgpu.NewSession()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    c, err := inference.New(model, cfg, inference.WithSession(s))
//	}
package webgpu

import (
	"github.com/born-ml/tilenet/internal/device"
	internalwebgpu "github.com/born-ml/tilenet/internal/device/webgpu"
)

// Device is the WebGPU implementation of the compute-resource boundary.
type Device = internalwebgpu.Device

// Compile-time check that Device implements device.Device.
var _ device.Device = (*Device)(nil)

// NewSession opens the default adapter and compiles the accumulate_dot
// shader. Close the session to release the GPU.
func NewSession() (*device.Session, error) {
	dev, err := internalwebgpu.New()
	if err != nil {
		return nil, err
	}
	return device.NewSession(dev)
}

// IsAvailable checks if WebGPU is available on the current system.
//
// It is useful for graceful fallback to the CPU executor:
//
//	if webgpu.IsAvailable() {
//	    s, _ := webgpu.NewSession()
//	    opt = inference.WithSession(s)
//	} else {
//	    opt = inference.WithExecutor(cpu.New())
//	}
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
