// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the host-side tile executors.
//
// # Overview
//
// Two ways to run a layer on the CPU:
//   - New returns the direct executor: tiles are accumulated in a Go slice on
//     the calling goroutine, with an unrolled dot product on AVX2/ASIMD CPUs.
//   - NewHostSession opens the in-process accelerator: buffers, kernel
//     launches and read-back go through the same device boundary as a GPU,
//     with work items spread over all cores.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/tilenet/backend/cpu"
//	    "github.com/born-ml/tilenet/inference"
//	)
//
//	func main() {
//	    c, err := inference.New(model, inference.DefaultConfig(),
//	        inference.WithExecutor(cpu.New()))
//	}
package cpu
