// Package webgpu implements device.Device on a WebGPU adapter using
// go-webgpu (github.com/go-webgpu/webgpu), zero-CGO bindings to wgpu-native.
//
// Kernels are WGSL compute shaders. Buffer arguments bind, in launch order,
// to @binding(0), @binding(1), ...; int32 scalar arguments are packed into a
// 16-byte aligned uniform bound after the last buffer.
//
// The device is only built on windows, where the native library ships with
// the bindings. Other builds get a stub whose New reports errs.ErrUnavailable.
package webgpu
