// Package cuda implements device.Device on an NVIDIA GPU through
// gorgonia.org/cu.
//
// The device owns one CUDA context, a stream and the loaded PTX module.
// Every call makes the context current on the calling OS thread first, so
// the device may be used from any goroutine, one call at a time.
//
// Build with -tags cuda; without it New reports errs.ErrUnavailable.
package cuda
