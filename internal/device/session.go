package device

import (
	"errors"
	"fmt"
	"sync"
)

// Session owns one device together with its compiled accumulate_dot kernel.
// It is created once, passed explicitly to the executors that need it and
// closed exactly once.
type Session struct {
	dev    Device
	kernel Kernel

	mu       sync.Mutex
	closed   bool
	closeErr error
}

// NewSession compiles the accumulate_dot kernel on dev.
// On failure dev is released before the error is returned.
func NewSession(dev Device) (*Session, error) {
	if dev == nil {
		return nil, errors.New("device: nil device")
	}
	k, err := dev.Kernel(AccumulateDot)
	if err != nil {
		_ = dev.Release()
		return nil, Failure(dev.Name(), "compile "+AccumulateDot, err)
	}
	return &Session{dev: dev, kernel: k}, nil
}

// Device returns the underlying device.
func (s *Session) Device() Device {
	return s.dev
}

// Kernel returns the compiled accumulate_dot kernel.
func (s *Session) Kernel() Kernel {
	return s.kernel
}

// Name returns the device name.
func (s *Session) Name() string {
	return s.dev.Name()
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close drains the queue and releases the device. Later calls return the
// result of the first one.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closeErr
	}
	s.closed = true

	finishErr := s.dev.Finish()
	if err := s.dev.Release(); err != nil {
		s.closeErr = fmt.Errorf("device: release %s: %w", s.dev.Name(), err)
	} else if finishErr != nil {
		s.closeErr = Failure(s.dev.Name(), "finish on close", finishErr)
	}
	return s.closeErr
}
