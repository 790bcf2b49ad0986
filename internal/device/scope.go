package device

import "errors"

// Scope tracks buffers acquired for one operation and frees all of them in
// reverse acquisition order on Release.
//
//	scope := device.NewScope(dev)
//	defer scope.Release()
//	buf, err := scope.Alloc(n*4, device.ReadOnly)
type Scope struct {
	dev  Device
	bufs []Buffer
}

// NewScope creates an empty scope on dev.
func NewScope(dev Device) *Scope {
	return &Scope{dev: dev}
}

// Alloc allocates a buffer owned by the scope.
func (s *Scope) Alloc(size int, access Access) (Buffer, error) {
	b, err := s.dev.Alloc(size, access)
	if err != nil {
		return nil, err
	}
	s.bufs = append(s.bufs, b)
	return b, nil
}

// Len returns the number of live buffers owned by the scope.
func (s *Scope) Len() int {
	return len(s.bufs)
}

// Release frees every buffer. It is safe to call more than once.
func (s *Scope) Release() error {
	var errList []error
	for i := len(s.bufs) - 1; i >= 0; i-- {
		if err := s.dev.Free(s.bufs[i]); err != nil {
			errList = append(errList, err)
		}
	}
	s.bufs = nil
	return errors.Join(errList...)
}
