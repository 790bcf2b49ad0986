//go:build linux

package frame

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// OpenDevMem maps the bridge registers and the frame buffer from /dev/mem.
// It needs root on the target board.
func OpenDevMem(opts ...Option) (*DevMem, error) {
	fd, err := unix.Open("/dev/mem", unix.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("frame: open /dev/mem: %w", err)
	}
	// Mappings stay valid after the descriptor is closed.
	defer unix.Close(fd)

	regs, err := unix.Mmap(fd, BridgeBase, BridgeSpan, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("frame: map bridge: %w", err)
	}
	video, err := unix.Mmap(fd, VideoBase, VideoSpan, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Munmap(regs)
		return nil, fmt.Errorf("frame: map video memory: %w", err)
	}

	unmap := func() error {
		return errors.Join(unix.Munmap(regs), unix.Munmap(video))
	}
	m, err := newDevMem(regs, video, unmap, opts...)
	if err != nil {
		_ = unmap()
		return nil, err
	}
	return m, nil
}
