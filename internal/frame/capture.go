package frame

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/born-ml/tilenet/internal/errs"
)

// Physical layout of the capture hardware.
const (
	BridgeBase = 0xff200000 // Lightweight HPS-to-FPGA bridge.
	BridgeSpan = 0x00200000
	VideoBase  = 0xC8000000 // On-chip frame buffer.

	// dmaOffset is the video-in DMA controller within the bridge; its
	// control register is word 3.
	dmaOffset  = 0x0000
	dmaControl = dmaOffset + 3*4
	dmaEnable  = 0x4
	// keyOffset is the push-button data register.
	keyOffset = 0x3010
	// keysIdle is the key register value with no button pressed.
	keysIdle = 7
)

// VideoSpan is the number of bytes of video memory read for one frame.
const VideoSpan = Height * RowPitch * 2

// Source yields frames.
type Source interface {
	Capture(ctx context.Context) (*Frame, error)
	Close() error
}

// Option configures a DevMem source.
type Option func(*DevMem)

// WithPollInterval sets how often the key register is sampled.
func WithPollInterval(d time.Duration) Option {
	return func(m *DevMem) {
		if d > 0 {
			m.poll = d
		}
	}
}

// WithLogger sets the logger for capture progress.
func WithLogger(l *slog.Logger) Option {
	return func(m *DevMem) {
		if l != nil {
			m.logger = l
		}
	}
}

// DevMem captures frames from memory-mapped video hardware.
type DevMem struct {
	regs   []byte // Bridge registers, at least keyOffset+4 bytes.
	video  []byte // Frame buffer, at least VideoSpan bytes.
	unmap  func() error
	poll   time.Duration
	logger *slog.Logger
}

func newDevMem(regs, video []byte, unmap func() error, opts ...Option) (*DevMem, error) {
	if len(regs) < keyOffset+4 || len(video) < VideoSpan {
		return nil, fmt.Errorf("frame: register window %d bytes, video window %d bytes: %w",
			len(regs), len(video), errs.ErrInvalidArgument)
	}
	m := &DevMem{
		regs:   regs,
		video:  video,
		unmap:  unmap,
		poll:   time.Millisecond,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// reg returns the 32-bit register at byte offset off.
func (m *DevMem) reg(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&m.regs[off]))
}

// Capture enables the video-in DMA, waits for a button press, disables the
// DMA and copies the frame. Waiting stops when ctx is done; the DMA is
// disabled on every path.
func (m *DevMem) Capture(ctx context.Context) (*Frame, error) {
	ctrl := m.reg(dmaControl)
	atomic.StoreUint32(ctrl, dmaEnable)
	m.logger.Debug("video enabled", "control", atomic.LoadUint32(ctrl))

	err := m.waitForKey(ctx)
	atomic.StoreUint32(ctrl, 0)
	m.logger.Debug("video disabled", "control", atomic.LoadUint32(ctrl))
	if err != nil {
		return nil, fmt.Errorf("frame: wait for button: %w", err)
	}

	f := NewFrame(Width, Height)
	for y := 0; y < Height; y++ {
		row := m.video[y*RowPitch*2:]
		for x := 0; x < Width; x++ {
			f.Pix[y*Width+x] = binary.LittleEndian.Uint16(row[x*2:])
		}
	}
	return f, nil
}

func (m *DevMem) waitForKey(ctx context.Context) error {
	key := m.reg(keyOffset)
	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()
	for {
		if v := atomic.LoadUint32(key); v != keysIdle {
			m.logger.Debug("button pressed", "keys", v)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close unmaps the hardware windows.
func (m *DevMem) Close() error {
	if m.unmap == nil {
		return nil
	}
	err := m.unmap()
	m.unmap = nil
	return err
}
