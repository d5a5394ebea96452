package servo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Port is an opened byte-stream endpoint. go.bug.st/serial's Port satisfies it.
type Port interface {
	Write(p []byte) (int, error)
	// Drain waits until all written bytes have left the output buffer.
	Drain() error
	Close() error
}

// PortFilter restricts device selection by USB identifiers. Zero values match any device.
type PortFilter struct {
	VendorID  uint16
	ProductID uint16
}

// IsZero returns if the filter matches every device.
func (f PortFilter) IsZero() bool { return f.VendorID == 0 && f.ProductID == 0 }

// PortMode is the line configuration used to open a port.
type PortMode struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

// Parity of the serial line.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// StopBits of the serial line.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// Host is the environment that provides serial devices.
//
// SelectPort may prompt a person and may block; dismissal is reported as
// ErrSelectionCancelled. Failures should wrap ErrUnsupported, ErrNoDevice or
// ErrOpenFailed so the session can report them.
type Host interface {
	SelectPort(ctx context.Context, filter PortFilter) (string, error)
	OpenPort(name string, mode *PortMode) (Port, error)
}

// transportHandle owns an opened port and its single writer.
// It is never shared outside the session that acquired it.
type transportHandle struct {
	name string
	port Port

	// writerMu is the writer lock; it serializes writes.
	writerMu sync.Mutex
	released atomic.Bool

	releaseOnce sync.Once
	releaseErr  error
}

// acquireHandle selects a device, opens it and takes its writer.
// Nothing is left open when an error is returned.
func acquireHandle(ctx context.Context, host Host, filter PortFilter, mode *PortMode) (*transportHandle, error) {
	if host == nil {
		return nil, ErrUnsupported
	}

	name, err := host.SelectPort(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSelectionCancelled, err)
	}

	port, err := host.OpenPort(name, mode)
	if err != nil {
		if errors.Is(err, ErrOpenFailed) || errors.Is(err, ErrUnsupported) {
			return nil, err
		}

		return nil, fmt.Errorf("%w %s: %w", ErrOpenFailed, name, err)
	}
	if port == nil {
		return nil, fmt.Errorf("%w %s: host returned no port", ErrOpenFailed, name)
	}

	return &transportHandle{name: name, port: port}, nil
}

// Name returns the device name the handle was opened from.
func (h *transportHandle) Name() string { return h.name }

// Write sends one frame through the writer.
func (h *transportHandle) Write(frame []byte) error {
	h.writerMu.Lock()
	defer h.writerMu.Unlock()

	if h.released.Load() {
		return ErrHandleReleased
	}

	n, err := h.port.Write(frame)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: short write %d of %d bytes", ErrWriteFailed, n, len(frame))
	}

	return nil
}

// release frees the writer, then closes the port. Both steps run even if the
// first fails. Later calls return the first result.
func (h *transportHandle) release() error {
	h.releaseOnce.Do(func() {
		h.releaseErr = errors.Join(h.releaseWriter(), h.closePort())
	})

	return h.releaseErr
}

// releaseWriter invalidates the writer and drains pending output. A write that
// is still blocked keeps the lock; the drain is skipped so closing the port can
// unblock it.
func (h *transportHandle) releaseWriter() (err error) {
	h.released.Store(true)

	if !h.writerMu.TryLock() {
		return fmt.Errorf("servo: release writer %s: write in flight, drain skipped", h.name)
	}
	defer h.writerMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("servo: release writer %s: %v", h.name, r)
		}
	}()

	if err := h.port.Drain(); err != nil {
		return fmt.Errorf("servo: release writer %s: %w", h.name, err)
	}

	return nil
}

func (h *transportHandle) closePort() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("servo: close port %s: %v", h.name, r)
		}
	}()

	if err := h.port.Close(); err != nil {
		return fmt.Errorf("servo: close port %s: %w", h.name, err)
	}

	return nil
}
