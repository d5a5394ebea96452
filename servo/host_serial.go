package servo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-buzzer/logger"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// seams for tests; production code talks to go.bug.st/serial.
var (
	openSerialPort  = func(name string, mode *serial.Mode) (Port, error) { return serial.Open(name, mode) }
	listSerialPorts = enumerator.GetDetailedPortsList
)

// PortInfo describes a serial device offered for selection.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Product      string
}

// String returns a one line description suitable for a device chooser.
func (pi PortInfo) String() string {
	if !pi.IsUSB {
		return pi.Name
	}

	desc := fmt.Sprintf("%s [%04x:%04x]", pi.Name, pi.VendorID, pi.ProductID)
	if pi.Product != "" {
		desc += " " + pi.Product
	}

	return desc
}

// PortChooser picks one device among candidates. It returns ErrSelectionCancelled
// when the person dismisses the choice.
type PortChooser func(ctx context.Context, candidates []PortInfo) (string, error)

// SerialHost is a Host backed by the operating system's serial ports.
type SerialHost struct {
	device  string
	chooser PortChooser
	logger  logger.Logger
}

var _ Host = (*SerialHost)(nil)

// SerialHostOption configures a SerialHost.
type SerialHostOption func(*SerialHost)

// WithDevice pins the device name (e.g. "/dev/ttyACM0", "COM3"); enumeration and the chooser are skipped.
func WithDevice(name string) SerialHostOption {
	return func(h *SerialHost) { h.device = strings.TrimSpace(name) }
}

// WithChooser sets the function that picks among several matching devices.
// Without a chooser the first match is used.
func WithChooser(chooser PortChooser) SerialHostOption {
	return func(h *SerialHost) { h.chooser = chooser }
}

// WithHostLogger sets the logger; the default logger is used otherwise.
func WithHostLogger(l logger.Logger) SerialHostOption {
	return func(h *SerialHost) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewSerialHost creates a SerialHost.
func NewSerialHost(opts ...SerialHostOption) *SerialHost {
	h := &SerialHost{logger: logger.GetLogger()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	return h
}

// ListPorts returns the serial devices that match filter.
func (h *SerialHost) ListPorts(filter PortFilter) ([]PortInfo, error) {
	details, err := listSerialPorts()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		info := PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VendorID:     parseUSBID(d.VID),
			ProductID:    parseUSBID(d.PID),
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		if matchFilter(info, filter) {
			ports = append(ports, info)
		}
	}

	return ports, nil
}

// SelectPort implements Host.
func (h *SerialHost) SelectPort(ctx context.Context, filter PortFilter) (string, error) {
	if h.device != "" {
		return h.device, nil
	}

	ports, err := h.ListPorts(filter)
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", ErrNoDevice
	}

	h.logger.Debug("servo: serial devices found", "count", len(ports), "filter", filter)

	if h.chooser == nil {
		return ports[0].Name, nil
	}

	name, err := h.chooser(ctx, ports)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", ErrSelectionCancelled, err)
		}

		return "", err
	}
	if name == "" {
		return "", ErrSelectionCancelled
	}

	return name, nil
}

// OpenPort implements Host.
func (h *SerialHost) OpenPort(name string, mode *PortMode) (Port, error) {
	port, err := openSerialPort(name, toSerialMode(mode))
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.FunctionNotImplemented {
			return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
		}

		return nil, fmt.Errorf("%w %s: %w", ErrOpenFailed, name, err)
	}

	return port, nil
}

func toSerialMode(mode *PortMode) *serial.Mode {
	if mode == nil {
		return &serial.Mode{BaudRate: DefaultBaudRate}
	}

	m := &serial.Mode{
		BaudRate: mode.BaudRate,
		DataBits: mode.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	switch mode.Parity {
	case OddParity:
		m.Parity = serial.OddParity
	case EvenParity:
		m.Parity = serial.EvenParity
	}

	if mode.StopBits == TwoStopBits {
		m.StopBits = serial.TwoStopBits
	}

	return m
}

func matchFilter(info PortInfo, filter PortFilter) bool {
	if filter.IsZero() {
		return true
	}
	if !info.IsUSB {
		return false
	}
	if filter.VendorID != 0 && info.VendorID != filter.VendorID {
		return false
	}
	if filter.ProductID != 0 && info.ProductID != filter.ProductID {
		return false
	}

	return true
}

func parseUSBID(s string) uint16 {
	id, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 16)
	if err != nil {
		return 0
	}

	return uint16(id)
}
