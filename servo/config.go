package servo

import (
	"fmt"
	"time"

	"github.com/arloliu/go-buzzer/logger"
)

// Default line configuration expected by the buzzer firmware.
const (
	DefaultBaudRate = 9600
	DefaultDataBits = 8
)

const (
	// DefaultMinInterval is the minimum gap between two command writes.
	DefaultMinInterval = 50 * time.Millisecond
	// DefaultCloseTimeout bounds how long Disconnect waits for an in-flight write.
	DefaultCloseTimeout = 3 * time.Second
)

// Option range limits.
const (
	MinMinInterval = time.Millisecond
	MaxMinInterval = 10 * time.Second

	MaxBaudRate = 4_000_000

	MinCloseTimeout = 10 * time.Millisecond
	MaxCloseTimeout = time.Minute
)

// SessionConfig holds all configuration for a servo Session.
type SessionConfig struct {
	host   Host
	filter PortFilter
	mode   PortMode

	// minInterval is the rate limiter window between writes.
	minInterval time.Duration

	// homePosition is sent as the courtesy command on Disconnect.
	homePosition Position

	closeTimeout time.Duration

	logger logger.Logger
}

// NewSessionConfig creates a new session configuration.
//
// host provides the serial devices; a nil host makes every Connect fail with
// ErrUnsupported. opts are functional options applied in order; see With* functions.
func NewSessionConfig(host Host, opts ...SessionOption) (*SessionConfig, error) {
	cfg := &SessionConfig{
		host: host,
		mode: PortMode{
			BaudRate: DefaultBaudRate,
			DataBits: DefaultDataBits,
			Parity:   NoParity,
			StopBits: OneStopBit,
		},
		minInterval:  DefaultMinInterval,
		homePosition: HomePosition,
		closeTimeout: DefaultCloseTimeout,
		logger:       logger.GetLogger(),
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// Host returns the configured device host.
func (cfg *SessionConfig) Host() Host { return cfg.host }

// PortFilter returns the device selection filter.
func (cfg *SessionConfig) PortFilter() PortFilter { return cfg.filter }

// PortMode returns a copy of the line configuration.
func (cfg *SessionConfig) PortMode() PortMode { return cfg.mode }

// BaudRate returns the configured baud rate.
func (cfg *SessionConfig) BaudRate() int { return cfg.mode.BaudRate }

// MinInterval returns the minimum gap between command writes.
func (cfg *SessionConfig) MinInterval() time.Duration { return cfg.minInterval }

// HomePosition returns the courtesy position sent before disconnecting.
func (cfg *SessionConfig) HomePosition() Position { return cfg.homePosition }

// CloseTimeout returns how long Disconnect waits for an in-flight write.
func (cfg *SessionConfig) CloseTimeout() time.Duration { return cfg.closeTimeout }

// GetLogger returns the configured logger.
func (cfg *SessionConfig) GetLogger() logger.Logger { return cfg.logger }

// --- SessionOption ---

// SessionOption is a functional option for configuring a SessionConfig.
type SessionOption interface {
	apply(*SessionConfig) error
}

type sessionOptFunc func(*SessionConfig) error

func (f sessionOptFunc) apply(cfg *SessionConfig) error { return f(cfg) }

// WithPortFilter restricts device selection to the given USB vendor/product ID.
// Zero means any.
func WithPortFilter(vendorID, productID uint16) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		cfg.filter = PortFilter{VendorID: vendorID, ProductID: productID}
		return nil
	})
}

// WithBaudRate sets the line speed. The firmware listens at 9600.
func WithBaudRate(baud int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if baud <= 0 || baud > MaxBaudRate {
			return fmt.Errorf("servo: baud rate %d out of range (0, %d]", baud, MaxBaudRate)
		}
		cfg.mode.BaudRate = baud

		return nil
	})
}

// WithDataBits sets the number of data bits, 5 to 8.
func WithDataBits(bits int) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if bits < 5 || bits > 8 {
			return fmt.Errorf("servo: data bits %d out of range [5, 8]", bits)
		}
		cfg.mode.DataBits = bits

		return nil
	})
}

// WithParity sets the line parity.
func WithParity(p Parity) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if p < NoParity || p > EvenParity {
			return fmt.Errorf("servo: invalid parity %d", p)
		}
		cfg.mode.Parity = p

		return nil
	})
}

// WithStopBits sets the number of stop bits.
func WithStopBits(sb StopBits) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if sb != OneStopBit && sb != TwoStopBits {
			return fmt.Errorf("servo: invalid stop bits %d", sb)
		}
		cfg.mode.StopBits = sb

		return nil
	})
}

// WithMinInterval sets the minimum gap between two command writes.
func WithMinInterval(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinMinInterval || d > MaxMinInterval {
			return fmt.Errorf("servo: min interval %v out of range [%v, %v]", d, MinMinInterval, MaxMinInterval)
		}
		cfg.minInterval = d

		return nil
	})
}

// WithHomePosition sets the courtesy position sent before disconnecting.
func WithHomePosition(p Position) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if !p.Valid() {
			return fmt.Errorf("servo: home position %d out of range [%d, %d]", p, MinPosition, MaxPosition)
		}
		cfg.homePosition = p

		return nil
	})
}

// WithCloseTimeout sets how long Disconnect waits for an in-flight write before closing anyway.
func WithCloseTimeout(d time.Duration) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if d < MinCloseTimeout || d > MaxCloseTimeout {
			return fmt.Errorf("servo: close timeout %v out of range [%v, %v]", d, MinCloseTimeout, MaxCloseTimeout)
		}
		cfg.closeTimeout = d

		return nil
	})
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l logger.Logger) SessionOption {
	return sessionOptFunc(func(cfg *SessionConfig) error {
		if l != nil {
			cfg.logger = l
		}

		return nil
	})
}
