package servo

import (
	"testing"
	"time"

	"github.com/arloliu/go-buzzer/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionConfig_Defaults(t *testing.T) {
	cfg, err := NewSessionConfig(nil)
	require.NoError(t, err)

	assert.Nil(t, cfg.Host())
	assert.True(t, cfg.PortFilter().IsZero())
	assert.Equal(t, DefaultBaudRate, cfg.BaudRate())
	assert.Equal(t, PortMode{BaudRate: 9600, DataBits: 8, Parity: NoParity, StopBits: OneStopBit}, cfg.PortMode())
	assert.Equal(t, DefaultMinInterval, cfg.MinInterval())
	assert.Equal(t, HomePosition, cfg.HomePosition())
	assert.Equal(t, DefaultCloseTimeout, cfg.CloseTimeout())
	assert.NotNil(t, cfg.GetLogger())
}

func TestNewSessionConfig_WithOptions(t *testing.T) {
	l := logger.NewMockLogger()
	cfg, err := NewSessionConfig(newFakeHost(),
		WithPortFilter(0x2341, 0x0043),
		WithBaudRate(115200),
		WithDataBits(7),
		WithParity(EvenParity),
		WithStopBits(TwoStopBits),
		WithMinInterval(20*time.Millisecond),
		WithHomePosition(45),
		WithCloseTimeout(time.Second),
		WithLogger(l),
		nil,
	)
	require.NoError(t, err)

	assert.NotNil(t, cfg.Host())
	assert.Equal(t, PortFilter{VendorID: 0x2341, ProductID: 0x0043}, cfg.PortFilter())
	assert.Equal(t, PortMode{BaudRate: 115200, DataBits: 7, Parity: EvenParity, StopBits: TwoStopBits}, cfg.PortMode())
	assert.Equal(t, 20*time.Millisecond, cfg.MinInterval())
	assert.Equal(t, Position(45), cfg.HomePosition())
	assert.Equal(t, time.Second, cfg.CloseTimeout())
	assert.Same(t, l, cfg.GetLogger())
}

func TestNewSessionConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  SessionOption
		want string
	}{
		{"zero baud", WithBaudRate(0), "baud rate"},
		{"huge baud", WithBaudRate(MaxBaudRate + 1), "baud rate"},
		{"data bits", WithDataBits(9), "data bits"},
		{"parity", WithParity(Parity(7)), "parity"},
		{"stop bits", WithStopBits(StopBits(3)), "stop bits"},
		{"interval low", WithMinInterval(0), "min interval"},
		{"interval high", WithMinInterval(MaxMinInterval + time.Second), "min interval"},
		{"home", WithHomePosition(181), "home position"},
		{"close timeout", WithCloseTimeout(time.Millisecond), "close timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSessionConfig(nil, tt.opt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWithLogger_NilKeepsDefault(t *testing.T) {
	cfg, err := NewSessionConfig(nil, WithLogger(nil))
	require.NoError(t, err)
	assert.NotNil(t, cfg.GetLogger())
}

func TestNewSession_NilConfig(t *testing.T) {
	_, err := NewSession(nil)
	require.ErrorIs(t, err, ErrConfigNil)
}
