package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/arloliu/go-buzzer/bridge"
	"github.com/arloliu/go-buzzer/chat"
	"github.com/arloliu/go-buzzer/logger"
	"github.com/arloliu/go-buzzer/servo"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buzzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad_Defaults(t *testing.T) {
	require := require.New(t)
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(err)
	require.Equal(Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	require := require.New(t)

	path := writeConfig(t, `
serial:
  device: " /dev/ttyACM0 "
  vendor_id: "0x2341"
  product_id: "0043"
  baud_rate: 115200
  parity: even
  stop_bits: 2
  min_interval: 100ms
  home_position: 45
presets:
  question_active: 120
  answer_received: 10
chat:
  api_key: sk-file
  model: gpt-4o-mini
  timeout: 5s
log:
  backend: ZAP
  level: DEBUG
  format: json
`)

	cfg, err := Load(path)
	require.NoError(err)
	require.Equal("/dev/ttyACM0", cfg.Serial.Device)
	require.Equal(115200, cfg.Serial.BaudRate)
	require.Equal(8, cfg.Serial.DataBits)
	require.Equal(100*time.Millisecond, cfg.Serial.MinInterval)
	require.Equal(servo.DefaultCloseTimeout, cfg.Serial.CloseTimeout)
	require.Equal(45, cfg.Serial.HomePosition)
	require.Equal(120, cfg.Presets.QuestionActive)
	require.Equal("sk-file", cfg.Chat.APIKey)
	require.Equal("gpt-4o-mini", cfg.Chat.Model)
	require.Equal(chat.DefaultBaseURL, cfg.Chat.BaseURL)
	require.Equal(5*time.Second, cfg.Chat.Timeout)
	require.Equal("zap", cfg.Log.Backend)
	require.Equal("debug", cfg.Log.Level)
	require.Equal("json", cfg.Log.Format)

	sc, err := servo.NewSessionConfig(nil, cfg.SessionOptions(nil)...)
	require.NoError(err)
	require.Equal(servo.PortFilter{VendorID: 0x2341, ProductID: 0x0043}, sc.PortFilter())
	require.Equal(115200, sc.BaudRate())
	require.Equal(servo.EvenParity, sc.PortMode().Parity)
	require.Equal(servo.TwoStopBits, sc.PortMode().StopBits)
	require.Equal(100*time.Millisecond, sc.MinInterval())
	require.Equal(servo.Position(45), sc.HomePosition())

	b := bridge.New(nil, cfg.BridgeOptions(nil)...)
	pos, ok := b.Preset(bridge.QuestionActive)
	require.True(ok)
	require.Equal(servo.Position(120), pos)
	pos, ok = b.Preset(bridge.AnswerReceived)
	require.True(ok)
	require.Equal(servo.Position(10), pos)

	c := chat.NewClient(cfg.Chat.APIKey, cfg.ChatOptions(nil)...)
	require.Equal("gpt-4o-mini", c.Model())

	l := cfg.NewLogger()
	require.IsType(&logger.ZapLogger{}, l)
	require.Equal(logger.DebugLevel, l.Level())
}

func TestLoad_EnvOverrides(t *testing.T) {
	require := require.New(t)

	t.Setenv("BUZZER_SERIAL_DEVICE", "COM3")
	t.Setenv("BUZZER_SERIAL_MIN_INTERVAL", "20ms")
	t.Setenv("BUZZER_CHAT_MODEL", "gpt-4o")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(writeConfig(t, "serial:\n  device: /dev/ttyUSB0\n"))
	require.NoError(err)
	require.Equal("COM3", cfg.Serial.Device)
	require.Equal(20*time.Millisecond, cfg.Serial.MinInterval)
	require.Equal("gpt-4o", cfg.Chat.Model)
	require.Equal("sk-env", cfg.Chat.APIKey)

	t.Setenv("BUZZER_CHAT_API_KEY", "sk-buzzer")
	cfg, err = Load(writeConfig(t, ""))
	require.NoError(err)
	require.Equal("sk-buzzer", cfg.Chat.APIKey)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	require := require.New(t)

	t.Setenv("BUZZER_CONFIG", writeConfig(t, "chat:\n  model: from-env-path\n"))
	cfg, err := Load("")
	require.NoError(err)
	require.Equal("from-env-path", cfg.Chat.Model)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "serial: [\n"},
		{"vendor id", "serial:\n  vendor_id: zz\n"},
		{"baud rate", "serial:\n  baud_rate: 0\n"},
		{"data bits", "serial:\n  data_bits: 9\n"},
		{"parity", "serial:\n  parity: mark\n"},
		{"stop bits", "serial:\n  stop_bits: 3\n"},
		{"min interval", "serial:\n  min_interval: 1us\n"},
		{"home", "serial:\n  home_position: 181\n"},
		{"preset", "presets:\n  answer_received: -1\n"},
		{"chat timeout", "chat:\n  timeout: 0s\n"},
		{"backend", "log:\n  backend: logrus\n"},
		{"level", "log:\n  level: verbose\n"},
		{"format", "log:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
		})
	}
}

func TestParseUSBID(t *testing.T) {
	require := require.New(t)

	id, err := parseUSBID("")
	require.NoError(err)
	require.Zero(id)

	id, err = parseUSBID("0X1A86")
	require.NoError(err)
	require.Equal(uint16(0x1a86), id)

	_, err = parseUSBID("12345")
	require.Error(err)
}

func TestSerialHostOptions(t *testing.T) {
	cfg := Default()
	require.Len(t, cfg.SerialHostOptions(nil), 1)

	cfg.Serial.Device = "/dev/ttyACM0"
	require.Len(t, cfg.SerialHostOptions(nil), 2)
}
