// Package config loads the quiz host configuration from a YAML file and
// BUZZER_* environment variables, and translates it into options for the
// servo, bridge, chat and logger packages.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-buzzer/bridge"
	"github.com/arloliu/go-buzzer/chat"
	"github.com/arloliu/go-buzzer/logger"
	"github.com/arloliu/go-buzzer/servo"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BUZZER_SERIAL_DEVICE.
const EnvPrefix = "BUZZER"

// Config is the root application configuration.
type Config struct {
	Serial  SerialConfig  `mapstructure:"serial"`
	Presets PresetsConfig `mapstructure:"presets"`
	Chat    ChatConfig    `mapstructure:"chat"`
	Log     LogConfig     `mapstructure:"log"`
}

// SerialConfig describes the servo link.
type SerialConfig struct {
	// Device skips selection when set, e.g. /dev/ttyACM0 or COM3.
	Device string `mapstructure:"device"`
	// VendorID and ProductID filter USB devices, hex, empty means any.
	VendorID  string `mapstructure:"vendor_id"`
	ProductID string `mapstructure:"product_id"`

	BaudRate int    `mapstructure:"baud_rate"`
	DataBits int    `mapstructure:"data_bits"`
	Parity   string `mapstructure:"parity"`
	StopBits int    `mapstructure:"stop_bits"`

	MinInterval  time.Duration `mapstructure:"min_interval"`
	CloseTimeout time.Duration `mapstructure:"close_timeout"`
	HomePosition int           `mapstructure:"home_position"`
}

// PresetsConfig maps quiz events to servo angles.
type PresetsConfig struct {
	QuestionActive int `mapstructure:"question_active"`
	AnswerReceived int `mapstructure:"answer_received"`
}

// ChatConfig configures the chat-completion client.
type ChatConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Backend: slog or zap
	Backend string `mapstructure:"backend"`
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format    string `mapstructure:"format"`
	AddSource bool   `mapstructure:"add_source"`
	// File adds a rotated log file; zap backend only.
	File     string         `mapstructure:"file"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig controls log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// Default returns a Config populated with the defaults.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			BaudRate:     servo.DefaultBaudRate,
			DataBits:     servo.DefaultDataBits,
			Parity:       "none",
			StopBits:     1,
			MinInterval:  servo.DefaultMinInterval,
			CloseTimeout: servo.DefaultCloseTimeout,
			HomePosition: int(servo.HomePosition),
		},
		Presets: PresetsConfig{
			QuestionActive: int(servo.HomePosition),
			AnswerReceived: int(servo.LoweredPosition),
		},
		Chat: ChatConfig{
			BaseURL:      chat.DefaultBaseURL,
			Model:        chat.DefaultModel,
			SystemPrompt: chat.DefaultSystemPrompt,
			Timeout:      30 * time.Second,
		},
		Log: LogConfig{
			Backend: "slog",
			Level:   "info",
			Format:  "console",
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from path (if non-empty), otherwise from
// BUZZER_CONFIG or buzzer.yaml in the usual locations. A missing file is not
// an error. Environment variables override the file, with `.` replaced by `_`:
// BUZZER_CHAT_API_KEY=sk-... . OPENAI_API_KEY is used when no key is set.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults so env-only configs work
	v.SetDefault("serial.device", cfg.Serial.Device)
	v.SetDefault("serial.vendor_id", cfg.Serial.VendorID)
	v.SetDefault("serial.product_id", cfg.Serial.ProductID)
	v.SetDefault("serial.baud_rate", cfg.Serial.BaudRate)
	v.SetDefault("serial.data_bits", cfg.Serial.DataBits)
	v.SetDefault("serial.parity", cfg.Serial.Parity)
	v.SetDefault("serial.stop_bits", cfg.Serial.StopBits)
	v.SetDefault("serial.min_interval", cfg.Serial.MinInterval)
	v.SetDefault("serial.close_timeout", cfg.Serial.CloseTimeout)
	v.SetDefault("serial.home_position", cfg.Serial.HomePosition)
	v.SetDefault("presets.question_active", cfg.Presets.QuestionActive)
	v.SetDefault("presets.answer_received", cfg.Presets.AnswerReceived)
	v.SetDefault("chat.api_key", cfg.Chat.APIKey)
	v.SetDefault("chat.base_url", cfg.Chat.BaseURL)
	v.SetDefault("chat.model", cfg.Chat.Model)
	v.SetDefault("chat.system_prompt", cfg.Chat.SystemPrompt)
	v.SetDefault("chat.timeout", cfg.Chat.Timeout)
	v.SetDefault("log.backend", cfg.Log.Backend)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.add_source", cfg.Log.AddSource)
	v.SetDefault("log.file", cfg.Log.File)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("buzzer")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".buzzer"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if cfg.Chat.APIKey == "" {
		cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate normalizes the configuration and reports the first invalid value.
func (c *Config) Validate() error {
	c.Serial.Device = strings.TrimSpace(c.Serial.Device)
	if _, err := parseUSBID(c.Serial.VendorID); err != nil {
		return fmt.Errorf("config: invalid serial.vendor_id: %w", err)
	}
	if _, err := parseUSBID(c.Serial.ProductID); err != nil {
		return fmt.Errorf("config: invalid serial.product_id: %w", err)
	}
	if c.Serial.BaudRate <= 0 || c.Serial.BaudRate > servo.MaxBaudRate {
		return fmt.Errorf("config: invalid serial.baud_rate: %d", c.Serial.BaudRate)
	}
	if c.Serial.DataBits < 5 || c.Serial.DataBits > 8 {
		return fmt.Errorf("config: invalid serial.data_bits: %d", c.Serial.DataBits)
	}
	if _, err := parseParity(c.Serial.Parity); err != nil {
		return err
	}
	if c.Serial.StopBits != 1 && c.Serial.StopBits != 2 {
		return fmt.Errorf("config: invalid serial.stop_bits: %d", c.Serial.StopBits)
	}
	if c.Serial.MinInterval < servo.MinMinInterval || c.Serial.MinInterval > servo.MaxMinInterval {
		return fmt.Errorf("config: invalid serial.min_interval: %s", c.Serial.MinInterval)
	}
	if c.Serial.CloseTimeout < servo.MinCloseTimeout || c.Serial.CloseTimeout > servo.MaxCloseTimeout {
		return fmt.Errorf("config: invalid serial.close_timeout: %s", c.Serial.CloseTimeout)
	}
	if !servo.Position(c.Serial.HomePosition).Valid() {
		return fmt.Errorf("config: invalid serial.home_position: %d", c.Serial.HomePosition)
	}
	if !servo.Position(c.Presets.QuestionActive).Valid() {
		return fmt.Errorf("config: invalid presets.question_active: %d", c.Presets.QuestionActive)
	}
	if !servo.Position(c.Presets.AnswerReceived).Valid() {
		return fmt.Errorf("config: invalid presets.answer_received: %d", c.Presets.AnswerReceived)
	}
	if c.Chat.Timeout <= 0 {
		return fmt.Errorf("config: invalid chat.timeout: %s", c.Chat.Timeout)
	}

	c.Log.Backend = strings.ToLower(strings.TrimSpace(c.Log.Backend))
	switch c.Log.Backend {
	case "", "slog":
		c.Log.Backend = "slog"
	case "zap":
	default:
		return fmt.Errorf("config: invalid log.backend: %q", c.Log.Backend)
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: invalid log.level: %q", c.Log.Level)
	}

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	switch c.Log.Format {
	case "", "console":
		c.Log.Format = "console"
	case "json":
	default:
		return fmt.Errorf("config: invalid log.format: %q", c.Log.Format)
	}

	return nil
}

// SerialHostOptions returns the options for servo.NewSerialHost.
func (c *Config) SerialHostOptions(l logger.Logger) []servo.SerialHostOption {
	opts := []servo.SerialHostOption{servo.WithHostLogger(l)}
	if c.Serial.Device != "" {
		opts = append(opts, servo.WithDevice(c.Serial.Device))
	}

	return opts
}

// SessionOptions returns the options for servo.NewSessionConfig.
// The config must have passed Validate.
func (c *Config) SessionOptions(l logger.Logger) []servo.SessionOption {
	vid, _ := parseUSBID(c.Serial.VendorID)
	pid, _ := parseUSBID(c.Serial.ProductID)
	parity, _ := parseParity(c.Serial.Parity)
	stopBits := servo.OneStopBit
	if c.Serial.StopBits == 2 {
		stopBits = servo.TwoStopBits
	}

	return []servo.SessionOption{
		servo.WithPortFilter(vid, pid),
		servo.WithBaudRate(c.Serial.BaudRate),
		servo.WithDataBits(c.Serial.DataBits),
		servo.WithParity(parity),
		servo.WithStopBits(stopBits),
		servo.WithMinInterval(c.Serial.MinInterval),
		servo.WithCloseTimeout(c.Serial.CloseTimeout),
		servo.WithHomePosition(servo.Position(c.Serial.HomePosition)),
		servo.WithLogger(l),
	}
}

// BridgeOptions returns the options for bridge.New.
func (c *Config) BridgeOptions(l logger.Logger) []bridge.Option {
	return []bridge.Option{
		bridge.WithPreset(bridge.QuestionActive, servo.Position(c.Presets.QuestionActive)),
		bridge.WithPreset(bridge.AnswerReceived, servo.Position(c.Presets.AnswerReceived)),
		bridge.WithLogger(l),
	}
}

// ChatOptions returns the options for chat.NewClient.
func (c *Config) ChatOptions(l logger.Logger) []chat.ClientOption {
	return []chat.ClientOption{
		chat.WithBaseURL(c.Chat.BaseURL),
		chat.WithModel(c.Chat.Model),
		chat.WithSystemPrompt(c.Chat.SystemPrompt),
		chat.WithTimeout(c.Chat.Timeout),
		chat.WithLogger(l),
	}
}

// NewLogger builds the configured logger backend.
func (c *Config) NewLogger() logger.Logger {
	level := logger.ParseLevel(c.Log.Level)
	if c.Log.Backend == "zap" {
		return logger.NewZap(logger.ZapOptions{
			Level:      level,
			Console:    c.Log.Format == "console",
			File:       c.Log.File,
			MaxSizeMB:  c.Log.Rotation.MaxSizeMB,
			MaxBackups: c.Log.Rotation.MaxBackups,
			MaxAgeDays: c.Log.Rotation.MaxAgeDays,
			Compress:   c.Log.Rotation.Compress,
		})
	}

	return logger.NewSlogWithWriter(os.Stdout, level, c.Log.AddSource, c.Log.Format == "console")
}

func parseUSBID(s string) (uint16, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}

	return uint16(id), nil
}

func parseParity(s string) (servo.Parity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "n":
		return servo.NoParity, nil
	case "odd", "o":
		return servo.OddParity, nil
	case "even", "e":
		return servo.EvenParity, nil
	default:
		return servo.NoParity, fmt.Errorf("config: invalid serial.parity: %q", s)
	}
}
