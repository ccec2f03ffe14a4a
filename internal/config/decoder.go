package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/chirp/internal/chirp"
	"github.com/banshee-data/chirp/internal/serialmux"
)

// DefaultConfigPath is the path to the canonical decoder defaults file.
const DefaultConfigPath = "config/chirp.defaults.json"

// DecoderConfig is the root configuration of the chirp decoder. Every field is
// optional; the Get* methods supply defaults for fields left out of the file,
// so partial configs are safe.
type DecoderConfig struct {
	// Parser params
	BufferCeilingBytes *int `json:"buffer_ceiling_bytes,omitempty"`

	// Serial params
	SerialPort      *string `json:"serial_port,omitempty"`
	BaudRate        *int    `json:"baud_rate,omitempty"`
	DataBits        *int    `json:"data_bits,omitempty"`
	StopBits        *int    `json:"stop_bits,omitempty"`
	Parity          *string `json:"parity,omitempty"`
	ReadBufferBytes *int    `json:"read_buffer_bytes,omitempty"`
	ReadTimeout     *string `json:"read_timeout,omitempty"` // duration string like "100ms"

	// Service params
	ListenAddr *string `json:"listen_addr,omitempty"` // empty disables the HTTP listener
	Debug      *bool   `json:"debug,omitempty"`
}

// Helper functions to create pointers
func ptrBool(v bool) *bool       { return &v }
func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyDecoderConfig returns a DecoderConfig with all fields set to nil.
func EmptyDecoderConfig() *DecoderConfig {
	return &DecoderConfig{}
}

// DefaultDecoderConfig returns a DecoderConfig with every field set to its
// default value.
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		BufferCeilingBytes: ptrInt(chirp.DefaultBufferCeiling),
		SerialPort:         ptrString("/dev/ttyACM1"),
		BaudRate:           ptrInt(serialmux.DefaultBaudRate),
		DataBits:           ptrInt(8),
		StopBits:           ptrInt(1),
		Parity:             ptrString("N"),
		ReadBufferBytes:    ptrInt(serialmux.DefaultReadBufferSize),
		ReadTimeout:        ptrString("100ms"),
		ListenAddr:         ptrString(""),
		Debug:              ptrBool(false),
	}
}

// LoadDecoderConfig loads a DecoderConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
func LoadDecoderConfig(path string) (*DecoderConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyDecoderConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDefaultDecoderConfig loads DefaultConfigPath relative to the working
// directory. When the file does not exist the built-in defaults are returned.
func LoadDefaultDecoderConfig() (*DecoderConfig, error) {
	if _, err := os.Stat(DefaultConfigPath); errors.Is(err, fs.ErrNotExist) {
		return DefaultDecoderConfig(), nil
	}
	return LoadDecoderConfig(DefaultConfigPath)
}

// Validate checks that the configuration values are valid.
func (c *DecoderConfig) Validate() error {
	if c.BufferCeilingBytes != nil {
		if n := *c.BufferCeilingBytes; n < chirp.HeaderLenStandard || n > chirp.MaxFrameLen {
			return fmt.Errorf("buffer_ceiling_bytes must be between %d and %d, got %d",
				chirp.HeaderLenStandard, chirp.MaxFrameLen, n)
		}
	}

	if c.ReadBufferBytes != nil && *c.ReadBufferBytes <= 0 {
		return fmt.Errorf("read_buffer_bytes must be positive, got %d", *c.ReadBufferBytes)
	}

	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		d, err := time.ParseDuration(*c.ReadTimeout)
		if err != nil {
			return fmt.Errorf("invalid read_timeout '%s': %w", *c.ReadTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("read_timeout must be non-negative, got %s", d)
		}
	}

	if _, err := c.PortOptions().Normalize(); err != nil {
		return err
	}

	return nil
}

// GetBufferCeilingBytes returns the buffer_ceiling_bytes value or the default.
func (c *DecoderConfig) GetBufferCeilingBytes() int {
	if c.BufferCeilingBytes == nil {
		return chirp.DefaultBufferCeiling
	}
	return *c.BufferCeilingBytes
}

// GetSerialPort returns the serial_port value or the default.
func (c *DecoderConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyACM1"
	}
	return *c.SerialPort
}

// GetReadBufferBytes returns the read_buffer_bytes value or the default.
func (c *DecoderConfig) GetReadBufferBytes() int {
	if c.ReadBufferBytes == nil {
		return serialmux.DefaultReadBufferSize
	}
	return *c.ReadBufferBytes
}

// GetReadTimeout parses and returns the ReadTimeout as a time.Duration. Zero
// means reads block until data arrives.
func (c *DecoderConfig) GetReadTimeout() time.Duration {
	if c.ReadTimeout == nil || *c.ReadTimeout == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.ReadTimeout)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// GetListenAddr returns the listen_addr value or the default (disabled).
func (c *DecoderConfig) GetListenAddr() string {
	if c.ListenAddr == nil {
		return ""
	}
	return *c.ListenAddr
}

// GetDebug returns the debug value or the default.
func (c *DecoderConfig) GetDebug() bool {
	if c.Debug == nil {
		return false
	}
	return *c.Debug
}

// PortOptions returns the serial line settings. Unset fields are left zero
// for serialmux.PortOptions.Normalize to default.
func (c *DecoderConfig) PortOptions() serialmux.PortOptions {
	var o serialmux.PortOptions
	if c.BaudRate != nil {
		o.BaudRate = *c.BaudRate
	}
	if c.DataBits != nil {
		o.DataBits = *c.DataBits
	}
	if c.StopBits != nil {
		o.StopBits = *c.StopBits
	}
	if c.Parity != nil {
		o.Parity = *c.Parity
	}
	return o
}

// ParserOptions returns the chirp.Parser options the config implies.
func (c *DecoderConfig) ParserOptions() []chirp.Option {
	return []chirp.Option{chirp.WithBufferCeiling(c.GetBufferCeilingBytes())}
}

// MuxOptions returns the serialmux options the config implies.
func (c *DecoderConfig) MuxOptions() []serialmux.Option {
	return []serialmux.Option{serialmux.WithReadBufferSize(c.GetReadBufferBytes())}
}
