// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/user/texdecode/pkg/ports"
)

// Platform names accepted in the platform field.
const (
	PlatformAuto      = "auto"
	PlatformAndroid   = "android"
	PlatformGStreamer = "gstreamer"
	PlatformSimulated = "simulated"
)

// Config represents the full configuration for texdecode.
type Config struct {
	// Input
	Input string `yaml:"input"`
	// Codec overrides detection from the container ("h264", "hevc").
	Codec  string `yaml:"codec"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`

	// Decoding
	Platform            string         `yaml:"platform"`
	Layers              int            `yaml:"layers"`
	MaxFrames           int            `yaml:"max_frames"`
	PushTimeoutMs       int            `yaml:"push_timeout_ms"`
	PullTimeoutMs       int            `yaml:"pull_timeout_ms"`
	CompletionTimeoutMs int            `yaml:"completion_timeout_ms"`
	DrainTimeoutMs      int            `yaml:"drain_timeout_ms"`
	Options             []OptionConfig `yaml:"options"`

	// GStreamer backend
	GStreamer GStreamerConfig `yaml:"gstreamer"`

	// Output
	Output OutputConfig `yaml:"output"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// OptionConfig is one extra decoder configuration key.
type OptionConfig struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"` // float, int32, int64, string
	Value string `yaml:"value"`
}

// GStreamerConfig tunes the GStreamer backend.
type GStreamerConfig struct {
	// Decoder is the decoder element; empty picks the first available hardware decoder.
	Decoder       string `yaml:"decoder"`
	InputBuffers  int    `yaml:"input_buffers"`
	OutputBuffers int    `yaml:"output_buffers"`
}

// OutputConfig controls where decoded slices are written.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Format   string `yaml:"format"` // png, jpeg
	Quality  int    `yaml:"quality"`
	Annotate bool   `yaml:"annotate"`
	MaxWidth int    `yaml:"max_width"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		// Decoding
		Platform:            PlatformAuto,
		Layers:              4,
		PushTimeoutMs:       10,
		PullTimeoutMs:       10,
		CompletionTimeoutMs: 1000,
		DrainTimeoutMs:      2000,

		// GStreamer backend
		GStreamer: GStreamerConfig{
			InputBuffers:  4,
			OutputBuffers: 2,
		},

		// Output
		Output: OutputConfig{
			Format:  "png",
			Quality: 90,
		},

		LogLevel: "info",
	}
}

// Load reads a YAML file through fs. Fields absent from the file keep their
// defaults.
func Load(fs ports.FileSystem, path string) (Config, error) {
	cfg := Defaults()

	data, err := fs.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Codec != "" {
		if _, err := ports.ParseCodecType(c.Codec); err != nil {
			return err
		}
	}
	if c.Width < 0 || c.Height < 0 || (c.Width == 0) != (c.Height == 0) {
		return fmt.Errorf("config: width and height must both be set and positive, got %dx%d", c.Width, c.Height)
	}
	switch c.Platform {
	case PlatformAuto, PlatformAndroid, PlatformGStreamer, PlatformSimulated:
	default:
		return fmt.Errorf("config: unknown platform %q", c.Platform)
	}
	if c.Layers < 1 {
		return fmt.Errorf("config: layers must be at least 1, got %d", c.Layers)
	}
	if c.PushTimeoutMs < 0 || c.PullTimeoutMs < 0 || c.CompletionTimeoutMs <= 0 || c.DrainTimeoutMs < 0 {
		return errors.New("config: timeouts must not be negative and completion_timeout_ms must be positive")
	}
	if c.MaxFrames < 0 {
		return fmt.Errorf("config: max_frames must not be negative, got %d", c.MaxFrames)
	}
	if _, ok := ports.LookupLogLevel(c.LogLevel); !ok {
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	if _, err := c.EncodeFormat(); err != nil {
		return err
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("config: output quality must be 1-100, got %d", c.Output.Quality)
	}
	_, err := c.ToDecodeOptions()
	return err
}

// VideoSize returns the configured size override, or the zero size.
func (c Config) VideoSize() ports.VideoSize {
	return ports.VideoSize{Width: uint32(c.Width), Height: uint32(c.Height)}
}

// EncodeFormat maps the output format name.
func (c Config) EncodeFormat() (ports.EncodeFormat, error) {
	switch strings.ToLower(c.Output.Format) {
	case "", "png":
		return ports.FormatPNG, nil
	case "jpeg", "jpg":
		return ports.FormatJPEG, nil
	default:
		return 0, fmt.Errorf("config: unknown output format %q", c.Output.Format)
	}
}

// ToDecodeOptions converts the option list to typed decoder options.
func (c Config) ToDecodeOptions() (ports.DecodeOptions, error) {
	opts := make(ports.DecodeOptions, 0, len(c.Options))
	for _, o := range c.Options {
		if o.Name == "" {
			return nil, errors.New("config: option without a name")
		}
		v, err := parseOptionValue(o)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ports.DecodeOption{Name: o.Name, Value: v})
	}
	return opts, nil
}

func parseOptionValue(o OptionConfig) (ports.OptionValue, error) {
	switch o.Type {
	case "float", "float32":
		f, err := strconv.ParseFloat(o.Value, 32)
		if err != nil {
			return nil, fmt.Errorf("config: option %s: %w", o.Name, err)
		}
		return ports.Float32(f), nil
	case "int", "int32":
		i, err := strconv.ParseInt(o.Value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("config: option %s: %w", o.Name, err)
		}
		return ports.Int32(i), nil
	case "int64":
		i, err := strconv.ParseInt(o.Value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("config: option %s: %w", o.Name, err)
		}
		return ports.Int64(i), nil
	case "string", "":
		return ports.String(o.Value), nil
	default:
		return nil, fmt.Errorf("config: option %s has unknown type %q", o.Name, o.Type)
	}
}

// PushTimeout returns the input dequeue timeout.
func (c Config) PushTimeout() time.Duration {
	return time.Duration(c.PushTimeoutMs) * time.Millisecond
}

// PullTimeout returns the output dequeue timeout.
func (c Config) PullTimeout() time.Duration {
	return time.Duration(c.PullTimeoutMs) * time.Millisecond
}

// CompletionTimeout returns the texture copy completion bound.
func (c Config) CompletionTimeout() time.Duration {
	return time.Duration(c.CompletionTimeoutMs) * time.Millisecond
}

// DrainTimeout returns how long to keep pulling after the last input.
func (c Config) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutMs) * time.Millisecond
}
