// Package config loads the exporter configuration from the environment.
//
// Every key may be given bare (PORT) or with the SOUND_LEVEL_EXPORTER_ prefix;
// the prefixed form wins. Values from .env files never override variables
// already present in the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// EnvPrefix is the optional prefix of every configuration key.
const EnvPrefix = "SOUND_LEVEL_EXPORTER_"

// Configuration keys.
const (
	KeyPort             = "PORT"
	KeyLogLevel         = "LOG_LEVEL"
	KeySamplingInterval = "SAMPLING_INTERVAL"
	KeyAudioBackend     = "AUDIO_BACKEND"
	KeyAudioDevice      = "AUDIO_DEVICE"
	KeyDeviceName       = "DEVICE_NAME"
	KeyFFmpegPath       = "FFMPEG_PATH"
)

// Configuration defaults are used when values are not specified.
const (
	DefaultPort             = 9854
	DefaultLogLevel         = "INFO"
	DefaultSamplingInterval = 3 // seconds
	DefaultAudioBackend     = "portaudio"
	DefaultEnvFile          = ".env"
)

// Config holds the exporter configuration.
type Config struct {
	Port             int    `env:"PORT" validate:"gte=1,lte=65535"`
	LogLevel         string `env:"LOG_LEVEL" validate:"oneof=DEBUG INFO WARN WARNING ERROR CRITICAL"`
	SamplingInterval int    `env:"SAMPLING_INTERVAL" validate:"gte=1,lte=86400"`
	AudioBackend     string `env:"AUDIO_BACKEND" validate:"oneof=portaudio capture"`
	AudioDevice      string `env:"AUDIO_DEVICE" validate:"omitempty,max=256"`
	DeviceName       string `env:"DEVICE_NAME" validate:"omitempty,max=256"`
	FFmpegPath       string `env:"FFMPEG_PATH" validate:"omitempty,max=4096"`
}

// validate is the shared validator instance.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report environment keys instead of struct field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
}

// New returns a Config with default values.
func New() *Config {
	return &Config{
		Port:             DefaultPort,
		LogLevel:         DefaultLogLevel,
		SamplingInterval: DefaultSamplingInterval,
		AudioBackend:     DefaultAudioBackend,
	}
}

// Load reads .env files into the environment and builds a validated Config
// from it. Without envFiles, DefaultEnvFile is loaded when it exists.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	return FromEnv(os.LookupEnv)
}

func loadEnvFiles(envFiles []string) error {
	if len(envFiles) == 0 {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return nil
		}
		envFiles = []string{DefaultEnvFile}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	slog.Debug("loaded env files", "files", envFiles)
	return nil
}

// FromEnv builds a validated Config using lookup for every key.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	c := New()
	var errs []error

	get := func(key string) (string, bool) {
		if v, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
		return "", false
	}
	getInt := func(key string, dst *int) {
		v, ok := get(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: must be an integer, got %q", key, v))
			return
		}
		*dst = n
	}
	getString := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	getInt(KeyPort, &c.Port)
	getString(KeyLogLevel, &c.LogLevel)
	getInt(KeySamplingInterval, &c.SamplingInterval)
	getString(KeyAudioBackend, &c.AudioBackend)
	getString(KeyAudioDevice, &c.AudioDevice)
	getString(KeyDeviceName, &c.DeviceName)
	getString(KeyFFmpegPath, &c.FFmpegPath)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	c.LogLevel = strings.ToUpper(c.LogLevel)
	c.AudioBackend = strings.ToLower(c.AudioBackend)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks all configuration fields for correctness.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	errs := make([]error, 0, len(verrs))
	for _, e := range verrs {
		errs = append(errs, fmt.Errorf("%s: %s (got %v)", e.Field(), formatValidationMessage(e), e.Value()))
	}
	return errors.Join(errs...)
}

// Interval returns the sampling window length.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.SamplingInterval) * time.Second
}

// formatValidationMessage creates a human-readable message from a validator error.
func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
