// Package config loads agent configuration from YAML or JSON files.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/heapscope/domain/config"
)

// Loader loads agent configuration from files.
type Loader struct {
	// ExpandEnv enables environment variable expansion.
	ExpandEnv bool
	// StrictEnv fails if referenced env vars are missing.
	StrictEnv bool
	// Validate enables configuration validation.
	Validate bool
}

// NewLoader creates a new configuration loader with default settings.
func NewLoader() *Loader {
	return &Loader{
		ExpandEnv: true,
		StrictEnv: false,
		Validate:  true,
	}
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithEnvExpansion enables or disables environment variable expansion.
func WithEnvExpansion(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.ExpandEnv = enabled
	}
}

// WithStrictEnv enables strict environment variable checking.
func WithStrictEnv(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.StrictEnv = enabled
	}
}

// WithValidation enables or disables configuration validation.
func WithValidation(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.Validate = enabled
	}
}

// NewLoaderWithOptions creates a loader with the specified options.
func NewLoaderWithOptions(opts ...LoaderOption) *Loader {
	l := NewLoader()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Format represents a configuration file format.
type Format string

const (
	// FormatYAML is the YAML format.
	FormatYAML Format = "yaml"
	// FormatJSON is the JSON format.
	FormatJSON Format = "json"
)

// FormatFromPath determines the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", config.ErrUnsupportedFormat, ext)
	}
}

// LoadFile loads configuration from a file path.
func (l *Loader) LoadFile(path string) (*config.AgentConfig, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to access config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", config.ErrInvalidFormat, path)
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return l.Load(f, format)
}

// Load loads configuration from a reader. Missing fields are filled from
// config.Default before validation.
func (l *Loader) Load(r io.Reader, format Format) (*config.AgentConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if l.ExpandEnv {
		data, err = l.expandEnvVars(data)
		if err != nil {
			return nil, err
		}
	}

	cfg := &config.AgentConfig{}
	switch format {
	case FormatYAML:
		if len(bytes.TrimSpace(data)) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
			}
		}
	case FormatJSON:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrInvalidFormat, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrUnsupportedFormat, format)
	}

	// Validate before defaults so negative values are not masked.
	if l.Validate {
		if errs := config.NewValidator().Validate(cfg); errs.HasErrors() {
			return nil, fmt.Errorf("%w: %v", config.ErrValidationFailed, errs)
		}
	}
	cfg.ApplyDefaults()

	return cfg, nil
}

func (l *Loader) expandEnvVars(data []byte) ([]byte, error) {
	expander := &envExpander{strict: l.StrictEnv}
	result, err := expander.Expand(string(data))
	if err != nil {
		return nil, err
	}
	return []byte(result), nil
}

// LoadString loads configuration from a string.
func (l *Loader) LoadString(content string, format Format) (*config.AgentConfig, error) {
	return l.Load(strings.NewReader(content), format)
}

// LoadBytes loads configuration from bytes.
func (l *Loader) LoadBytes(data []byte, format Format) (*config.AgentConfig, error) {
	return l.Load(bytes.NewReader(data), format)
}
