package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidYAML is returned when the config file cannot be parsed.
	ErrInvalidYAML = errors.New("invalid YAML")

	// ErrInvalidValue is returned when a config value fails validation.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// LoadError wraps a failure to read or parse a configuration file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError creates a LoadError for the given path.
func NewLoadError(path string, err error) error {
	return &LoadError{Path: path, Err: err}
}
