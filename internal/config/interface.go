package config

import (
	"context"
	"errors"
	"time"
)

// ErrConfigNotFound matches any ConfigError raised for an unset key
var ErrConfigNotFound = errors.New("configuration not found")

// ConfigService defines the interface for configuration management
type ConfigService interface {
	// GetConfig retrieves a configuration value by key, returns error if not found
	GetConfig(ctx context.Context, key string) (string, error)

	// GetConfigWithDefault retrieves a configuration value by key with fallback to default
	GetConfigWithDefault(ctx context.Context, key, defaultValue string) string

	// GetConfigInt retrieves a configuration value as integer
	GetConfigInt(ctx context.Context, key string) (int, error)

	// GetConfigIntWithDefault retrieves a configuration value as integer with default
	GetConfigIntWithDefault(ctx context.Context, key string, defaultValue int) int

	// GetConfigFloat retrieves a configuration value as float64
	GetConfigFloat(ctx context.Context, key string) (float64, error)

	// GetConfigBool retrieves a configuration value as boolean
	GetConfigBool(ctx context.Context, key string) (bool, error)

	// GetConfigBoolWithDefault retrieves a configuration value as boolean with default
	GetConfigBoolWithDefault(ctx context.Context, key string, defaultValue bool) bool

	// GetConfigDuration retrieves a configuration value as time.Duration
	GetConfigDuration(ctx context.Context, key string) (time.Duration, error)

	// GetConfigDurationWithDefault retrieves a configuration value as duration with default
	GetConfigDurationWithDefault(ctx context.Context, key string, defaultValue time.Duration) time.Duration

	// GetAllConfigs retrieves all known non-secure configurations as a key-value map
	GetAllConfigs(ctx context.Context) (map[string]string, error)
}

// ConfigError represents configuration-related errors
type ConfigError struct {
	Key     string
	Message string
	Cause   error

	notFound bool
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Key != "" {
		msg = e.Key + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfigNotFound && e.notFound
}

// NewConfigError creates a new configuration error
func NewConfigError(key, message string, cause error) *ConfigError {
	return &ConfigError{
		Key:     key,
		Message: message,
		Cause:   cause,
	}
}

func newNotFoundError(key, message string) *ConfigError {
	return &ConfigError{Key: key, Message: message, notFound: true}
}
