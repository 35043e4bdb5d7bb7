package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration keys
const (
	KeyGeminiAPIKey        = "GEMINI_API_KEY"
	KeyGeminiBaseURL       = "GEMINI_BASE_URL"
	KeyGeminiModel         = "GEMINI_MODEL"
	KeyGeminiTimeout       = "GEMINI_TIMEOUT"
	KeyRateLimitPerMinute  = "AI_PROVIDER_GEMINI_RATE_LIMIT_PER_MINUTE"
	KeyRateLimitPerDay     = "AI_PROVIDER_GEMINI_RATE_LIMIT_PER_DAY"
	KeyWarningThreshold    = "AI_PROVIDER_GEMINI_WARNING_THRESHOLD"
	KeyThrottledThreshold  = "AI_PROVIDER_GEMINI_THROTTLED_THRESHOLD"
	KeyRateLimitingEnabled = "RATE_LIMITING_ENABLED"
	KeyBatchMaxConcurrency = "BATCH_MAX_CONCURRENCY"
	KeyBatchRequestsPerSec = "BATCH_REQUESTS_PER_SECOND"
	KeyHTTPAddr            = "HTTP_ADDR"
	KeyLogLevel            = "LOG_LEVEL"
)

// SecureConfigKeys defines configuration keys that must remain in environment variables for security reasons
var SecureConfigKeys = map[string]bool{
	KeyGeminiAPIKey: true,
}

// KnownKeys lists every non-secure key reported by GetAllConfigs
var KnownKeys = []string{
	KeyGeminiBaseURL,
	KeyGeminiModel,
	KeyGeminiTimeout,
	KeyRateLimitPerMinute,
	KeyRateLimitPerDay,
	KeyWarningThreshold,
	KeyThrottledThreshold,
	KeyRateLimitingEnabled,
	KeyBatchMaxConcurrency,
	KeyBatchRequestsPerSec,
	KeyHTTPAddr,
	KeyLogLevel,
}

// EnvironmentConfigService implements ConfigService on top of viper.
// Values come from bound flags, then the environment. Secure keys only ever come from the environment.
type EnvironmentConfigService struct {
	v *viper.Viper
}

// NewEnvironmentConfigService wraps v. A nil v gets a fresh viper reading the environment.
func NewEnvironmentConfigService(v *viper.Viper) *EnvironmentConfigService {
	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()
	return &EnvironmentConfigService{v: v}
}

// Viper exposes the underlying instance so callers can bind flags
func (s *EnvironmentConfigService) Viper() *viper.Viper {
	return s.v
}

// GetConfig retrieves a configuration value by key, returns error if not found
func (s *EnvironmentConfigService) GetConfig(_ context.Context, key string) (string, error) {
	// For secure keys, always use environment variables
	if SecureConfigKeys[key] {
		value := os.Getenv(key)
		if value == "" {
			return "", newNotFoundError(key, "secure configuration not found in environment variables")
		}
		return value, nil
	}

	value := strings.TrimSpace(s.v.GetString(key))
	if value == "" {
		return "", newNotFoundError(key, "configuration not found")
	}
	return value, nil
}

// GetConfigWithDefault retrieves a configuration value by key with fallback to default
func (s *EnvironmentConfigService) GetConfigWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetConfigInt retrieves a configuration value as integer
func (s *EnvironmentConfigService) GetConfigInt(ctx context.Context, key string) (int, error) {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return 0, err
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, NewConfigError(key, "invalid integer value", err)
	}

	return intValue, nil
}

// GetConfigIntWithDefault retrieves a configuration value as integer with default
func (s *EnvironmentConfigService) GetConfigIntWithDefault(ctx context.Context, key string, defaultValue int) int {
	value, err := s.GetConfigInt(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetConfigFloat retrieves a configuration value as float64
func (s *EnvironmentConfigService) GetConfigFloat(ctx context.Context, key string) (float64, error) {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return 0, err
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, NewConfigError(key, "invalid float value", err)
	}

	return f, nil
}

// GetConfigBool retrieves a configuration value as boolean
func (s *EnvironmentConfigService) GetConfigBool(ctx context.Context, key string) (bool, error) {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return false, err
	}

	// Parse boolean values flexibly
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on", "enabled":
		return true, nil
	case "false", "0", "no", "off", "disabled":
		return false, nil
	default:
		return false, NewConfigError(key, "invalid boolean value", nil)
	}
}

// GetConfigBoolWithDefault retrieves a configuration value as boolean with default
func (s *EnvironmentConfigService) GetConfigBoolWithDefault(ctx context.Context, key string, defaultValue bool) bool {
	value, err := s.GetConfigBool(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetConfigDuration retrieves a configuration value as time.Duration
func (s *EnvironmentConfigService) GetConfigDuration(ctx context.Context, key string) (time.Duration, error) {
	value, err := s.GetConfig(ctx, key)
	if err != nil {
		return 0, err
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, NewConfigError(key, "invalid duration value", err)
	}

	return duration, nil
}

// GetConfigDurationWithDefault retrieves a configuration value as duration with default
func (s *EnvironmentConfigService) GetConfigDurationWithDefault(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	value, err := s.GetConfigDuration(ctx, key)
	if err != nil {
		return defaultValue
	}
	return value
}

// GetAllConfigs retrieves every set KnownKeys value. Secure keys are never included.
func (s *EnvironmentConfigService) GetAllConfigs(ctx context.Context) (map[string]string, error) {
	result := make(map[string]string, len(KnownKeys))
	for _, key := range KnownKeys {
		if value, err := s.GetConfig(ctx, key); err == nil {
			result[key] = value
		}
	}
	return result, nil
}
