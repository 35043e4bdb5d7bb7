package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reease-summarizer/internal/monitor"
)

// Defaults applied when a key is unset
const (
	DefaultGeminiTimeout      = 30 * time.Second
	DefaultRateLimitPerMinute = 60
	DefaultRateLimitPerDay    = 1000
	DefaultWarningThreshold   = 0.75
	DefaultThrottledThreshold = 1.0
	DefaultHTTPAddr           = ":8080"
)

// Settings is the validated runtime configuration
type Settings struct {
	APIKey              string
	BaseURL             string
	Model               string
	Timeout             time.Duration
	RateLimitingEnabled bool
	RateLimit           monitor.ProviderConfig
	MaxConcurrency      int
	RequestsPerSecond   float64
	HTTPAddr            string
	LogLevel            slog.Level
}

// Load reads and validates Settings from svc.
// A missing API key is not an error here; callers that need one check APIKey themselves.
func Load(ctx context.Context, svc ConfigService) (*Settings, error) {
	s := &Settings{
		APIKey:   svc.GetConfigWithDefault(ctx, KeyGeminiAPIKey, ""),
		BaseURL:  svc.GetConfigWithDefault(ctx, KeyGeminiBaseURL, ""),
		Model:    svc.GetConfigWithDefault(ctx, KeyGeminiModel, ""),
		HTTPAddr: svc.GetConfigWithDefault(ctx, KeyHTTPAddr, DefaultHTTPAddr),
	}

	timeout, err := durationOrDefault(ctx, svc, KeyGeminiTimeout, DefaultGeminiTimeout)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%s must be positive: %s", KeyGeminiTimeout, timeout)
	}
	s.Timeout = timeout

	enabled, err := boolOrDefault(ctx, svc, KeyRateLimitingEnabled, true)
	if err != nil {
		return nil, err
	}
	s.RateLimitingEnabled = enabled

	if s.RateLimit, err = loadRateLimitConfig(ctx, svc); err != nil {
		return nil, err
	}

	concurrency, err := intOrDefault(ctx, svc, KeyBatchMaxConcurrency, 1)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		return nil, fmt.Errorf("%s must be positive: %d", KeyBatchMaxConcurrency, concurrency)
	}
	s.MaxConcurrency = concurrency

	rps, err := floatOrDefault(ctx, svc, KeyBatchRequestsPerSec, 0)
	if err != nil {
		return nil, err
	}
	if rps < 0 {
		return nil, fmt.Errorf("%s must not be negative: %f", KeyBatchRequestsPerSec, rps)
	}
	s.RequestsPerSecond = rps

	level, err := ParseLogLevel(svc.GetConfigWithDefault(ctx, KeyLogLevel, "info"))
	if err != nil {
		return nil, err
	}
	s.LogLevel = level

	return s, nil
}

// ParseLogLevel maps debug, info, warn and error onto slog levels
func ParseLogLevel(value string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid %s: %s", KeyLogLevel, value)
	}
	return level, nil
}

func loadRateLimitConfig(ctx context.Context, svc ConfigService) (monitor.ProviderConfig, error) {
	cfg := monitor.ProviderConfig{
		ProviderID: "gemini",
		Limits:     make(map[string]int),
		Thresholds: make(map[string]float64),
	}

	perMinute, err := intOrDefault(ctx, svc, KeyRateLimitPerMinute, DefaultRateLimitPerMinute)
	if err != nil {
		return cfg, err
	}
	if perMinute <= 0 {
		return cfg, fmt.Errorf("%s must be positive: %d", KeyRateLimitPerMinute, perMinute)
	}
	cfg.Limits["minute"] = perMinute

	perDay, err := intOrDefault(ctx, svc, KeyRateLimitPerDay, DefaultRateLimitPerDay)
	if err != nil {
		return cfg, err
	}
	if perDay <= 0 {
		return cfg, fmt.Errorf("%s must be positive: %d", KeyRateLimitPerDay, perDay)
	}
	cfg.Limits["day"] = perDay

	warning, err := floatOrDefault(ctx, svc, KeyWarningThreshold, DefaultWarningThreshold)
	if err != nil {
		return cfg, err
	}
	if warning <= 0 || warning >= 1 {
		return cfg, fmt.Errorf("%s must be between 0 and 1: %f", KeyWarningThreshold, warning)
	}
	cfg.Thresholds["warning"] = warning

	throttled, err := floatOrDefault(ctx, svc, KeyThrottledThreshold, DefaultThrottledThreshold)
	if err != nil {
		return cfg, err
	}
	if throttled <= 0 || throttled > 1 {
		return cfg, fmt.Errorf("%s must be between 0 and 1: %f", KeyThrottledThreshold, throttled)
	}
	cfg.Thresholds["throttled"] = throttled

	if warning >= throttled {
		return cfg, fmt.Errorf("warning threshold (%f) must be less than throttled threshold (%f)", warning, throttled)
	}

	return cfg, nil
}

// The helpers below treat a missing key as the default and return the ConfigError of a malformed value
func isMissing(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}

func intOrDefault(ctx context.Context, svc ConfigService, key string, def int) (int, error) {
	v, err := svc.GetConfigInt(ctx, key)
	if isMissing(err) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func floatOrDefault(ctx context.Context, svc ConfigService, key string, def float64) (float64, error) {
	v, err := svc.GetConfigFloat(ctx, key)
	if isMissing(err) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

func boolOrDefault(ctx context.Context, svc ConfigService, key string, def bool) (bool, error) {
	v, err := svc.GetConfigBool(ctx, key)
	if isMissing(err) {
		return def, nil
	}
	if err != nil {
		return false, err
	}
	return v, nil
}

func durationOrDefault(ctx context.Context, svc ConfigService, key string, def time.Duration) (time.Duration, error) {
	v, err := svc.GetConfigDuration(ctx, key)
	if isMissing(err) {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}
