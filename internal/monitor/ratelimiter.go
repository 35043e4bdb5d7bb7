package monitor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Provider status values reported by the rate limit manager
const (
	StatusNormal    = "Normal"
	StatusWarning   = "Warning"
	StatusThrottled = "Throttled"
)

// AIProviderRateLimiter is the view of the rate limiter used by AI services
type AIProviderRateLimiter interface {
	RegisterCall(providerID string) error
	GetProviderUsage(providerID string) (usage int, limit int)
	GetProviderStatus(providerID string) string
}

// StatusCallback is invoked whenever a provider status changes
type StatusCallback func(providerID, status string)

// ProviderConfig describes the quota of one AI provider.
// Limits is keyed by window name: "minute", "hour", "day", or any time.ParseDuration string.
type ProviderConfig struct {
	ProviderID string
	Limits     map[string]int
	Thresholds map[string]float64
}

type windowState struct {
	name     string
	duration time.Duration
	limit    int
	calls    *cache.Cache
}

type providerState struct {
	id        string
	windows   []*windowState
	warning   float64
	throttled float64
	status    string
}

// RateLimitManager tracks sliding-window call counts per provider.
// Each call is stored as a cache entry that expires when it leaves its window.
type RateLimitManager struct {
	logger    *slog.Logger
	mu        sync.Mutex
	providers map[string]*providerState
	callbacks []StatusCallback
}

// NewRateLimitManager creates a manager for the given provider configurations
func NewRateLimitManager(logger *slog.Logger, configs []ProviderConfig) *RateLimitManager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &RateLimitManager{
		logger:    logger,
		providers: make(map[string]*providerState, len(configs)),
	}

	for _, cfg := range configs {
		state := &providerState{
			id:        cfg.ProviderID,
			warning:   thresholdOrDefault(cfg.Thresholds, "warning", 0.75),
			throttled: thresholdOrDefault(cfg.Thresholds, "throttled", 1.0),
			status:    StatusNormal,
		}

		for name, limit := range cfg.Limits {
			duration, err := windowDuration(name)
			if err != nil {
				logger.Warn("Ignoring rate limit window", "provider", cfg.ProviderID, "window", name, "error", err)
				continue
			}
			if limit <= 0 {
				logger.Warn("Ignoring non-positive rate limit", "provider", cfg.ProviderID, "window", name, "limit", limit)
				continue
			}
			state.windows = append(state.windows, &windowState{
				name:     name,
				duration: duration,
				limit:    limit,
				calls:    cache.New(duration, duration),
			})
		}

		// Shortest window first so usage ties resolve deterministically
		sort.Slice(state.windows, func(i, j int) bool {
			return state.windows[i].duration < state.windows[j].duration
		})

		m.providers[cfg.ProviderID] = state
	}

	return m
}

// RegisterStatusCallback adds a callback fired on provider status transitions
func (m *RateLimitManager) RegisterStatusCallback(cb StatusCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// RegisterCall records one call against every window of the provider.
// Unknown providers are accepted and ignored.
func (m *RateLimitManager) RegisterCall(providerID string) error {
	m.mu.Lock()
	state, ok := m.providers[providerID]
	if !ok {
		m.mu.Unlock()
		return nil
	}

	now := time.Now()
	for _, w := range state.windows {
		w.calls.Set(uuid.NewString(), now, cache.DefaultExpiration)
	}
	changed, status := m.refreshStatusLocked(state)
	callbacks := m.callbacks
	m.mu.Unlock()

	if changed {
		m.notify(callbacks, providerID, status)
	}
	return nil
}

// GetProviderUsage returns usage and limit of the most constrained window
func (m *RateLimitManager) GetProviderUsage(providerID string) (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.providers[providerID]
	if !ok {
		return 0, 0
	}
	w, usage := mostConstrained(state)
	if w == nil {
		return 0, 0
	}
	return usage, w.limit
}

// GetProviderStatus returns Normal, Warning or Throttled for the provider
func (m *RateLimitManager) GetProviderStatus(providerID string) string {
	m.mu.Lock()
	state, ok := m.providers[providerID]
	if !ok {
		m.mu.Unlock()
		return StatusNormal
	}
	changed, status := m.refreshStatusLocked(state)
	callbacks := m.callbacks
	m.mu.Unlock()

	if changed {
		m.notify(callbacks, providerID, status)
	}
	return status
}

// WindowUsage returns the current call count of every window of a provider
func (m *RateLimitManager) WindowUsage(providerID string) map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.providers[providerID]
	if !ok {
		return nil
	}
	usage := make(map[string]int, len(state.windows))
	for _, w := range state.windows {
		usage[w.name] = len(w.calls.Items())
	}
	return usage
}

func (m *RateLimitManager) refreshStatusLocked(state *providerState) (bool, string) {
	status := StatusNormal
	w, usage := mostConstrained(state)
	if w != nil {
		ratio := float64(usage) / float64(w.limit)
		switch {
		case ratio >= state.throttled:
			status = StatusThrottled
		case ratio >= state.warning:
			status = StatusWarning
		}
	}

	if status == state.status {
		return false, status
	}

	m.logger.Info("Provider rate limit status changed",
		"provider", state.id,
		"from", state.status,
		"to", status,
		"usage", usage)
	state.status = status
	return true, status
}

func (m *RateLimitManager) notify(callbacks []StatusCallback, providerID, status string) {
	for _, cb := range callbacks {
		cb(providerID, status)
	}
}

func mostConstrained(state *providerState) (*windowState, int) {
	var selected *windowState
	selectedUsage := 0
	bestRatio := -1.0
	for _, w := range state.windows {
		usage := len(w.calls.Items())
		ratio := float64(usage) / float64(w.limit)
		if ratio > bestRatio {
			selected, selectedUsage, bestRatio = w, usage, ratio
		}
	}
	return selected, selectedUsage
}

func windowDuration(name string) (time.Duration, error) {
	switch name {
	case "minute":
		return time.Minute, nil
	case "hour":
		return time.Hour, nil
	case "day":
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(name)
	if err != nil {
		return 0, fmt.Errorf("unknown time window %q", name)
	}
	if d <= 0 {
		return 0, fmt.Errorf("time window %q must be positive", name)
	}
	return d, nil
}

func thresholdOrDefault(thresholds map[string]float64, key string, def float64) float64 {
	if v, ok := thresholds[key]; ok && v > 0 {
		return v
	}
	return def
}
