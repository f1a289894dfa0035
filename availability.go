package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-featuregate/gate"
)

// Well-known external service names checked by the availability gate.
const (
	ServiceIdentity = "identity"
	ServiceEmail    = "email"
	ServiceLLM      = "llm"
	ServicePayments = "payments"
	ServiceGitHub   = "github"
)

// DefaultAvailabilityCacheTTL bounds how stale a cached status can get.
var DefaultAvailabilityCacheTTL = 30 * time.Second

// defaultPlaceholders are sentinel values that count as unconfigured even
// though the key is technically set.
var defaultPlaceholders = []string{
	"placeholder",
	"changeme",
	"recommended to set in user secrets",
}

// ServiceRequirements names the configuration keys one external
// dependency needs before it counts as available.
type ServiceRequirements struct {
	Service string
	Keys    []string
}

// ServiceStatus is the evaluated availability of one service. MissingKeys
// lists every broken key, not just the first, so operators see the whole
// problem in one pass.
type ServiceStatus struct {
	Service     string    `json:"service"`
	Available   bool      `json:"available"`
	MissingKeys []string  `json:"missing_keys,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}

// AvailabilityRegistry tracks whether named external dependencies are
// currently configured. State is ephemeral: recomputed from configuration
// on demand and cached briefly, never persisted. It implements
// gate.FeatureGate so orchestrator use cases can guard on it the same way
// feature flags are guarded.
type AvailabilityRegistry struct {
	source       ConfigurationSource
	requirements map[string][]string
	placeholders map[string]struct{}
	cacheTTL     time.Duration
	clock        Clock
	logger       Logger

	mu    sync.RWMutex
	cache map[string]ServiceStatus
}

var _ gate.FeatureGate = (*AvailabilityRegistry)(nil)

// NewAvailabilityRegistry builds a registry over the given configuration
// source and per-service requirements.
func NewAvailabilityRegistry(source ConfigurationSource, requirements ...ServiceRequirements) *AvailabilityRegistry {
	reqs := make(map[string][]string, len(requirements))
	for _, r := range requirements {
		reqs[r.Service] = append([]string(nil), r.Keys...)
	}

	placeholders := make(map[string]struct{}, len(defaultPlaceholders))
	for _, p := range defaultPlaceholders {
		placeholders[strings.ToLower(p)] = struct{}{}
	}

	return &AvailabilityRegistry{
		source:       source,
		requirements: reqs,
		placeholders: placeholders,
		cacheTTL:     DefaultAvailabilityCacheTTL,
		clock:        systemClock{},
		logger:       defLogger{},
		cache:        map[string]ServiceStatus{},
	}
}

// WithPlaceholders replaces the placeholder sentinel set.
func (r *AvailabilityRegistry) WithPlaceholders(values ...string) *AvailabilityRegistry {
	placeholders := make(map[string]struct{}, len(values))
	for _, v := range values {
		placeholders[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	r.placeholders = placeholders
	return r
}

// WithCacheTTL overrides how long a computed status is reused. Zero
// disables caching so every check re-reads configuration.
func (r *AvailabilityRegistry) WithCacheTTL(ttl time.Duration) *AvailabilityRegistry {
	r.cacheTTL = ttl
	return r
}

func (r *AvailabilityRegistry) WithClock(clock Clock) *AvailabilityRegistry {
	if clock != nil {
		r.clock = clock
	}
	return r
}

func (r *AvailabilityRegistry) WithLogger(logger Logger) *AvailabilityRegistry {
	if logger != nil {
		r.logger = logger
	}
	return r
}

// IsAvailable reports whether the named service has all of its required
// configuration.
func (r *AvailabilityRegistry) IsAvailable(service string) bool {
	return r.Status(service).Available
}

// Status returns the evaluated (possibly cached) status for one service.
// Services with no registered requirements are considered available.
func (r *AvailabilityRegistry) Status(service string) ServiceStatus {
	now := r.clock.Now()

	r.mu.RLock()
	cached, ok := r.cache[service]
	r.mu.RUnlock()
	if ok && r.cacheTTL > 0 && now.Sub(cached.CheckedAt) < r.cacheTTL {
		return cached
	}

	status := r.evaluate(service, now)

	r.mu.Lock()
	r.cache[service] = status
	r.mu.Unlock()

	if !status.Available {
		r.logger.Warn("service %s unavailable, missing configuration: %s",
			service, strings.Join(status.MissingKeys, ", "))
	}

	return status
}

// Statuses evaluates every registered service.
func (r *AvailabilityRegistry) Statuses() []ServiceStatus {
	services := make([]string, 0, len(r.requirements))
	for service := range r.requirements {
		services = append(services, service)
	}

	statuses := make([]ServiceStatus, 0, len(services))
	for _, service := range services {
		statuses = append(statuses, r.Status(service))
	}
	return statuses
}

// Refresh drops all cached statuses so the next check re-reads
// configuration.
func (r *AvailabilityRegistry) Refresh() {
	r.mu.Lock()
	r.cache = map[string]ServiceStatus{}
	r.mu.Unlock()
}

// Enabled implements gate.FeatureGate: the gate key is the service name.
func (r *AvailabilityRegistry) Enabled(ctx context.Context, key string, opts ...gate.ResolveOption) (bool, error) {
	return r.IsAvailable(key), nil
}

func (r *AvailabilityRegistry) evaluate(service string, now time.Time) ServiceStatus {
	status := ServiceStatus{
		Service:   service,
		Available: true,
		CheckedAt: now,
	}

	keys, ok := r.requirements[service]
	if !ok {
		return status
	}

	// Every key is checked; a single pass must surface everything broken.
	for _, key := range keys {
		if r.isMissing(r.source.GetString(key)) {
			status.MissingKeys = append(status.MissingKeys, key)
		}
	}
	status.Available = len(status.MissingKeys) == 0

	return status
}

// isMissing collapses null-ish, whitespace-only, and placeholder values
// into one outcome so downstream code has a single branch.
func (r *AvailabilityRegistry) isMissing(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	_, placeholder := r.placeholders[strings.ToLower(trimmed)]
	return placeholder
}
