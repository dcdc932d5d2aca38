package health

import (
	"net/http"
	"sync"
	"time"

	"climate-intelligence/internal/lifecycle"
)

// KeyStatus describes the state of a provider credential.
type KeyStatus string

const (
	KeyConfigured  KeyStatus = "configured"
	KeyMissing     KeyStatus = "missing"
	KeyInvalid     KeyStatus = "invalid"
	KeyNotRequired KeyStatus = "not_required"
)

var (
	keyMu       sync.RWMutex
	keyStatuses = map[string]KeyStatus{}
)

// SetKeyStatus records the credential state for a provider. Called once at
// startup per provider, and again by the call layer when an upstream rejects
// the key.
func SetKeyStatus(provider string, status KeyStatus) {
	keyMu.Lock()
	defer keyMu.Unlock()
	keyStatuses[provider] = status
}

// MarkKeyInvalid flags a provider credential as rejected by the upstream (401).
func MarkKeyInvalid(provider string) {
	SetKeyStatus(provider, KeyInvalid)
}

// GetKeyStatus returns the recorded credential state for a provider.
func GetKeyStatus(provider string) KeyStatus {
	keyMu.RLock()
	defer keyMu.RUnlock()
	if s, ok := keyStatuses[provider]; ok {
		return s
	}
	return KeyNotRequired
}

// KeyStatuses returns a copy of all recorded credential states.
func KeyStatuses() map[string]KeyStatus {
	keyMu.RLock()
	defer keyMu.RUnlock()
	out := make(map[string]KeyStatus, len(keyStatuses))
	for p, s := range keyStatuses {
		out[p] = s
	}
	return out
}

// ResetKeyStatuses clears all recorded credential states. For tests only.
func ResetKeyStatuses() {
	keyMu.Lock()
	defer keyMu.Unlock()
	keyStatuses = map[string]KeyStatus{}
}

func invalidKey() (string, bool) {
	keyMu.RLock()
	defer keyMu.RUnlock()
	for p, s := range keyStatuses {
		if s == KeyInvalid {
			return p, true
		}
	}
	return "", false
}

// Config holds lifecycle thresholds for health evaluation.
type Config struct {
	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	RateLimitRPS           int
	RateLimitBurst         int // 0 when rate limiter disabled
	DegradedWindow         time.Duration
	DegradedErrorPct       int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
	StartTime              time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// Result holds the computed health status and metadata for logging.
type Result struct {
	Status     string
	StatusCode int
	Reason     string
}

// Compute determines the current health status by evaluating conditions in
// priority order: shutting-down > key invalid > overloaded > idle > degraded > healthy.
// Each condition is evaluated only if previous conditions are not met.
func Compute(cfg *Config) Result {
	if lifecycle.IsShuttingDown() {
		return Result{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	// A rejected credential means a misconfigured deployment. A missing one
	// does not; those providers simply report no_api_key in the checks map.
	if _, bad := invalidKey(); bad {
		return Result{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
	}
	if cfg == nil {
		return Result{"healthy", http.StatusOK, ""}
	}
	if cfg.RateLimitRPS > 0 && cfg.OverloadWindow > 0 {
		threshold := float64(cfg.RateLimitRPS) * cfg.OverloadWindow.Seconds() * float64(cfg.OverloadThresholdPct) / 100
		if float64(RequestCount(cfg.OverloadWindow)) > threshold {
			return Result{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
		}
	}
	if cfg.IdleWindow > 0 && cfg.MinimumLifespan > 0 && time.Since(cfg.StartTime) >= cfg.MinimumLifespan {
		if RequestCount(cfg.IdleWindow) < cfg.IdleThresholdReqPerMin {
			return Result{"idle", http.StatusOK, "low_traffic"}
		}
	}
	if cfg.DegradedWindow > 0 && cfg.DegradedErrorPct > 0 {
		errors, total := AggregateErrorRate(cfg.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(cfg.DegradedErrorPct) {
				return Result{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return Result{"healthy", http.StatusOK, ""}
}

// ProviderChecks returns a per-provider state map for the health payload.
// A provider is unhealthy when its own error rate breaches the degraded
// threshold, no_api_key when its credential is missing, healthy otherwise.
func ProviderChecks(cfg *Config) map[string]string {
	window := 60 * time.Second
	errorPct := 50
	if cfg != nil {
		if cfg.DegradedWindow > 0 {
			window = cfg.DegradedWindow
		}
		if cfg.DegradedErrorPct > 0 {
			errorPct = cfg.DegradedErrorPct
		}
	}

	checks := make(map[string]string)
	for p, s := range KeyStatuses() {
		switch s {
		case KeyMissing:
			checks[p] = "no_api_key"
		case KeyInvalid:
			checks[p] = "api_key_invalid"
		default:
			checks[p] = "healthy"
		}
	}
	for _, p := range Providers() {
		if checks[p] == "no_api_key" || checks[p] == "api_key_invalid" {
			continue
		}
		errors, total := ErrorRate(p, window)
		if total > 0 && float64(errors)*100/float64(total) >= float64(errorPct) {
			checks[p] = "unhealthy"
		} else {
			checks[p] = "healthy"
		}
	}
	return checks
}
