package health

import (
	"sort"
	"sync"
	"time"
)

var defaultTracker Tracker

// RecordRequest records a dashboard request (page or API hit). Call from
// middleware for traffic that counts toward idle and overload detection.
func RecordRequest() {
	defaultTracker.RecordRequest()
}

// RecordDenial records a rate-limit denial (429). Call from middleware when returning 429.
func RecordDenial() {
	defaultTracker.RecordDenial()
}

// RecordSuccess records a successful upstream call for the given provider.
func RecordSuccess(provider string) {
	defaultTracker.RecordSuccess(provider)
}

// RecordError records a failed upstream call for the given provider (error, timeout, etc.).
func RecordError(provider string) {
	defaultTracker.RecordError(provider)
}

// RequestCount returns the number of dashboard requests within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (errorCount, totalCount) for one provider within the window.
func ErrorRate(provider string, window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(provider, window)
}

// AggregateErrorRate returns (errorCount, totalCount) across all providers within the window.
func AggregateErrorRate(window time.Duration) (errors, total int) {
	return defaultTracker.AggregateErrorRate(window)
}

// Providers returns the provider names with at least one recorded outcome.
func Providers() []string {
	return defaultTracker.Providers()
}

// Reset clears all recorded data. For tests only.
func Reset() {
	defaultTracker.Reset()
}

// Tracker maintains sliding windows of request and per-provider outcome timestamps.
// Single source of truth for overload (RequestCount, DenialCount), idle
// (RequestCount) and degraded (ErrorRate) checks.
type Tracker struct {
	mu           sync.Mutex
	requestTimes []time.Time
	deniedTimes  []time.Time
	successTimes map[string][]time.Time
	errorTimes   map[string][]time.Time
}

// RecordRequest records a dashboard request at the current time.
func (t *Tracker) RecordRequest() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.requestTimes = append(t.requestTimes, now)
	t.pruneLocked(now)
}

// RecordDenial records a rate-limit denial at the current time.
func (t *Tracker) RecordDenial() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	t.deniedTimes = append(t.deniedTimes, now)
	t.pruneLocked(now)
}

// RecordSuccess records a successful upstream call for the given provider.
func (t *Tracker) RecordSuccess(provider string) {
	t.recordOutcome(provider, false)
}

// RecordError records a failed upstream call for the given provider.
func (t *Tracker) RecordError(provider string) {
	t.recordOutcome(provider, true)
}

func (t *Tracker) recordOutcome(provider string, isError bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if t.successTimes == nil {
		t.successTimes = make(map[string][]time.Time)
		t.errorTimes = make(map[string][]time.Time)
	}
	if isError {
		t.errorTimes[provider] = append(t.errorTimes[provider], now)
	} else {
		t.successTimes[provider] = append(t.successTimes[provider], now)
	}
	t.pruneLocked(now)
}

// RequestCount returns the number of dashboard requests within the window ending at now.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.requestTimes, time.Now().Add(-window))
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countInWindow(t.deniedTimes, time.Now().Add(-window))
}

// ErrorRate returns (errorCount, totalCount) for one provider within the window.
// totalCount includes successes and errors only.
func (t *Tracker) ErrorRate(provider string, window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	errCount := countInWindow(t.errorTimes[provider], cutoff)
	successCount := countInWindow(t.successTimes[provider], cutoff)
	return errCount, errCount + successCount
}

// AggregateErrorRate returns (errorCount, totalCount) across all providers within the window.
func (t *Tracker) AggregateErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-window)
	for _, times := range t.errorTimes {
		errors += countInWindow(times, cutoff)
	}
	total = errors
	for _, times := range t.successTimes {
		total += countInWindow(times, cutoff)
	}
	return errors, total
}

// Providers returns the provider names with at least one recorded outcome, sorted.
func (t *Tracker) Providers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[string]struct{})
	for p := range t.successTimes {
		seen[p] = struct{}{}
	}
	for p := range t.errorTimes {
		seen[p] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for p := range seen {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// Reset clears all recorded data from the tracker.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requestTimes = nil
	t.deniedTimes = nil
	t.successTimes = nil
	t.errorTimes = nil
}

// countInWindow counts timestamps that are not before the cutoff time.
func countInWindow(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked removes timestamps older than the retention caps.
// Requests are kept 30 minutes (idle windows are long); outcomes 5 minutes.
// Must be called with mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	requestCutoff := now.Add(-30 * time.Minute)
	t.requestTimes = pruneSlice(t.requestTimes, requestCutoff)
	t.deniedTimes = pruneSlice(t.deniedTimes, requestCutoff)

	outcomeCutoff := now.Add(-5 * time.Minute)
	for p, times := range t.successTimes {
		t.successTimes[p] = pruneSlice(times, outcomeCutoff)
	}
	for p, times := range t.errorTimes {
		t.errorTimes[p] = pruneSlice(times, outcomeCutoff)
	}
}

func pruneSlice(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(times) && times[i].Before(cutoff); i++ {
	}
	if i > 0 {
		return append(times[:0], times[i:]...)
	}
	return times
}
