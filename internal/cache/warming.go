package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"climate-intelligence/internal/observability"
)

// DatasetFetcher is implemented by the service layer to prefetch one named
// dataset for the default location. Used by Warmer to avoid a circular
// dependency on the service package.
type DatasetFetcher interface {
	Prefetch(ctx context.Context, dataset string) error
}

// Warmer warms the cache by prefetching a list of datasets.
type Warmer struct {
	fetcher DatasetFetcher
	logger  *zap.Logger
}

// NewWarmer creates a Warmer that uses the given fetcher and logger.
func NewWarmer(fetcher DatasetFetcher, logger *zap.Logger) *Warmer {
	return &Warmer{fetcher: fetcher, logger: logger}
}

// Warm prefetches each dataset concurrently and populates the cache via the
// fetcher. Returns an error if any dataset failed (aggregated).
func (w *Warmer) Warm(ctx context.Context, datasets []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	if w.logger != nil {
		w.logger.Info("warming cache", zap.Int("datasets", len(datasets)))
	}
	var wg sync.WaitGroup
	errCh := make(chan error, len(datasets))
	for _, ds := range datasets {
		ds := ds
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.fetcher.Prefetch(ctx, ds); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", ds, err)
			}
		}()
	}
	wg.Wait()
	close(errCh)
	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	if w.logger != nil {
		w.logger.Info("cache warming complete", zap.Int("datasets", len(datasets)), zap.Int("errors", len(errs)), zap.Float64("duration_seconds", duration))
	}
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %v", errs)
	}
	return nil
}

// WarmPeriodic runs an initial Warm, then refreshes at the given interval
// until ctx is done.
func (w *Warmer) WarmPeriodic(ctx context.Context, datasets []string, interval time.Duration) error {
	if err := w.Warm(ctx, datasets); err != nil && w.logger != nil {
		w.logger.Warn("initial cache warm failed", zap.Error(err))
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Warm(ctx, datasets); err != nil && w.logger != nil {
				w.logger.Warn("periodic cache warm failed", zap.Error(err))
			}
		}
	}
}
