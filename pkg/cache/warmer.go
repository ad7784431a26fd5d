package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// WarmItem names one entry to preload.
type WarmItem struct {
	Key    string
	Tags   []string
	Bucket Bucket
}

// WarmLoader produces the value for a key during warming.
type WarmLoader func(ctx context.Context, key string) ([]byte, error)

// WarmerConfig holds warm-up configuration.
type WarmerConfig struct {
	// MaxConcurrency is the number of parallel loaders.
	MaxConcurrency int
	// Timeout bounds each individual load.
	Timeout time.Duration
}

// DefaultWarmerConfig returns safe defaults for warming against a
// typical origin service.
func DefaultWarmerConfig() WarmerConfig {
	return WarmerConfig{
		MaxConcurrency: 8,
		Timeout:        10 * time.Second,
	}
}

// Warmer preloads cache entries in parallel, typically at startup or
// after a full flush.
type Warmer struct {
	service *Service
	config  WarmerConfig
}

// NewWarmer creates a warmer for the given service.
func NewWarmer(service *Service, config WarmerConfig) *Warmer {
	if service == nil {
		panic("cache service cannot be nil")
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 8
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &Warmer{
		service: service,
		config:  config,
	}
}

// Warm loads every item through load and stores the results. Items that
// fail are logged and skipped; warming is best-effort. Returns the
// number of entries stored, and an error when any item failed or the
// context was cancelled.
func (w *Warmer) Warm(ctx context.Context, items []WarmItem, load WarmLoader) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	start := w.service.clock.Now()
	log := w.service.logger

	log.Info().
		Int("items", len(items)).
		Int("workers", w.config.MaxConcurrency).
		Msg("starting cache warm-up")

	queue := make(chan WarmItem, len(items))
	for _, item := range items {
		queue <- item
	}
	close(queue)

	var (
		warmed atomic.Int64
		failed atomic.Int64
		wg     sync.WaitGroup
	)

	for i := 0; i < w.config.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range queue {
				select {
				case <-ctx.Done():
					return
				default:
				}

				loadCtx, cancel := context.WithTimeout(ctx, w.config.Timeout)
				value, err := load(loadCtx, item.Key)
				cancel()
				if err != nil {
					failed.Add(1)
					log.Warn().Err(err).Str("key", item.Key).Msg("warm load failed")
					continue
				}

				w.service.Set(ctx, item.Key, value,
					WithTags(item.Tags...), WithBucket(item.Bucket))
				warmed.Add(1)
			}
		}()
	}
	wg.Wait()

	n := int(warmed.Load())
	nFailed := int(failed.Load())

	log.Info().
		Int("warmed", n).
		Int("failed", nFailed).
		Dur("duration", w.service.clock.Since(start)).
		Msg("cache warm-up complete")

	if err := ctx.Err(); err != nil {
		return n, fmt.Errorf("cache warm interrupted: %w", err)
	}
	if nFailed > 0 {
		return n, fmt.Errorf("cache warm incomplete: %d of %d items failed", nFailed, len(items))
	}
	return n, nil
}
