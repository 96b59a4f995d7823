package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nurdaulet-ab/account-service/internal/metrics"
)

const fetchRetries = 3

// Source feeds the warmup engine one entity family. FetchBatch must return
// rows strictly ordered by ID ascending, starting after afterID; an empty
// slice ends the run.
type Source[T any, E any] interface {
	Name() string
	FetchBatch(ctx context.Context, afterID string, limit int) ([]T, error)
	LastID(v T) string
	CacheKey(v T) string
	ToCacheEntry(v T) E
}

// Warmup bulk-populates the cache mirror from the authoritative store at
// startup. One parametric engine serves every entity family; per-family
// behavior lives entirely in the Source.
type Warmup[T any, E any] struct {
	source    Source[T, E]
	store     Store
	ttl       time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewWarmup[T any, E any](source Source[T, E], store Store, ttl time.Duration, batchSize int, logger *slog.Logger) *Warmup[T, E] {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Warmup[T, E]{
		source:    source,
		store:     store,
		ttl:       ttl,
		batchSize: batchSize,
		logger:    logger.With("component", "warmup", "cache", source.Name()),
	}
}

// Run executes the whole warmup and never returns an error: the run is
// fire-and-forget off the startup path, and a degraded cache only means
// the first reads go cold to the store.
func (w *Warmup[T, E]) Run(ctx context.Context) {
	started := time.Now()
	total, err := w.run(ctx)
	if err != nil {
		metrics.WarmupRunsTotal.WithLabelValues(w.source.Name(), "aborted").Inc()
		w.logger.Error("warmup aborted", "cached", total, "error", err)
		return
	}
	metrics.WarmupRunsTotal.WithLabelValues(w.source.Name(), "completed").Inc()
	w.logger.Info("warmup complete", "cached", total, "duration", time.Since(started))
}

func (w *Warmup[T, E]) run(ctx context.Context) (int, error) {
	var (
		cursor string // last-seen ID; in-memory only, reset every start
		total  int
	)

	for {
		batch, err := w.fetchWithRetry(ctx, cursor)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			return total, nil
		}

		entries := make(map[string][]byte, len(batch))
		for _, v := range batch {
			raw, err := json.Marshal(w.source.ToCacheEntry(v))
			if err != nil {
				return total, fmt.Errorf("marshal cache entry: %w", err)
			}
			entries[w.source.CacheKey(v)] = raw
		}

		if err := w.store.SetMany(ctx, entries, w.ttl); err != nil {
			return total, fmt.Errorf("write page after %q: %w", cursor, err)
		}

		cursor = w.source.LastID(batch[len(batch)-1])
		total += len(batch)
		metrics.WarmupEntitiesCached.WithLabelValues(w.source.Name()).Add(float64(len(batch)))
	}
}

// fetchWithRetry retries a failed page fetch with the same cursor before
// giving up on the run.
func (w *Warmup[T, E]) fetchWithRetry(ctx context.Context, cursor string) ([]T, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchRetries; attempt++ {
		batch, err := w.source.FetchBatch(ctx, cursor, w.batchSize)
		if err == nil {
			return batch, nil
		}
		lastErr = err
		w.logger.Warn("warmup fetch failed", "cursor", cursor, "attempt", attempt, "error", err)
	}
	return nil, fmt.Errorf("fetch page after %q (%d attempts): %w", cursor, fetchRetries, lastErr)
}
