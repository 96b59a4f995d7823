package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nurdaulet-ab/account-service/internal/metrics"
)

// Accessor is the dual-store read/write discipline shared by every cached
// entity family. T is the authoritative row, E the cache mirror document.
//
// Reads prefer the cache; a miss falls back to the store and repopulates
// the mirror best-effort. Writes hit the store synchronously (a failure
// there is a hard error) and then mirror the saved value, so a Put
// followed by a Get on the same accessor always observes the new value.
// Cache failures anywhere are logged and swallowed — the mirror may lag
// the store by at most the TTL, never the other way around.
type Accessor[T any, E any] struct {
	name      string
	store     Store
	ttl       time.Duration
	logger    *slog.Logger
	loadByID  func(ctx context.Context, id string) (T, error)
	loadByKey func(ctx context.Context, key string) (T, error)
	saveStore func(ctx context.Context, v T) (T, error)
	toCache   func(v T) E
	keyForID  func(id string) string
	idOf      func(e E) string
}

type AccessorConfig[T any, E any] struct {
	// Name labels metrics and log lines ("user", "verification").
	Name  string
	Store Store
	TTL   time.Duration

	// LoadByID reads the authoritative store; must return the entity
	// family's not-found sentinel when absent.
	LoadByID func(ctx context.Context, id string) (T, error)
	// LoadByKey reads by alternate key (email, natural key). Optional.
	LoadByKey func(ctx context.Context, key string) (T, error)
	// SaveStore persists to the authoritative store and returns the row
	// as written.
	SaveStore func(ctx context.Context, v T) (T, error)
	// ToCache maps a store row to its mirror document.
	ToCache func(v T) E
	// KeyForID builds the prefixed cache key for an entity ID.
	KeyForID func(id string) string
	// IDOf returns the ID a mirror document is keyed under.
	IDOf func(e E) string
}

func NewAccessor[T any, E any](cfg AccessorConfig[T, E], logger *slog.Logger) *Accessor[T, E] {
	return &Accessor[T, E]{
		name:      cfg.Name,
		store:     cfg.Store,
		ttl:       cfg.TTL,
		logger:    logger.With("component", "accessor", "entity", cfg.Name),
		loadByID:  cfg.LoadByID,
		loadByKey: cfg.LoadByKey,
		saveStore: cfg.SaveStore,
		toCache:   cfg.ToCache,
		keyForID:  cfg.KeyForID,
		idOf:      cfg.IDOf,
	}
}

// Get returns the mirror document for id, reading through to the store on
// a miss.
func (a *Accessor[T, E]) Get(ctx context.Context, id string) (E, error) {
	var zero E

	key := a.keyForID(id)
	raw, err := a.store.Get(ctx, key)
	switch {
	case err == nil:
		var e E
		if jerr := json.Unmarshal(raw, &e); jerr == nil {
			metrics.CacheHitsTotal.WithLabelValues(a.name).Inc()
			return e, nil
		}
		// Corrupt entry: treat as a miss and repopulate from the store.
		a.logger.WarnContext(ctx, "corrupt cache entry", "key", key)
	case errors.Is(err, ErrMiss):
	default:
		a.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}
	metrics.CacheMissesTotal.WithLabelValues(a.name).Inc()

	v, err := a.loadByID(ctx, id)
	if err != nil {
		return zero, err
	}
	e := a.toCache(v)
	a.Mirror(ctx, e)
	return e, nil
}

// GetByKey resolves by alternate key (email, natural key). The loaded row,
// not the alternate key, decides where the mirror document lands.
func (a *Accessor[T, E]) GetByKey(ctx context.Context, key string) (E, error) {
	var zero E

	v, err := a.loadByKey(ctx, key)
	if err != nil {
		return zero, err
	}
	e := a.toCache(v)
	a.Mirror(ctx, e)
	return e, nil
}

// Put writes the authoritative store synchronously and mirrors the saved
// row. The store write must succeed; the mirror write is best-effort and
// never rolls anything back.
func (a *Accessor[T, E]) Put(ctx context.Context, v T) (T, error) {
	var zero T

	saved, err := a.saveStore(ctx, v)
	if err != nil {
		return zero, err
	}
	a.Mirror(ctx, a.toCache(saved))
	return saved, nil
}

// Mirror writes a document into the cache, swallowing failures.
func (a *Accessor[T, E]) Mirror(ctx context.Context, e E) {
	raw, err := json.Marshal(e)
	if err != nil {
		a.logger.ErrorContext(ctx, "marshal cache entry", "error", err)
		return
	}
	if err := a.store.Set(ctx, a.keyForID(a.idOf(e)), raw, a.ttl); err != nil {
		metrics.CacheWriteFailuresTotal.WithLabelValues(a.name).Inc()
		a.logger.WarnContext(ctx, "cache write failed", "error", err)
	}
}

// Evict removes the mirror entry only; the store is never touched.
func (a *Accessor[T, E]) Evict(ctx context.Context, id string) {
	key := a.keyForID(id)
	if err := a.store.Delete(ctx, key); err != nil {
		a.logger.WarnContext(ctx, "cache evict failed", "key", key, "error", err)
	}
}
