// Package cache implements the multi-tier caching engine that fronts the
// business-data API: a bounded in-process L1 store, a shared Redis-backed L2
// store with tag-based invalidation, background warmup and cleanup schedulers,
// and a metrics collector, composed behind a single orchestrating facade.
//
// The engine is fail-open by design: backing-store failures degrade to cache
// misses and are reported to the observability sink; they never surface as
// errors to calling domain services.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"hvac-cache/internal/common/errors"
	"hvac-cache/internal/common/logging"
	"hvac-cache/internal/observability"
	"hvac-cache/internal/redis"
)

// Config holds the engine's tier sizing, TTL and scheduler settings.
// It is immutable after the engine is constructed.
type Config struct {
	KeyPrefix            string
	L1MaxEntries         int
	L1MaxBytes           int64
	L2DefaultTTL         time.Duration
	L3DefaultTTL         time.Duration
	CompressionThreshold int
	WarmupEnabled        bool
	InvalidationStrategy string
	CleanupInterval      time.Duration
	L2Timeout            time.Duration
}

func (c *Config) withDefaults() {
	if c.KeyPrefix == "" {
		c.KeyPrefix = "hvac:cache"
	}
	if c.L1MaxEntries <= 0 {
		c.L1MaxEntries = 1000
	}
	if c.L2DefaultTTL <= 0 {
		c.L2DefaultTTL = 30 * time.Minute
	}
	if c.L3DefaultTTL <= 0 {
		c.L3DefaultTTL = 24 * time.Hour
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 60 * time.Second
	}
	if c.L2Timeout <= 0 {
		c.L2Timeout = 3 * time.Second
	}
	if c.InvalidationStrategy == "" {
		c.InvalidationStrategy = "time"
	}
}

// GetOptions controls which tiers a Get consults.
type GetOptions struct {
	SkipL1 bool
	SkipL2 bool
}

// SetOptions controls TTL, grouping and tier placement of a Set.
type SetOptions struct {
	// TTL overrides the key-prefix heuristic when positive.
	TTL time.Duration
	// Tags label the entry for group invalidation.
	Tags []string
	// Tier declares the write target (default TierL2Redis).
	Tier Tier
	// Compress overrides the size-threshold compression decision.
	Compress *bool
}

// ttlHeuristics maps key-namespace markers to default lifetimes, checked in
// order. Used when a Set carries no explicit TTL.
var ttlHeuristics = []struct {
	marker string
	ttl    time.Duration
}{
	{"customer", time.Hour},
	{"equipment", 5 * time.Minute},
	{"maintenance", 30 * time.Minute},
	{"weather", 15 * time.Minute},
	{"search", 10 * time.Minute},
	{"analytics", 2 * time.Hour},
	{"insights", time.Hour},
}

// Engine is the tiered store orchestrator. It is the only type other
// subsystems interact with; construct it with New, start background
// schedulers with Open and release resources with Close.
type Engine struct {
	config  Config
	l1      *l1Store
	l2      *l2Store
	metrics *collector
	redis   *redis.Client
	sink    observability.Sink
	logger  logging.Logger
	warmup  *warmupRunner
	sweeper *sweeper

	// now is the engine clock; replaced in tests to simulate time passing
	now func() time.Time

	mu     sync.Mutex
	opened bool
	closed bool
}

// New constructs an engine over the given Redis client. The client is owned
// by the engine from this point on and is closed by Close. source may be nil
// to disable warmup regardless of configuration.
func New(config Config, client *redis.Client, source WarmupSource, sink observability.Sink, logger logging.Logger) *Engine {
	config.withDefaults()

	if sink == nil {
		sink = observability.NopSink{}
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	logger = logger.WithFields(logging.Field{Key: "component", Value: "cache-engine"})

	e := &Engine{
		config:  config,
		l1:      newL1Store(config.L1MaxEntries),
		l2:      newL2Store(client, config.KeyPrefix, config.L2Timeout, sink, logger),
		metrics: newCollector(),
		redis:   client,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
	}

	e.warmup = newWarmupRunner(e, source, sink, logger)
	e.sweeper = newSweeper(e)

	return e
}

// Open starts the cleanup sweeper and, when enabled, kicks off the startup
// warmup. Warmup is fire-and-forget: Open never waits for it.
func (e *Engine) Open(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opened {
		return errors.InternalError("cache engine already opened", nil)
	}
	if e.closed {
		return errors.InternalError("cache engine is closed", nil)
	}
	e.opened = true

	if err := e.sweeper.start(); err != nil {
		return err
	}

	if e.config.WarmupEnabled && e.warmup.hasSource() {
		go e.warmup.run(ctx)
	}

	e.logger.Info("Cache engine opened",
		logging.Field{Key: "l1_max_entries", Value: e.config.L1MaxEntries},
		logging.Field{Key: "key_prefix", Value: e.config.KeyPrefix},
		logging.Field{Key: "warmup_enabled", Value: e.config.WarmupEnabled},
		logging.Field{Key: "invalidation_strategy", Value: e.config.InvalidationStrategy},
	)

	return nil
}

// Close stops the schedulers and closes the Redis connection the engine owns.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	e.sweeper.stop()

	if err := e.redis.Close(); err != nil {
		return errors.ConnectivityError("failed to close redis client", err)
	}

	e.logger.Info("Cache engine closed")
	return nil
}

// Get looks key up in L1 then L2, promoting an L2 hit into L1, and decodes
// the payload into dest (a pointer). It reports whether a usable value was
// found; backing-store failures degrade to a miss.
func (e *Engine) Get(ctx context.Context, key string, dest interface{}, opts GetOptions) bool {
	start := e.now()

	if !opts.SkipL1 {
		if entry, ok := e.l1.get(key, e.now()); ok {
			if err := json.Unmarshal(entry.Data, dest); err == nil {
				e.metrics.recordL1Hit()
				e.metrics.observe(e.now().Sub(start))
				return true
			}
			// Payload does not fit dest: treat as a miss for this caller
			e.sink.Report(observability.NewReport("l1_get", key, "cache-l1",
				errors.SerializationError("cached payload does not match destination type", nil)))
		}
	}

	if !opts.SkipL2 {
		// Redis expiry has whole-second resolution; re-check the exact TTL here
		if entry, ok := e.l2.get(ctx, key); ok && !(entry.TTL > 0 && entry.expired(e.now())) {
			if err := json.Unmarshal(entry.Data, dest); err == nil {
				e.promote(key, entry)
				e.metrics.recordL2Hit()
				e.metrics.observe(e.now().Sub(start))
				return true
			}
			e.sink.Report(observability.NewReport("l2_get", key, l2ContextTag,
				errors.SerializationError("cached payload does not match destination type", nil)))
		}
	}

	e.metrics.recordMiss()
	e.metrics.observe(e.now().Sub(start))
	return false
}

// promote copies an L2 hit into L1 so the next read is served locally. The
// original write timestamp and TTL carry over, so the promoted copy expires
// at the same instant the L2 copy would have.
func (e *Engine) promote(key string, entry *Entry) {
	if entry.TTL <= 0 {
		// Envelope predates TTL metadata: fall back to the write-time rules
		entry.TTL = e.resolveTTL(key, 0, entry.Tier)
	}
	entry.LastAccessed = e.now()
	evicted := e.l1.set(key, entry)
	e.metrics.recordEvictions(evicted)
}

// Set encodes value and writes it to the tiers selected by the declared tier.
// TTL resolution order: explicit option, key-prefix heuristic, configured
// default. Only encoding the caller's own value can fail; store failures
// degrade silently.
func (e *Engine) Set(ctx context.Context, key string, value interface{}, opts SetOptions) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.SerializationError("failed to encode cache value", err).WithContext("key", key)
	}

	now := e.now()
	ttl := e.resolveTTL(key, opts.TTL, opts.Tier)
	size := len(data)

	compress := size > e.config.CompressionThreshold
	if opts.Compress != nil {
		compress = *opts.Compress
	}

	entry := &Entry{
		Data:               data,
		Timestamp:          now,
		TTL:                ttl,
		LastAccessed:       now,
		Tags:               opts.Tags,
		Size:               size,
		Tier:               opts.Tier,
		CompressionEnabled: compress,
	}

	writes := tierWrites[opts.Tier]
	if writes.L1 {
		evicted := e.l1.set(key, entry)
		e.metrics.recordEvictions(evicted)
	}
	if writes.L2 {
		e.l2.set(key, entry)
	}

	return nil
}

// resolveTTL picks the entry lifetime: explicit TTL, key-namespace heuristic,
// then the configured default for the declared tier.
func (e *Engine) resolveTTL(key string, explicit time.Duration, tier Tier) time.Duration {
	if explicit > 0 {
		return explicit
	}

	for _, h := range ttlHeuristics {
		if strings.Contains(key, h.marker) {
			return h.ttl
		}
	}

	if tier == TierL3Database {
		return e.config.L3DefaultTTL
	}
	return e.config.L2DefaultTTL
}

// Delete removes key from both tiers and reports whether either held it.
func (e *Engine) Delete(ctx context.Context, key string) bool {
	foundL1 := e.l1.delete(key)
	foundL2 := e.l2.delete(ctx, key)
	return foundL1 || foundL2
}

// InvalidateByTags removes every entry carrying any of the given tags from
// both tiers and returns the total it is sure it removed. Partial backing-
// store failures lower the count; they never raise.
func (e *Engine) InvalidateByTags(ctx context.Context, tags []string) int {
	if len(tags) == 0 {
		return 0
	}

	removed := e.l1.invalidateByTags(tags)
	removed += e.l2.invalidateByTags(ctx, tags)

	e.logger.Debug("Invalidated cache entries by tags",
		logging.Field{Key: "tags", Value: tags},
		logging.Field{Key: "removed", Value: removed},
	)

	return removed
}

// GetOrSet returns the cached value for key, or invokes factory on a miss,
// stores the result with opts, and returns it. Concurrent misses for the same
// key are not coalesced: simultaneous callers may each invoke factory.
func (e *Engine) GetOrSet(ctx context.Context, key string, dest interface{}, factory func(context.Context) (interface{}, error), opts SetOptions) error {
	if e.Get(ctx, key, dest, GetOptions{}) {
		return nil
	}

	value, err := factory(ctx)
	if err != nil {
		return err
	}

	if err := e.Set(ctx, key, value, opts); err != nil {
		return err
	}

	// Copy out through the serialized form, same as a cache hit would
	data, err := json.Marshal(value)
	if err != nil {
		return errors.SerializationError("failed to encode factory value", err).WithContext("key", key)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.SerializationError("factory value does not match destination type", err).WithContext("key", key)
	}

	return nil
}

// Clear empties L1 and flushes the engine's L2 namespace.
func (e *Engine) Clear(ctx context.Context) error {
	purged := e.l1.purge()

	err := e.l2.flush(ctx)
	if err != nil {
		e.logger.Error("Failed to flush L2 namespace", err)
	}

	e.logger.Info("Cache cleared", logging.Field{Key: "l1_purged", Value: purged})
	return err
}

// GenerateKey builds a deterministic, namespace-prefixed cache key.
func (e *Engine) GenerateKey(namespace, identifier string) string {
	return GenerateKey(namespace, identifier)
}

// Metrics returns a snapshot including a freshly computed L1 memory estimate.
func (e *Engine) Metrics() Metrics {
	return e.metrics.snapshot(e.l1.memoryUsage(), e.redis.ActiveConnections())
}

// Health reports whether the L2 backing store is reachable.
func (e *Engine) Health() error {
	return e.redis.Health()
}
