package cache

import (
	"sync"
	"time"
)

// Metrics is a point-in-time snapshot of the collector's counters.
type Metrics struct {
	L1HitRate           float64 `json:"l1_hit_rate"`
	L2HitRate           float64 `json:"l2_hit_rate"`
	L3HitRate           float64 `json:"l3_hit_rate"`
	TotalHits           int64   `json:"total_hits"`
	TotalMisses         int64   `json:"total_misses"`
	AverageResponseTime float64 `json:"average_response_time_ms"`
	MemoryUsage         int64   `json:"memory_usage_bytes"`
	RedisConnections    int     `json:"redis_connections"`
	EvictionCount       int64   `json:"eviction_count"`
}

// collector accumulates hit, miss, eviction and latency counters.
// Counters are monotonic; rates are computed at snapshot time.
type collector struct {
	mu            sync.Mutex
	l1Hits        int64
	l2Hits        int64
	totalHits     int64
	totalMisses   int64
	evictions     int64
	avgResponseMs float64
}

func newCollector() *collector {
	return &collector{}
}

func (c *collector) recordL1Hit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.l1Hits++
	c.totalHits++
}

func (c *collector) recordL2Hit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.l2Hits++
	c.totalHits++
}

func (c *collector) recordMiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalMisses++
}

func (c *collector) recordEvictions(count int) {
	if count <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictions += int64(count)
}

// observe folds one lookup's latency into the running mean:
// avg' = (avg*(n-1) + sample) / n, with n the cumulative lookup count.
func (c *collector) observe(elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.totalHits + c.totalMisses
	if n < 1 {
		return
	}

	sample := float64(elapsed.Microseconds()) / 1000.0
	c.avgResponseMs = (c.avgResponseMs*float64(n-1) + sample) / float64(n)
}

// snapshot builds a Metrics value. Memory usage and connection counts are
// measured by the caller at snapshot time, not tracked by the collector.
func (c *collector) snapshot(memoryUsage int64, redisConnections int) Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		TotalHits:           c.totalHits,
		TotalMisses:         c.totalMisses,
		AverageResponseTime: c.avgResponseMs,
		MemoryUsage:         memoryUsage,
		RedisConnections:    redisConnections,
		EvictionCount:       c.evictions,
	}

	lookups := c.totalHits + c.totalMisses
	if lookups > 0 {
		m.L1HitRate = float64(c.l1Hits) / float64(lookups)
		m.L2HitRate = float64(c.l2Hits) / float64(lookups)
		// L3 shares the L2 backing store, so its rate mirrors L2
		m.L3HitRate = m.L2HitRate
	}

	return m
}
