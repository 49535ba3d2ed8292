package cache

import (
	"sort"
	"sync"
	"time"
)

// evictionFraction is the share of entries removed when the store is full.
const evictionFraction = 10 // oldest 1/10th

// l1Store is the bounded in-process tier. All access is serialized behind a
// mutex so touch-on-read, capacity eviction and the sweeper cannot interleave.
type l1Store struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxEntries int
}

func newL1Store(maxEntries int) *l1Store {
	return &l1Store{
		entries:    make(map[string]*Entry),
		maxEntries: maxEntries,
	}
}

// get returns the entry for key, evicting it lazily when expired.
// A hit updates AccessCount and LastAccessed for LRU ranking.
func (s *l1Store) get(key string, now time.Time) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, false
	}

	if entry.expired(now) {
		delete(s.entries, key)
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccessed = now
	return entry, true
}

// set inserts the entry, evicting the least-recently-used tenth of the store
// first when the entry limit is reached. Returns the number of evictions.
func (s *l1Store) set(key string, entry *Entry) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		evicted = s.evictOldest()
	}

	s.entries[key] = entry
	return evicted
}

// evictOldest removes the entries with the oldest LastAccessed.
// Caller must hold the mutex.
func (s *l1Store) evictOldest() int {
	type ranked struct {
		key          string
		lastAccessed time.Time
	}

	candidates := make([]ranked, 0, len(s.entries))
	for key, entry := range s.entries {
		candidates = append(candidates, ranked{key, entry.LastAccessed})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccessed.Before(candidates[j].lastAccessed)
	})

	count := len(candidates) / evictionFraction
	if count < 1 {
		count = 1
	}

	for _, victim := range candidates[:count] {
		delete(s.entries, victim.key)
	}

	return count
}

// delete removes the entry and reports whether it was present.
func (s *l1Store) delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok
}

// invalidateByTags removes every entry carrying at least one of the tags.
func (s *l1Store) invalidateByTags(tags []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if entry.hasAnyTag(tags) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// sweep removes expired entries over a stable snapshot of the key set and
// returns the number removed.
func (s *l1Store) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := make([]string, 0)
	for key, entry := range s.entries {
		if entry.expired(now) {
			expired = append(expired, key)
		}
	}

	for _, key := range expired {
		delete(s.entries, key)
	}

	return len(expired)
}

// purge empties the store and returns the number of entries removed.
func (s *l1Store) purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.entries)
	s.entries = make(map[string]*Entry)
	return count
}

// memoryUsage sums the estimated serialized size of all resident entries.
func (s *l1Store) memoryUsage() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, entry := range s.entries {
		total += int64(entry.Size)
	}
	return total
}

// len returns the number of resident entries.
func (s *l1Store) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
