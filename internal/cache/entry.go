package cache

import (
	"encoding/json"
	"time"
)

// Tier declares the write target chosen at Set time. It is a write directive,
// not necessarily where the entry currently lives.
type Tier int

const (
	// TierL2Redis writes to both the in-process store and the shared store (default)
	TierL2Redis Tier = iota
	// TierL1Memory writes to the in-process store only
	TierL1Memory
	// TierL3Database writes to the shared store only, for long-lived entries
	TierL3Database
)

func (t Tier) String() string {
	switch t {
	case TierL1Memory:
		return "L1_MEMORY"
	case TierL2Redis:
		return "L2_REDIS"
	case TierL3Database:
		return "L3_DATABASE"
	default:
		return "UNKNOWN"
	}
}

// ParseTier converts a tier name back to a Tier, defaulting to TierL2Redis.
func ParseTier(s string) Tier {
	switch s {
	case "L1_MEMORY":
		return TierL1Memory
	case "L3_DATABASE":
		return TierL3Database
	default:
		return TierL2Redis
	}
}

// tierWrite describes which stores a Set with a given tier touches.
type tierWrite struct {
	L1 bool
	L2 bool
}

// tierWrites is the single source of truth for tier fan-out.
var tierWrites = map[Tier]tierWrite{
	TierL1Memory:   {L1: true},
	TierL2Redis:    {L1: true, L2: true},
	TierL3Database: {L2: true},
}

// Entry is one cached unit. The payload is held serialized so the cache hands
// out copies, never shared references.
type Entry struct {
	Data               json.RawMessage
	Timestamp          time.Time
	TTL                time.Duration
	AccessCount        int64
	LastAccessed       time.Time
	Tags               []string
	Size               int
	Tier               Tier
	CompressionEnabled bool
}

// expired reports whether the entry is past its TTL at the given instant.
func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.Timestamp) > e.TTL
}

// hasAnyTag reports whether the entry carries at least one of the given tags.
func (e *Entry) hasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range e.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Key namespaces for the domain objects this engine serves.
const (
	NamespaceCustomer    = "customer"
	NamespaceEquipment   = "equipment"
	NamespaceMaintenance = "maintenance"
	NamespaceTicket      = "ticket"
	NamespaceInsights    = "insights"
	NamespaceSearch      = "search"
	NamespaceWeather     = "weather"
	NamespaceAnalytics   = "analytics"
)

// GenerateKey builds a deterministic, namespace-prefixed cache key.
// Keys from different namespaces can never collide.
func GenerateKey(namespace, identifier string) string {
	return namespace + ":" + identifier
}
