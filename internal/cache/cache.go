// Package cache shields external providers from redundant lookups with a
// TTL'd key/value store. The cache is a performance optimization only: a
// backend failure degrades to a miss and never fails the caller.
package cache

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Kind tags a cache entry with its provider category. Each category gets
// its own namespace so identical queries against different providers never
// collide.
type Kind string

const (
	KindReviews  Kind = "reviews"
	KindProfile  Kind = "profile"
	KindContact  Kind = "contact"
	KindResearch Kind = "research"
	KindSocial   Kind = "social"
)

// Outcome is the result of a cache read. A Miss is returned both when no
// entry exists and when the stored entry has expired; callers must not
// distinguish the two. A cache miss is distinct from "provider returned
// empty"; only the former justifies a real network call.
type Outcome struct {
	Hit     bool
	Payload []byte
}

// Miss is the canonical empty outcome.
var Miss = Outcome{}

// HitOutcome wraps a payload in a hit.
func HitOutcome(payload []byte) Outcome {
	return Outcome{Hit: true, Payload: payload}
}

// Store is the cache contract. Implementations must be safe for concurrent
// use; Set is an upsert at single-key granularity.
type Store interface {
	Get(ctx context.Context, key string, kind Kind) (Outcome, error)
	Set(ctx context.Context, key string, kind Kind, payload []byte, ttl time.Duration) error
	// SweepExpired deletes expired entries and returns the count removed.
	// Not latency-critical; run from a periodic job.
	SweepExpired(ctx context.Context) (int, error)
	Close() error
}

var keyFolder = cases.Fold()

// Key derives a deterministic cache key from a provider kind and the
// normalized (case-folded, whitespace-collapsed) query parts, so identical
// logical queries collide on the same key regardless of call site.
func Key(kind Kind, parts ...string) string {
	norm := make([]string, 0, len(parts)+1)
	norm = append(norm, string(kind))
	for _, p := range parts {
		folded := keyFolder.String(p)
		collapsed := strings.Join(strings.Fields(folded), " ")
		norm = append(norm, collapsed)
	}
	return strings.Join(norm, "|")
}

// DefaultTTL returns the freshness window for a provider category: short
// for volatile data (reviews, news, social), long for slow-changing facts.
func DefaultTTL(kind Kind, volatileDays, longLivedDays int) time.Duration {
	if volatileDays <= 0 {
		volatileDays = 7
	}
	if longLivedDays <= 0 {
		longLivedDays = 30
	}
	switch kind {
	case KindReviews, KindSocial:
		return time.Duration(volatileDays) * 24 * time.Hour
	default:
		return time.Duration(longLivedDays) * 24 * time.Hour
	}
}
