// Package storage defines the index storage capability and its Redis
// implementation. The index engine only ever talks to the Store interface;
// per-key atomicity (test-and-set, set membership, sorted inserts) is the
// backend's job.
package storage

import (
	"context"
	"time"
)

// CommitEntry describes the full index footprint of one newly admitted
// record: its forward-store key, its time-index placement, and every
// attribute set it joins. A commit is applied as one grouped write.
type CommitEntry struct {
	RecordKey string
	Raw       []byte
	TimeKey   string
	Member    string
	Score     float64
	SetKeys   []string
}

// Store is the storage capability the indexer and query engine depend on.
type Store interface {
	// ListLength returns the length of the raw source list.
	ListLength(ctx context.Context, key string) (int64, error)

	// ListRange returns source entries in [start, stop] (inclusive, zero-based).
	ListRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)

	// MarkSeen test-and-sets one dedupe marker per key in a single grouped
	// write. The returned slice is parallel to keys: true means the marker
	// was newly set. A ttl of zero means no expiration.
	MarkSeen(ctx context.Context, keys []string, ttl time.Duration) ([]bool, error)

	// CommitRecords applies every entry's footprint in one grouped write.
	// The ttl applies to each forward record and each attribute set touched.
	CommitRecords(ctx context.Context, entries []CommitEntry, ttl time.Duration) error

	// Get retrieves a string-valued key. found is false for a missing or
	// expired key; that is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// RangeByScore returns sorted-set members with score in [min, max],
	// ascending by score with ties in insertion order.
	RangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)

	// SetMembers returns all members of a set key. A missing key is an
	// empty set.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// SortedSetCard returns the cardinality of a sorted set.
	SortedSetCard(ctx context.Context, key string) (int64, error)

	// RemoveByScoreBelow removes sorted-set members with score <= max and
	// returns how many were removed.
	RemoveByScoreBelow(ctx context.Context, key string, max float64) (int64, error)

	// RemoveSortedMembers removes specific members from a sorted set.
	RemoveSortedMembers(ctx context.Context, key string, members ...string) error

	// ScanKeys returns every key matching a glob pattern.
	ScanKeys(ctx context.Context, pattern string) ([]string, error)

	// Exists reports whether a key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	Close() error
}
