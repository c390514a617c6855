// Package cache provides a bounded prepared-statement cache. Each database
// connection owns its own cache; statements are never shared across
// connections.
package cache

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oklog/ulid/v2"

	"github.com/fluxondata/pgwrap/utils"
)

// PrepareFunc prepares sql on the owning connection under the given
// statement name.
type PrepareFunc func(ctx context.Context, name, sql string) error

// DeallocateFunc releases a prepared statement on the owning connection.
// Called when an entry is evicted or the cache is closed.
type DeallocateFunc func(name string)

// StatementCache maps query text to the name of a statement already
// prepared on one connection, bounded by an LRU. Evicted statements are
// deallocated through the callback supplied at construction.
type StatementCache struct {
	mu      sync.RWMutex
	cache   *lru.Cache[uint64, string]
	entropy *ulid.MonotonicEntropy
}

// NewStatementCache creates a cache holding at most size statements.
func NewStatementCache(size int, dealloc DeallocateFunc) *StatementCache {
	cache, _ := lru.NewWithEvict(size, func(key uint64, name string) {
		if dealloc != nil {
			dealloc(name)
		}
	})

	return &StatementCache{
		cache:   cache,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// GetOrPrepare returns the statement name for sql, preparing it first if
// this connection has not seen the query before.
func (s *StatementCache) GetOrPrepare(ctx context.Context, sql string, prepare PrepareFunc) (string, error) {
	key := utils.Fingerprint(sql)

	s.mu.RLock()
	if name, ok := s.cache.Get(key); ok {
		s.mu.RUnlock()
		return name, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring the write lock.
	if name, ok := s.cache.Get(key); ok {
		return name, nil
	}

	name := s.nextName()
	if err := prepare(ctx, name, sql); err != nil {
		return "", err
	}
	s.cache.Add(key, name)
	return name, nil
}

// Len returns the number of cached statements.
func (s *StatementCache) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Len()
}

// Close deallocates every cached statement.
func (s *StatementCache) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}

// nextName generates a unique, time-ordered statement name. Must be called
// with the write lock held: monotonic ULID entropy is not safe for
// concurrent use.
func (s *StatementCache) nextName() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
	if err != nil {
		// Entropy exhaustion within one millisecond; fall back to a
		// non-monotonic ULID.
		id = ulid.Make()
	}
	return "pgwrap_" + id.String()
}
