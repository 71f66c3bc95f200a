package replay

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultCapacity bounds the reference store when no capacity is given.
const DefaultCapacity = 10000

// LRUStore is the in-memory reference Store: a capacity-bounded LRU of
// salted nonce hashes with per-entry expiry. It is best-effort only —
// correct within one process, with no coordination across instances.
// A distributed deployment needs RedisStore or an equivalent backend.
type LRUStore struct {
	mu       sync.Mutex
	capacity int
	salt     string
	now      func() time.Time

	order   *list.List
	entries map[string]*list.Element
}

type lruEntry struct {
	key      string
	expiresAt time.Time
}

// LRUOption configures an LRUStore.
type LRUOption func(*LRUStore)

// WithCapacity bounds the number of tracked nonces.
func WithCapacity(n int) LRUOption {
	return func(s *LRUStore) { s.capacity = n }
}

// WithSalt sets the key-derivation salt.
func WithSalt(salt string) LRUOption {
	return func(s *LRUStore) { s.salt = salt }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) LRUOption {
	return func(s *LRUStore) { s.now = now }
}

// NewLRUStore creates the reference in-memory store.
func NewLRUStore(opts ...LRUOption) *LRUStore {
	s := &LRUStore{
		capacity: DefaultCapacity,
		now:      time.Now,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.capacity <= 0 {
		s.capacity = DefaultCapacity
	}

	return s
}

// Seen implements Store. A live entry is refreshed to the most-recently-used
// position and reported as a replay. An expired entry is dropped and the
// nonce treated as new. Inserting at capacity evicts the single
// least-recently-used entry.
func (s *LRUStore) Seen(_ context.Context, rc Context) (bool, error) {
	key := Key(s.salt, rc)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		entry := el.Value.(*lruEntry)
		if now.Before(entry.expiresAt) {
			s.order.MoveToFront(el)
			return true, nil
		}

		s.order.Remove(el)
		delete(s.entries, key)
	}

	if s.order.Len() >= s.capacity {
		oldest := s.order.Back()
		if oldest != nil {
			s.order.Remove(oldest)
			delete(s.entries, oldest.Value.(*lruEntry).key)
		}
	}

	s.entries[key] = s.order.PushFront(&lruEntry{key: key, expiresAt: now.Add(rc.TTL)})

	return false, nil
}

// Len reports the number of tracked nonces, expired entries included.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.order.Len()
}
