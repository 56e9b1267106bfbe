package cache

import (
	"context"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds a store created with size <= 0.
const DefaultMaxEntries = 2048

// MemoryStore keeps entries in a bounded LRU with a tag -> keys index.
type MemoryStore struct {
	entries *lru.Cache[string, Entry]

	mu    sync.Mutex
	byTag map[string]map[string]struct{}
}

// NewMemoryStore creates a MemoryStore holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMaxEntries
	}
	s := &MemoryStore{byTag: make(map[string]map[string]struct{})}
	entries, err := lru.NewWithEvict[string, Entry](size, s.unindex)
	if err != nil {
		return nil, err
	}
	s.entries = entries
	return s, nil
}

// unindex runs on eviction and removal. It must never be called while s.mu is
// held, so nothing below calls into s.entries under the lock.
func (s *MemoryStore) unindex(key string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tag := range e.Tags {
		keys := s.byTag[tag]
		delete(keys, key)
		if len(keys) == 0 {
			delete(s.byTag, tag)
		}
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	e, ok := s.entries.Get(key)
	return e, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, e Entry) error {
	// Drop the old entry first so its tags leave the index.
	s.entries.Remove(e.Key)
	s.entries.Add(e.Key, e)

	s.mu.Lock()
	for _, tag := range e.Tags {
		keys, ok := s.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.byTag[tag] = keys
		}
		keys[e.Key] = struct{}{}
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	return s.entries.Remove(key), nil
}

func (s *MemoryStore) DeleteTag(_ context.Context, tag string) (int, error) {
	s.mu.Lock()
	keys := make([]string, 0, len(s.byTag[tag]))
	for k := range s.byTag[tag] {
		keys = append(keys, k)
	}
	s.mu.Unlock()

	n := 0
	for _, k := range keys {
		if s.entries.Remove(k) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for _, k := range s.entries.Keys() {
		if strings.HasPrefix(k, prefix) && s.entries.Remove(k) {
			n++
		}
	}
	return n, nil
}

// Len returns the number of cached entries.
func (s *MemoryStore) Len() int {
	return s.entries.Len()
}

func (s *MemoryStore) Close() error {
	s.entries.Purge()
	return nil
}
