package session

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by lookups that require an existing session.
var ErrNotFound = errors.New("session not found")

// Store keeps session state by key. Implementations hand out copies: mutating a returned
// State has no effect until it is passed back to Put.
type Store interface {
	Get(ctx context.Context, key string) (*State, bool, error)
	Put(ctx context.Context, key string, st *State) error
	Delete(ctx context.Context, key string) error
}

const (
	defaultTTL         = 2 * time.Hour
	defaultMaxSessions = 1024
)

// MemoryConfig bounds the in-memory store.
type MemoryConfig struct {
	// TTL evicts sessions idle for longer than this.
	TTL time.Duration
	// MaxSessions evicts the least recently used sessions beyond this count.
	MaxSessions int
}

// MemoryStore is a process-local Store with TTL and LRU eviction.
type MemoryStore struct {
	mu sync.Mutex

	ttl         time.Duration
	maxSessions int
	now         func() time.Time

	lru *list.List               // front=MRU
	m   map[string]*list.Element // key -> element(Value=*item)
}

type item struct {
	key      string
	st       *State
	lastUsed time.Time
}

func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	maxS := cfg.MaxSessions
	if maxS <= 0 {
		maxS = defaultMaxSessions
	}
	return &MemoryStore{
		ttl:         ttl,
		maxSessions: maxS,
		now:         time.Now,
		lru:         list.New(),
		m:           map[string]*list.Element{},
	}
}

func (st *MemoryStore) Get(_ context.Context, key string) (*State, bool, error) {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.evictExpiredLocked(now)

	e := st.m[key]
	if e == nil {
		return nil, false, nil
	}
	it := e.Value.(*item)
	it.lastUsed = now
	st.lru.MoveToFront(e)

	return it.st.Clone(), true, nil
}

func (st *MemoryStore) Put(_ context.Context, key string, s *State) error {
	if s == nil {
		return errors.New("session state is required")
	}
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.evictExpiredLocked(now)

	if e := st.m[key]; e != nil {
		it := e.Value.(*item)
		it.st = s.Clone()
		it.lastUsed = now
		st.lru.MoveToFront(e)
		return nil
	}

	st.m[key] = st.lru.PushFront(&item{key: key, st: s.Clone(), lastUsed: now})
	st.evictOverLimitLocked()

	return nil
}

func (st *MemoryStore) Delete(_ context.Context, key string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if e := st.m[key]; e != nil {
		st.deleteElemLocked(e)
	}
	return nil
}

// Len reports the number of live sessions.
func (st *MemoryStore) Len() int {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	st.evictExpiredLocked(now)
	return st.lru.Len()
}

func (st *MemoryStore) evictExpiredLocked(now time.Time) {
	for e := st.lru.Back(); e != nil; {
		prev := e.Prev()
		it := e.Value.(*item)
		if now.Sub(it.lastUsed) <= st.ttl {
			break
		}
		st.deleteElemLocked(e)
		e = prev
	}
}

func (st *MemoryStore) evictOverLimitLocked() {
	for st.lru.Len() > st.maxSessions {
		st.deleteElemLocked(st.lru.Back())
	}
}

func (st *MemoryStore) deleteElemLocked(e *list.Element) {
	it := e.Value.(*item)
	delete(st.m, it.key)
	st.lru.Remove(e)
}
