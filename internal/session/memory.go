package session

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/congo-pay/ussd_gateway/internal/telco"
)

const defaultShardCount = 32

type shard struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// MemoryStore keeps sessions in process memory, split across independently
// locked shards so turns for different sessions rarely contend.
type MemoryStore struct {
	shards []*shard
	idle   time.Duration
	now    Clock
}

// NewMemoryStore builds a sharded in-memory store. A nil clock uses the system clock.
func NewMemoryStore(idle time.Duration, now Clock) *MemoryStore {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if now == nil {
		now = systemClock
	}
	shards := make([]*shard, defaultShardCount)
	for i := range shards {
		shards[i] = &shard{sessions: make(map[string]Session)}
	}
	return &MemoryStore{shards: shards, idle: idle, now: now}
}

func (m *MemoryStore) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return m.shards[h.Sum32()%uint32(len(m.shards))]
}

func (m *MemoryStore) GetOrCreate(_ context.Context, id, phone string, provider telco.Provider) (Session, bool, error) {
	sh := m.shardFor(id)
	now := m.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s, ok := sh.sessions[id]; ok && !s.Expired(now, m.idle) {
		return s, false, nil
	}
	s := New(id, phone, provider, now)
	sh.sessions[id] = s
	return s, true, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	sh := m.shardFor(id)
	now := m.now()

	sh.mu.RLock()
	s, ok := sh.sessions[id]
	sh.mu.RUnlock()
	if !ok {
		return Session{}, ErrSessionExpired
	}
	if s.Expired(now, m.idle) {
		m.removeIfExpired(sh, id, now)
		return Session{}, ErrSessionExpired
	}
	return s, nil
}

func (m *MemoryStore) Touch(_ context.Context, id string) error {
	sh := m.shardFor(id)
	now := m.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	s, ok := sh.sessions[id]
	if !ok || s.Expired(now, m.idle) {
		delete(sh.sessions, id)
		return ErrSessionExpired
	}
	s.LastActivityAt = now
	sh.sessions[id] = s
	return nil
}

func (m *MemoryStore) Save(_ context.Context, s Session) error {
	sh := m.shardFor(s.ID)
	now := m.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()
	current, ok := sh.sessions[s.ID]
	if !ok || current.Expired(now, m.idle) {
		delete(sh.sessions, s.ID)
		return ErrSessionExpired
	}
	s.LastActivityAt = now
	sh.sessions[s.ID] = s
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, id string) error {
	sh := m.shardFor(id)
	sh.mu.Lock()
	delete(sh.sessions, id)
	sh.mu.Unlock()
	return nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	now := m.now()
	n := 0
	for _, sh := range m.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			if !s.Expired(now, m.idle) {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n, nil
}

func (m *MemoryStore) Snapshot(_ context.Context) ([]Summary, error) {
	now := m.now()
	var out []Summary
	for _, sh := range m.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			if !s.Expired(now, m.idle) {
				out = append(out, s.summary())
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Sweep collects expired ids under a read lock, then deletes them under the
// write lock, re-checking each so a session touched in between survives.
func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := m.now()
	evicted := 0
	for _, sh := range m.shards {
		var stale []string
		sh.mu.RLock()
		for id, s := range sh.sessions {
			if s.Expired(now, m.idle) {
				stale = append(stale, id)
			}
		}
		sh.mu.RUnlock()
		if len(stale) == 0 {
			continue
		}

		sh.mu.Lock()
		for _, id := range stale {
			if s, ok := sh.sessions[id]; ok && s.Expired(now, m.idle) {
				delete(sh.sessions, id)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted, nil
}

func (m *MemoryStore) removeIfExpired(sh *shard, id string, now time.Time) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if s, ok := sh.sessions[id]; ok && s.Expired(now, m.idle) {
		delete(sh.sessions, id)
	}
}
