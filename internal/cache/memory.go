package cache

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	val []byte
	exp time.Time
}

// Memory — in-process кэш с TTL. Подходит для одного инстанса и тестов.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
	lastGC  time.Time
	gcEvery time.Duration
}

func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memEntry),
		now:     time.Now,
		gcEvery: time.Minute,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.gc(now)
	e, ok := m.entries[key]
	if !ok || !now.Before(e.exp) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), val...)
	m.entries[key] = memEntry{val: cp, exp: m.now().Add(ttl)}
	return nil
}

// gc удаляет протухшие записи не чаще gcEvery. Вызывать под mu.
func (m *Memory) gc(now time.Time) {
	if now.Sub(m.lastGC) < m.gcEvery {
		return
	}
	m.lastGC = now
	for k, e := range m.entries {
		if !now.Before(e.exp) {
			delete(m.entries, k)
		}
	}
}
