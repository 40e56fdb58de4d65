package locker

import (
	"context"
	"sync"
)

// Memory serializes work per key inside a single process.
// Waiting is cancellable through the context.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

type memoryLock struct {
	ch   chan struct{}
	refs int
}

// NewMemory creates an in-process keyed lock.
func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*memoryLock)}
}

// Lock blocks until key is free or ctx is done. The returned func releases the
// lock and is safe to call more than once.
func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &memoryLock{ch: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.ch
				m.release(key, l)
			})
		}, nil

	case <-ctx.Done():
		m.release(key, l)
		return nil, ctx.Err()
	}
}

// release drops a reference and forgets idle keys so the map does not grow unbounded.
func (m *Memory) release(key string, l *memoryLock) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
