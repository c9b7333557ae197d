// Package lock serializes monthly recomputation so concurrent writers for
// the same month never interleave.
package lock

import (
	"context"
	"sync"
)

// Locker grants exclusive access per key. Acquire blocks until the lock is
// held or the context is done; the returned function releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type keyedLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedLocker returns the in-process locker used for single-replica
// deployments.
func NewKeyedLocker() Locker {
	return &keyedLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *keyedLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}
