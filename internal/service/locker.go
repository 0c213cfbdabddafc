package service

import (
	"context"
	"sync"
	"time"
)

// Locker serializes work on a key across requests. Acquire blocks until the
// lock is held or ctx is done and returns the function that releases it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// LocalLocker is an in-process Locker for single-instance setups and tests.
// The ttl is ignored: a holder keeps the lock until it releases it.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]chan struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	for {
		l.mu.Lock()
		held, ok := l.locks[key]
		if !ok {
			done := make(chan struct{})
			l.locks[key] = done
			l.mu.Unlock()
			return func() { l.release(key, done) }, nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-held:
		}
	}
}

func (l *LocalLocker) release(key string, done chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.locks[key] == done {
		delete(l.locks, key)
		close(done)
	}
}
