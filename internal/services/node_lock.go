package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"tour-service/internal/models"
)

type lockKey struct {
	node uuid.UUID
	kind models.AnnotationKind
}

type lockEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedLocker hands out one exclusive lock per (node, kind). Entries are
// dropped once nobody holds or waits for them.
type KeyedLocker struct {
	mu      sync.Mutex
	entries map[lockKey]*lockEntry
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{entries: make(map[lockKey]*lockEntry)}
}

// Lock blocks until the (node, kind) lock is held or ctx is done. The
// returned func releases the lock.
func (l *KeyedLocker) Lock(ctx context.Context, node uuid.UUID, kind models.AnnotationKind) (func(), error) {
	key := lockKey{node: node, kind: kind}

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &lockEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() {
			<-e.ch
			l.release(key, e)
		}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}

func (l *KeyedLocker) release(key lockKey, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// size reports the number of live entries.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
