// Package lock provides the per-day critical section taken around booking commits.
//
// The calendar has no conditional insert, so two commits for overlapping slots
// can both pass revalidation if their reads interleave. Holding a lock keyed by
// the booking day across read-verify-write closes that window for every process
// sharing the same Locker backend.
package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock. It is safe to call more than once.
type Unlock func()

// Locker acquires named mutual-exclusion locks.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Nop never blocks; commits rely on revalidation alone.
type Nop struct{}

func (Nop) Lock(context.Context, string) (Unlock, error) {
	return func() {}, nil
}

// Local serializes holders of the same key within one process.
// An entry lives only while someone holds or waits for its key.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size is the number of live keys.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
