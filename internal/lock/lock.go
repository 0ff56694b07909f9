// Package lock provides named mutual exclusion shared between processes.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotHeld is returned when releasing a lock this holder no longer owns.
var ErrNotHeld = errors.New("lock not held")

// Locker acquires named locks. Acquire blocks until the lock is obtained or
// ctx is done; the returned function releases it.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func() error, err error)
}

// Default timings for lock acquisition
const (
	DefaultTTL          = 5 * time.Minute
	DefaultPollInterval = 100 * time.Millisecond
)

// Local is an in-process Locker used when no Redis server is configured.
type Local struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocal creates an in-process locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]chan struct{})}
}

func (l *Local) slot(name string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[name]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[name] = ch
	}
	return ch
}

// Acquire implements Locker.
func (l *Local) Acquire(ctx context.Context, name string) (func() error, error) {
	ch := l.slot(name)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() error {
		err := ErrNotHeld
		once.Do(func() {
			<-ch
			err = nil
		})
		return err
	}, nil
}

// With runs fn while holding the named lock. The lock is released even when
// fn panics; a release failure is joined to fn's error.
func With(ctx context.Context, l Locker, name string, fn func() error) (err error) {
	release, err := l.Acquire(ctx, name)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := release(); relErr != nil {
			err = errors.Join(err, relErr)
		}
	}()
	return fn()
}
