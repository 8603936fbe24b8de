// Package primitive implements the async synchronization primitives (§4.7):
// a mutex with a fair waiter queue, a guarded ref-cell, a bounded
// rendezvous channel, a fork-join barrier, and a concurrent effect log.
//
// Grounded on the teacher's websocket Hub
// (internal/infrastructure/websocket/hub.go: a mutex-guarded registry with
// channels standing in for suspend/resume) for the queue-and-wake shape
// used by Mutex and Channel, and on backend/internal/application/observer/
// manager.go's copy-before-notify pattern for EffectLog's readers.
package primitive

import "sync"

// Mutex is an async mutex (§4.7): acquire enqueues and waits if held;
// release wakes the head waiter, or simply clears the held bit if the
// queue is empty.
type Mutex struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

func NewMutex() *Mutex { return &Mutex{} }

// Acquire blocks the calling goroutine (SPIRAL's stand-in for a
// suspended task) until the mutex is free, then takes it.
func (m *Mutex) Acquire() {
	m.mu.Lock()
	if !m.held {
		m.held = true
		m.mu.Unlock()
		return
	}
	wake := make(chan struct{})
	m.waiters = append(m.waiters, wake)
	m.mu.Unlock()
	<-wake
}

// Release hands the mutex to the head waiter if one is queued, or marks
// it free.
func (m *Mutex) Release() {
	m.mu.Lock()
	if len(m.waiters) > 0 {
		next := m.waiters[0]
		m.waiters = m.waiters[1:]
		m.mu.Unlock()
		close(next)
		return
	}
	m.held = false
	m.mu.Unlock()
}

// WithLock runs f holding the mutex, releasing it on both normal and
// error return (§4.7's scoped form).
func (m *Mutex) WithLock(f func() (any, error)) (any, error) {
	m.Acquire()
	defer m.Release()
	return f()
}
