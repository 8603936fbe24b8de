// Package scheduler implements the async task scheduler (§4.6): a task
// table plus five interchangeable disciplines behind one interface, per
// spec.md §9's design note ("scheduler disciplines as a trait/interface
// with swappable backends... so detectors and async primitives are
// scheduler-agnostic").
//
// Grounded on the teacher's InternalRetryPolicy.Execute
// (backend/pkg/engine/retry_policy.go): a bounded loop driven by an
// attempt ceiling with an OnRetry hook, generalized here from "retry the
// same call" to "advance a task table under a chosen ordering discipline"
// with the same step-ceiling-as-termination-guarantee shape.
package scheduler

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"spiral/internal/engineconfig"
	"spiral/pkg/errs"
	"spiral/pkg/ir"
)

// Discipline selects one of §4.6's five task-ordering strategies.
type Discipline int

const (
	// Eager begins running a spawned task's body immediately in a
	// background cooperative unit (a goroutine; Go's own preemptive
	// scheduling stands in for "cooperative" here). Sequential, Parallel
	// and DepthFirst run task bodies inline on the caller's goroutine;
	// BreadthFirst runs each tick's wave on errgroup goroutines.
	Eager Discipline = iota
	// Sequential: spawns enqueue; one task runs to completion in FIFO
	// order before the next begins; awaits block until the awaited id
	// completes.
	Sequential
	// Parallel (deterministic): spawns enqueue; Await drives execution
	// by popping and running the requested task inline, enabling
	// on-demand lazy execution for testing.
	Parallel
	// BreadthFirst: each Tick executes, in parallel, every task that
	// was pending when the tick began; newly spawned tasks wait for the
	// next tick.
	BreadthFirst
	// DepthFirst: the most recently spawned task runs first (LIFO),
	// each to completion.
	DepthFirst
)

// Status is a task's lifecycle state (§4.6: "pending, completed, failed").
type Status int

const (
	StatusPending Status = iota
	StatusCompleted
	StatusFailed
)

// TaskFunc is a spawned task's body. A returned Go error represents a
// host-level failure (budget exhaustion, infra fault); an ordinary
// in-language failure should arrive as an *ir.Value whose IsError() is
// true instead.
type TaskFunc func() (*ir.Value, error)

// task is the table's per-id entry.
type task struct {
	status Status
	result *ir.Value
	err    error
	fn     TaskFunc
	done   chan struct{} // closed exactly once, on completion/failure/cancel
}

// Scheduler is the common surface every discipline presents (§9's
// swappable-backend design note): spawn, await, cancel, is-complete, and
// step accounting.
type Scheduler interface {
	Spawn(id string, fn TaskFunc) error
	Await(id string) (*ir.Value, error)
	Cancel(id string) error
	IsComplete(id string) bool
	Steps() int
}

// scheduler is the single concrete implementation; Discipline picks its
// behaviour at Spawn/Await time rather than needing five duplicated
// structs for what is otherwise identical task-table bookkeeping.
type scheduler struct {
	mu         sync.Mutex
	discipline Discipline
	tasks      map[string]*task
	pending    []string // spawn order; disciplines read/drain this differently

	ceiling int
	steps   int

	// eagerSlots bounds how many Eager-discipline task bodies run their
	// background goroutine concurrently; nil when ceiling <= 0. The
	// other four disciplines never acquire it (BreadthFirst's wave
	// goroutines are not bounded by it).
	eagerSlots *semaphore.Weighted
}

// New builds a Scheduler running under the given discipline. ceiling <= 0
// means unbounded (including, for Eager, unbounded goroutine fan-out).
func New(discipline Discipline, ceiling int) Scheduler {
	s := &scheduler{
		discipline: discipline,
		tasks:      make(map[string]*task),
		ceiling:    ceiling,
	}
	if discipline == Eager && ceiling > 0 {
		s.eagerSlots = semaphore.NewWeighted(int64(ceiling))
	}
	return s
}

// disciplineFromConfig maps engineconfig's own SchedulerDiscipline enum
// (§10.3) onto this package's, keeping the two independently defined
// (engineconfig has no reason to import pkg/async/scheduler) but
// positionally aligned.
func disciplineFromConfig(d engineconfig.SchedulerDiscipline) Discipline {
	switch d {
	case engineconfig.Sequential:
		return Sequential
	case engineconfig.Parallel:
		return Parallel
	case engineconfig.BreadthFirst:
		return BreadthFirst
	case engineconfig.DepthFirst:
		return DepthFirst
	default:
		return Eager
	}
}

// NewFromConfig builds a Scheduler from cfg's Discipline and
// MaxSchedulerSteps (§10.3).
func NewFromConfig(cfg *engineconfig.Config) Scheduler {
	return New(disciplineFromConfig(cfg.Discipline), cfg.MaxSchedulerSteps)
}

func (s *scheduler) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

// tick must be called with s.mu held.
func (s *scheduler) tick() error {
	s.steps++
	if s.ceiling > 0 && s.steps > s.ceiling {
		return errs.ErrStepBudgetExceeded
	}
	return nil
}

func (s *scheduler) Spawn(id string, fn TaskFunc) error {
	s.mu.Lock()
	if _, exists := s.tasks[id]; exists {
		s.mu.Unlock()
		return errs.ErrDuplicateTask
	}
	t := &task{status: StatusPending, fn: fn, done: make(chan struct{})}
	s.tasks[id] = t
	if s.discipline == Eager {
		s.mu.Unlock()
		go s.runEager(id, t)
		return nil
	}
	s.pending = append(s.pending, id)
	s.mu.Unlock()
	return nil
}

// runEager blocks on eagerSlots (when the scheduler was built with a
// ceiling) before running t's body, so at most `ceiling` Eager task
// bodies run concurrently regardless of how many have been spawned.
func (s *scheduler) runEager(id string, t *task) {
	if s.eagerSlots != nil {
		_ = s.eagerSlots.Acquire(context.Background(), 1)
		defer s.eagerSlots.Release(1)
	}
	result, err := t.fn()
	s.mu.Lock()
	s.finish(id, t, result, err)
	s.mu.Unlock()
}

// finish must be called with s.mu held; it is idempotent against a prior
// cancellation (a cancelled task's outcome is never overwritten).
func (s *scheduler) finish(id string, t *task, result *ir.Value, err error) {
	select {
	case <-t.done:
		return // already finished (e.g. cancelled)
	default:
	}
	if err != nil || (result != nil && result.IsError()) {
		t.status = StatusFailed
		t.err = err
	} else {
		t.status = StatusCompleted
	}
	t.result = result
	close(t.done)
}

// Await awaits id's result, running it now under deterministic
// disciplines that require on-demand draining.
func (s *scheduler) Await(id string) (*ir.Value, error) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return nil, errs.ErrUnknownTask
	}

	switch s.discipline {
	case Eager:
		s.mu.Unlock()
		<-t.done
		return s.outcome(t)

	case Sequential, DepthFirst:
		if err := s.drainUntil(id); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.mu.Unlock()
		return s.outcome(t)

	case Parallel:
		if t.status == StatusPending {
			s.removeFromPending(id)
			if err := s.tick(); err != nil {
				s.mu.Unlock()
				return nil, err
			}
			fn := t.fn
			s.mu.Unlock()
			result, err := fn()
			s.mu.Lock()
			s.finish(id, t, result, err)
		}
		s.mu.Unlock()
		return s.outcome(t)

	case BreadthFirst:
		for t.status == StatusPending {
			if err := s.tickWave(); err != nil {
				s.mu.Unlock()
				return nil, err
			}
		}
		s.mu.Unlock()
		return s.outcome(t)

	default:
		s.mu.Unlock()
		return nil, errs.ErrUnknownTask
	}
}

// drainUntil runs s.pending to completion in the discipline's order
// (FIFO for Sequential, LIFO for DepthFirst) until id itself has run.
// Must be called with s.mu held.
func (s *scheduler) drainUntil(id string) error {
	for {
		t := s.tasks[id]
		if t.status != StatusPending {
			return nil
		}
		next, ok := s.popPending()
		if !ok {
			return nil // id was already removed without running; nothing left to drain
		}
		nt := s.tasks[next]
		if err := s.tick(); err != nil {
			return err
		}
		fn := nt.fn
		s.mu.Unlock()
		result, err := fn()
		s.mu.Lock()
		s.finish(next, nt, result, err)
	}
}

// popPending removes and returns the next id per discipline order. Must
// be called with s.mu held.
func (s *scheduler) popPending() (string, bool) {
	if len(s.pending) == 0 {
		return "", false
	}
	if s.discipline == DepthFirst {
		last := len(s.pending) - 1
		id := s.pending[last]
		s.pending = s.pending[:last]
		return id, true
	}
	id := s.pending[0]
	s.pending = s.pending[1:]
	return id, true
}

func (s *scheduler) removeFromPending(id string) {
	for i, pid := range s.pending {
		if pid == id {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

// tickWave runs, in parallel, every task pending at the moment it's
// called — BreadthFirst's definition of one tick. Must be called with
// s.mu held; releases it while tasks run.
func (s *scheduler) tickWave() error {
	if len(s.pending) == 0 {
		return nil
	}
	wave := s.pending
	s.pending = nil

	if err := s.tick(); err != nil {
		return err
	}

	var g errgroup.Group
	for _, id := range wave {
		id, t := id, s.tasks[id]
		g.Go(func() error {
			result, err := t.fn()
			s.mu.Lock()
			s.finish(id, t, result, err)
			s.mu.Unlock()
			return nil
		})
	}
	s.mu.Unlock()
	_ = g.Wait() // each goroutine's own error is cached on its task, never returned here
	s.mu.Lock()
	return nil
}

// outcome reports a cached IR-level error value when one was produced
// (cancellation, an in-language failure) but re-raises a genuine
// host-level Go error (e.g. a step budget exceeded deep inside the
// task's body) the same way pkg/eval and pkg/cfg do: as the error
// return, not as a value.
func (s *scheduler) outcome(t *task) (*ir.Value, error) {
	if t.result == nil && t.err != nil {
		return nil, t.err
	}
	return t.result, nil
}

// Cancel marks a task failed and releases any awaiter with a
// cancellation error (§4.6).
func (s *scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return errs.ErrUnknownTask
	}
	select {
	case <-t.done:
		return nil // already finished; cancellation after completion is a no-op
	default:
	}
	t.status = StatusFailed
	t.result = ir.NewError(ir.ErrCancelled, "task cancelled", nil)
	t.err = errs.ErrCancelled
	close(t.done)
	s.removeFromPending(id)
	return nil
}

// IsComplete is true iff the task has a cached result, completed or
// failed (§4.6).
func (s *scheduler) IsComplete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	return t.status != StatusPending
}
