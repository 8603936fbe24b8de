// Package engineconfig holds the plain-struct execution limits shared
// across the evaluator, CFG executor, and async scheduler (§10.3),
// grounded on the teacher's ExecutionOptions
// (backend/pkg/engine/options.go: a flat struct of limits configured via
// functional options) and backend/internal/config/config.go's layering.
// Standard library only, matching the teacher's own choice for this
// exact concern — a bag of numeric limits needs no third-party config
// library.
package engineconfig

import "time"

// SchedulerDiscipline selects one of the five async scheduling
// strategies named in §4.6.
type SchedulerDiscipline int

const (
	// Eager begins executing a spawned task's body immediately in a
	// background cooperative unit.
	Eager SchedulerDiscipline = iota
	// Sequential runs one enqueued task to completion, FIFO, before the
	// next begins.
	Sequential
	// Parallel defers execution until an await drives it, popping and
	// running the requested task inline — useful for deterministic
	// tests.
	Parallel
	// BreadthFirst runs, each tick, every task that was pending at tick
	// start; newly spawned tasks wait for the next tick.
	BreadthFirst
	// DepthFirst runs the most recently spawned task first (LIFO), each
	// to completion.
	DepthFirst
)

// Config bundles every step/yield/memo/discipline limit the engine's
// components read at construction.
type Config struct {
	// MaxSteps bounds the expression evaluator's and the CFG executor's
	// step counters, each counted and checked separately; 0 means
	// unbounded.
	MaxSteps int

	// MaxSchedulerSteps bounds the async scheduler's global step
	// counter; 0 means unbounded.
	MaxSchedulerSteps int

	// YieldInterval is stored but read by no constructor or component:
	// the scheduler does not yield mid-task, and its disciplines switch
	// tasks only between whole task bodies.
	YieldInterval int

	// OperatorMemoCapacity sizes the pure-operator LRU; 0 disables
	// memoisation entirely.
	OperatorMemoCapacity int

	// Discipline selects the scheduler's task-ordering strategy.
	Discipline SchedulerDiscipline

	// DeadlockPollInterval is stored but read by no constructor or
	// component; deadlock.DetectDeadlockTimed takes its poll interval as
	// an explicit argument.
	DeadlockPollInterval time.Duration
}

// Option configures a Config at construction.
type Option func(*Config)

func WithMaxSteps(n int) Option             { return func(c *Config) { c.MaxSteps = n } }
func WithMaxSchedulerSteps(n int) Option     { return func(c *Config) { c.MaxSchedulerSteps = n } }
func WithYieldInterval(n int) Option         { return func(c *Config) { c.YieldInterval = n } }
func WithOperatorMemoCapacity(n int) Option  { return func(c *Config) { c.OperatorMemoCapacity = n } }
func WithDiscipline(d SchedulerDiscipline) Option {
	return func(c *Config) { c.Discipline = d }
}
func WithDeadlockPollInterval(d time.Duration) Option {
	return func(c *Config) { c.DeadlockPollInterval = d }
}

// Default returns the engine's out-of-the-box limits: a generous but
// finite step ceiling, eager scheduling, and a small operator memo.
func Default(opts ...Option) *Config {
	c := &Config{
		MaxSteps:             1_000_000,
		MaxSchedulerSteps:    1_000_000,
		YieldInterval:        64,
		OperatorMemoCapacity: 256,
		Discipline:           Eager,
		DeadlockPollInterval: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
