// Package obslog wraps zerolog for SPIRAL's ambient logging concern
// (§10.1): structured, leveled logging around evaluation, CFG execution,
// scheduling, and detector runs, in the same style the teacher's node
// executors log around node execution
// (backend/internal/application/executor/node_executors.go's
// github.com/rs/zerolog/log calls).
package obslog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is a thin named wrapper over a zerolog.Logger, grounded on the
// teacher's optional *logger.Logger threaded through ObserverManager via
// functional option (backend/internal/application/observer/manager.go's
// WithLogger).
type Logger struct {
	z zerolog.Logger
}

// Option configures a Logger at construction.
type Option func(*zerolog.Logger)

// WithWriter overrides the destination (default os.Stderr).
func WithWriter(w io.Writer) Option {
	return func(z *zerolog.Logger) { *z = z.Output(w) }
}

// WithLevel overrides the minimum logged level (by default no level is
// set here, so zerolog's global level applies: Debug and above).
func WithLevel(level zerolog.Level) Option {
	return func(z *zerolog.Logger) { *z = z.Level(level) }
}

// New builds a Logger tagged with component, the subsystem name
// (evaluator, scheduler, cfg, race, deadlock, ...) attached to every
// entry it writes.
func New(component string, opts ...Option) *Logger {
	z := zerolog.New(os.Stderr).With().Timestamp().Str("component", component).Logger()
	for _, opt := range opts {
		opt(&z)
	}
	return &Logger{z: z}
}

func (l *Logger) Debug() *zerolog.Event { return l.z.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.z.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.z.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.z.Error() }

// Nop returns a Logger that discards everything, for callers (tests,
// library embedders) that don't want evaluation noise.
func Nop() *Logger {
	return &Logger{z: zerolog.Nop()}
}
