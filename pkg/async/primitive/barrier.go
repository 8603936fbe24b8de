package primitive

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"spiral/pkg/async/scheduler"
	"spiral/pkg/errs"
	"spiral/pkg/ir"
)

// Barrier is a fork-join group over a dynamic task table (§4.7), driven
// by a caller-supplied scheduler.Scheduler so it stays discipline
// agnostic per §9's design note.
type Barrier struct {
	sched  scheduler.Scheduler
	forked []string
}

func NewBarrier(sched scheduler.Scheduler) *Barrier {
	return &Barrier{sched: sched}
}

// Fork enqueues and spawns body under id, tracking it for the next Join.
func (b *Barrier) Fork(id string, body scheduler.TaskFunc) error {
	if err := b.sched.Spawn(id, body); err != nil {
		return err
	}
	b.forked = append(b.forked, id)
	return nil
}

// Join waits for every forked task to complete in parallel, one errgroup
// goroutine per task, returning their id→result map. It fails with the
// first task error encountered, or errs.ErrTimeout if the deadline
// elapses first (timeout <= 0 means wait indefinitely).
func (b *Barrier) Join(timeout time.Duration) (map[string]*ir.Value, error) {
	ids := b.forked
	b.forked = nil

	ctx := context.Background()
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	results := make(map[string]*ir.Value, len(ids))

	for _, id := range ids {
		id := id
		g.Go(func() error {
			v, err := b.sched.Await(id)
			if err != nil {
				return err
			}
			if v != nil && v.IsError() {
				return &errs.NodeError{NodeID: id, Err: errs.ErrCancelled}
			}
			mu.Lock()
			results[id] = v
			mu.Unlock()
			return nil
		})
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- g.Wait() }()

	select {
	case err := <-waitDone:
		if err != nil {
			return nil, err
		}
		return results, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errs.ErrTimeout
		}
		// errgroup cancels ctx with the first task error as its cause,
		// and with a plain context.Canceled once Wait has returned.
		if cause := context.Cause(ctx); !errors.Is(cause, context.Canceled) {
			return nil, cause
		}
		if err := <-waitDone; err != nil {
			return nil, err
		}
		return results, nil
	}
}
