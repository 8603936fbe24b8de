package eval

import (
	"strconv"
	"time"

	"spiral/pkg/ir"
)

// evalParallel evaluates every sub-expression concurrently on its own
// background task, collecting results in the original order, and
// short-circuits on the first error value encountered (§3: "parallel
// composition"). Each branch runs through Eval itself, so nested
// effects/operators/PIR forms all still go through the one guarded
// Evaluator.
func (ev *Evaluator) evalParallel(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	if errVal := ev.requireAsync(); errVal != nil {
		return errVal, nil
	}
	exprs := e.Parallel.Exprs
	ids := make([]string, len(exprs))
	for i, sub := range exprs {
		sub := sub
		id := ev.newTaskID()
		ids[i] = id
		if err := ev.Scheduler.Spawn(id, func() (*ir.Value, error) {
			return ev.Eval(sub, rho)
		}); err != nil {
			return nil, err
		}
	}
	results := make([]*ir.Value, len(ids))
	for i, id := range ids {
		v, err := ev.Scheduler.Await(id)
		if err != nil {
			return nil, err
		}
		if v != nil && v.IsError() {
			return v, nil
		}
		results[i] = v
	}
	return ir.NewList(results), nil
}

// evalSpawn enqueues NodeID's body as a fresh background task and returns
// a future immediately, without waiting (§3, §4.8). RunNode resolves and
// runs a fresh instance of the node each call, the same "freshly seeded,
// but rho is a live reference to the spawn site's own environment" rule
// pkg/async/pir.execSpawn follows.
func (ev *Evaluator) evalSpawn(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	if errVal := ev.requireAsync(); errVal != nil {
		return errVal, nil
	}
	if ev.RunNode == nil {
		return ir.NewError(ir.ErrTypeError, "spawn requires a RunNode resolver", nil), nil
	}
	nodeID := e.Spawn.NodeID
	id := ev.newTaskID()
	if err := ev.Scheduler.Spawn(id, func() (*ir.Value, error) {
		return ev.RunNode(nodeID, rho)
	}); err != nil {
		return nil, err
	}
	return ir.NewFuture(id), nil
}

// evalAwait evaluates Future to a future value and blocks on it,
// optionally racing a timeout; on expiry it evaluates Fallback if given,
// else reports TimeoutError (§4.8's Timeouts section).
func (ev *Evaluator) evalAwait(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	if errVal := ev.requireAsync(); errVal != nil {
		return errVal, nil
	}
	futureVal, err := ev.Eval(e.Await.Future, rho)
	if err != nil {
		return nil, err
	}
	if futureVal.IsError() {
		return futureVal, nil
	}
	if futureVal.Kind != ir.VFuture {
		return ir.NewError(ir.ErrTypeError, "await operand must be a future", nil), nil
	}

	timeoutMs, err := ev.evalOptionalTimeout(e.Await.TimeoutMs, rho)
	if err != nil {
		return nil, err
	}
	if timeoutMs <= 0 {
		v, err := ev.Scheduler.Await(futureVal.FutureVal.TaskID)
		if err != nil {
			return nil, err
		}
		return v, nil
	}

	result := make(chan awaitOutcome, 1)
	go func() {
		v, err := ev.Scheduler.Await(futureVal.FutureVal.TaskID)
		result <- awaitOutcome{value: v, err: err}
	}()
	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case out := <-result:
		if out.err != nil {
			return nil, out.err
		}
		return out.value, nil
	case <-timer.C:
		if e.Await.Fallback != nil {
			return ev.Eval(e.Await.Fallback, rho)
		}
		return ir.NewError(ir.ErrTimeoutError, "await timed out", nil), nil
	}
}

type awaitOutcome struct {
	value *ir.Value
	err   error
}

// evalOptionalTimeout evaluates an optional millisecond-valued timeout
// expression, returning 0 when absent.
func (ev *Evaluator) evalOptionalTimeout(e *ir.Expr, rho ir.Env) (int64, error) {
	if e == nil {
		return 0, nil
	}
	v, err := ev.Eval(e, rho)
	if err != nil {
		return 0, err
	}
	if v.IsError() {
		return 0, nil
	}
	return v.Int, nil
}

// evalChanNew creates a fresh channel in the store and returns its
// handle (§3). Capacity defaults to 0 (rendezvous) when absent.
func (ev *Evaluator) evalChanNew(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	if errVal := ev.requireAsync(); errVal != nil {
		return errVal, nil
	}
	capacity := 0
	if e.ChanNew.Capacity != nil {
		v, err := ev.Eval(e.ChanNew.Capacity, rho)
		if err != nil {
			return nil, err
		}
		if v.IsError() {
			return v, nil
		}
		capacity = int(v.Int)
	}
	id := "chan#" + strconv.FormatInt(ev.taskSeq.Add(1), 10)
	ch := ev.Channels.Create(id, e.ChanNew.Kind, capacity)
	return ir.NewChannel(&ir.ChannelHandle{ID: id, Kind: ch.Kind()}), nil
}

func (ev *Evaluator) resolveChannel(chanExpr *ir.Expr, rho ir.Env) (*ir.Value, error) {
	chanVal, err := ev.Eval(chanExpr, rho)
	if err != nil {
		return nil, err
	}
	if chanVal.IsError() {
		return chanVal, nil
	}
	if chanVal.Kind != ir.VChannel {
		return ir.NewError(ir.ErrTypeError, "operand must be a channel", nil), nil
	}
	return chanVal, nil
}

// evalSend evaluates Channel and Value, then sends (§4.7's rendezvous
// semantics, implemented by pkg/async/primitive.Channel.Send).
func (ev *Evaluator) evalSend(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	if errVal := ev.requireAsync(); errVal != nil {
		return errVal, nil
	}
	chanVal, err := ev.resolveChannel(e.Send.Channel, rho)
	if err != nil || chanVal.IsError() {
		return chanVal, err
	}
	val, err := ev.Eval(e.Send.Value, rho)
	if err != nil {
		return nil, err
	}
	if val.IsError() {
		return val, nil
	}
	ch, ok := ev.Channels.Get(chanVal.Channel.ID)
	if !ok {
		return ir.NewError(ir.ErrChannelClosed, "unknown channel", nil), nil
	}
	if err := ch.Send(val); err != nil {
		return ir.NewError(ir.ErrChannelClosed, err.Error(), nil), nil
	}
	return ir.NewVoid(), nil
}

// evalRecv evaluates Channel then receives (§4.7).
func (ev *Evaluator) evalRecv(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	if errVal := ev.requireAsync(); errVal != nil {
		return errVal, nil
	}
	chanVal, err := ev.resolveChannel(e.Recv.Channel, rho)
	if err != nil || chanVal.IsError() {
		return chanVal, err
	}
	ch, ok := ev.Channels.Get(chanVal.Channel.ID)
	if !ok {
		return ir.NewError(ir.ErrChannelClosed, "unknown channel", nil), nil
	}
	v, err := ch.Recv()
	if err != nil {
		return ir.NewError(ir.ErrChannelClosed, err.Error(), nil), nil
	}
	return v, nil
}

// evalSelect races Futures, binding the winning index and value into a
// select-result, or index -1 with no value on timeout (§4.8 Scenario 8);
// the fan-in shape mirrors pkg/async/pir.execSelect, applied to a list of
// already-evaluated future expressions instead of bound variables.
func (ev *Evaluator) evalSelect(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	if errVal := ev.requireAsync(); errVal != nil {
		return errVal, nil
	}
	taskIDs := make([]string, len(e.Select.Futures))
	for i, fe := range e.Select.Futures {
		v, err := ev.Eval(fe, rho)
		if err != nil {
			return nil, err
		}
		if v.IsError() {
			return v, nil
		}
		if v.Kind != ir.VFuture {
			return ir.NewError(ir.ErrTypeError, "select operand must be a future", nil), nil
		}
		taskIDs[i] = v.FutureVal.TaskID
	}

	timeoutMs, err := ev.evalOptionalTimeout(e.Select.TimeoutMs, rho)
	if err != nil {
		return nil, err
	}

	results := make(chan selectExprOutcome, len(taskIDs))
	for i, taskID := range taskIDs {
		i, taskID := i, taskID
		go func() {
			v, err := ev.Scheduler.Await(taskID)
			results <- selectExprOutcome{index: i, value: v, err: err}
		}()
	}

	if timeoutMs > 0 {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		select {
		case out := <-results:
			if out.err != nil {
				return nil, out.err
			}
			return ir.NewSelectResult(out.index, out.value), nil
		case <-timer.C:
			return ir.NewSelectResult(-1, nil), nil
		}
	}

	out := <-results
	if out.err != nil {
		return nil, out.err
	}
	return ir.NewSelectResult(out.index, out.value), nil
}

type selectExprOutcome struct {
	index int
	value *ir.Value
	err   error
}

// evalRace evaluates Tasks to futures and returns whichever resolves
// first, dropping the rest (§3: "race across tasks"). Unlike select,
// race reports the winning value directly rather than an indexed
// select-result, and carries no timeout of its own.
func (ev *Evaluator) evalRace(e *ir.Expr, rho ir.Env) (*ir.Value, error) {
	if errVal := ev.requireAsync(); errVal != nil {
		return errVal, nil
	}
	taskIDs := make([]string, len(e.Race.Tasks))
	for i, te := range e.Race.Tasks {
		v, err := ev.Eval(te, rho)
		if err != nil {
			return nil, err
		}
		if v.IsError() {
			return v, nil
		}
		if v.Kind != ir.VFuture {
			return ir.NewError(ir.ErrTypeError, "race operand must be a future", nil), nil
		}
		taskIDs[i] = v.FutureVal.TaskID
	}

	results := make(chan awaitOutcome, len(taskIDs))
	for _, taskID := range taskIDs {
		taskID := taskID
		go func() {
			v, err := ev.Scheduler.Await(taskID)
			results <- awaitOutcome{value: v, err: err}
		}()
	}
	out := <-results
	if out.err != nil {
		return nil, out.err
	}
	return out.value, nil
}
